package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes
const (
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrTooManyRequests = 1003

	// Container errors (2000-2999)
	ErrInvalidInput   = 2000
	ErrAlreadyExists  = 2001
	ErrFolderNotFound = 2002
	ErrFileNotFound   = 2003
	ErrWrongPassword  = 2004
	ErrInvalidFolder  = 2005
	ErrFileTooLarge   = 2006
	ErrStorageFailure = 2007
)

var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Endpoint not found"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},

	ErrInvalidInput:   {ErrInvalidInput, http.StatusBadRequest, "Invalid input"},
	ErrAlreadyExists:  {ErrAlreadyExists, http.StatusBadRequest, "Folder already exists"},
	ErrFolderNotFound: {ErrFolderNotFound, http.StatusNotFound, "Folder not found"},
	ErrFileNotFound:   {ErrFileNotFound, http.StatusNotFound, "File not found"},
	ErrWrongPassword:  {ErrWrongPassword, http.StatusUnauthorized, "Invalid password"},
	ErrInvalidFolder:  {ErrInvalidFolder, http.StatusBadRequest, "Invalid folder"},
	ErrFileTooLarge:   {ErrFileTooLarge, http.StatusRequestEntityTooLarge, "File size exceeds limit"},
	ErrStorageFailure: {ErrStorageFailure, http.StatusInternalServerError, "Storage operation failed"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsClientError checks if the code represents a client error (4xx)
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// IsServerError checks if the code represents a server error (5xx)
func IsServerError(code int) bool {
	return GetHTTPStatus(code) >= 500
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
