package biz

import "errors"

// 文件夹与文件相关错误，调用方用 errors.Is 判断，service 层映射为响应码
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrAlreadyExists  = errors.New("folder already exists")
	ErrFolderNotFound = errors.New("folder not found")
	ErrFileNotFound   = errors.New("file not found")
	ErrWrongPassword  = errors.New("invalid password")
	ErrInvalidFolder  = errors.New("invalid folder")
	ErrFileTooLarge   = errors.New("file too large")
	ErrStorageFailure = errors.New("storage failure")
)

// 存储层约定的错误
var (
	// ErrBlobNotFound 内容已不存在
	ErrBlobNotFound = errors.New("blob not found")

	// ErrBlobExists Put 的目标名已被占用，已有内容未被改动，本次也没有写入
	ErrBlobExists = errors.New("blob already exists")

	// ErrNoChange 在 Update* 回调中返回，放弃本次保存
	ErrNoChange = errors.New("no change")
)
