package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/file-container/internal/container/biz"
	apperrors "github.com/lk2023060901/file-container/internal/pkg/errors"
	"github.com/lk2023060901/file-container/internal/pkg/response"
)

const maxFolderFieldBytes = 1 << 10

// Upload POST /api/upload
//
// The multipart body is streamed. The "folder" field must come before any
// "files" part so the folder is checked before bytes are stored.
func (s *ContainerService) Upload(c *gin.Context) {
	ctx := c.Request.Context()

	mr, err := c.Request.MultipartReader()
	if err != nil {
		s.fail(c, fmt.Errorf("%w: expected multipart/form-data", biz.ErrInvalidInput), "invalid upload request")
		return
	}

	var batch *biz.UploadBatch
	committed := false
	defer func() {
		if batch != nil && !committed {
			batch.Abort(ctx)
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				s.fail(c, ctx.Err(), "upload interrupted")
				return
			}
			s.fail(c, fmt.Errorf("%w: malformed multipart body", biz.ErrInvalidInput), "failed to read upload")
			return
		}

		switch part.FormName() {
		case "folder":
			if batch != nil {
				_ = part.Close()
				s.fail(c, fmt.Errorf("%w: folder given more than once", biz.ErrInvalidInput), "invalid upload request")
				return
			}
			value, err := io.ReadAll(io.LimitReader(part, maxFolderFieldBytes))
			_ = part.Close()
			if err != nil {
				s.fail(c, fmt.Errorf("%w: malformed folder field", biz.ErrInvalidInput), "failed to read upload")
				return
			}
			batch, err = s.uploads.Begin(ctx, string(value))
			if err != nil {
				s.fail(c, err, "upload rejected")
				return
			}

		case "files":
			if part.FileName() == "" {
				_ = part.Close()
				continue
			}
			if batch == nil {
				_ = part.Close()
				s.fail(c, fmt.Errorf("%w: folder must be sent before files", biz.ErrInvalidFolder), "upload rejected")
				return
			}

			_, err := batch.Add(ctx, part.FileName(), part.Header.Get("Content-Type"), part)
			// Close drains whatever an oversized part left unread.
			_ = part.Close()
			if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				s.fail(c, err, "upload interrupted")
				return
			}

		default:
			_ = part.Close()
		}
	}

	if batch == nil {
		s.fail(c, fmt.Errorf("%w: folder is required", biz.ErrInvalidFolder), "upload rejected")
		return
	}

	result, err := batch.Commit(ctx)
	committed = true
	if err != nil {
		s.fail(c, err, "failed to upload files")
		return
	}

	names := make([]string, len(result.Files))
	for i, f := range result.Files {
		names[i] = f.Name
	}
	rejected := make([]RejectedFile, len(result.Rejected))
	for i, r := range result.Rejected {
		rejected[i] = RejectedFile{Name: r.Name, Error: rejectionMessage(r.Err)}
	}

	response.Success(c, gin.H{
		"message":  fmt.Sprintf("%d file(s) uploaded successfully", len(names)),
		"folder":   result.Folder,
		"files":    names,
		"uploaded": toFileResponses(result.Files),
		"rejected": rejected,
	})
}

func rejectionMessage(err error) string {
	code := errorCode(err)
	return apperrors.New(code, publicDetail(err, code)).PublicMessage()
}
