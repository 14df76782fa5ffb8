package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// PutObjectOptions represents options for uploading an object
type PutObjectOptions struct {
	ContentType  string
	UserMetadata map[string]string

	// PartSize bounds the multipart buffer when the size is unknown.
	PartSize uint64
}

// ObjectInfo represents object information
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// PutObject uploads an object. objectSize may be -1 when the length is not
// known in advance.
func (c *Client) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts PutObjectOptions) (ObjectInfo, error) {
	if err := c.checkArgs(bucketName, objectName); err != nil {
		return ObjectInfo{}, WrapError("PutObject", err, bucketName, objectName)
	}

	info, err := c.client.PutObject(ctx, bucketName, objectName, reader, objectSize, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.UserMetadata,
		PartSize:     opts.PartSize,
	})
	if err != nil {
		return ObjectInfo{}, WrapError("PutObject", err, bucketName, objectName)
	}

	c.logger.Debug("object uploaded",
		zap.String("bucket", bucketName),
		zap.String("object", objectName),
		zap.Int64("size", info.Size),
	)

	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  opts.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// GetObject opens an object for reading. Missing objects surface on the
// first Read or Stat, so callers that need a clean not-found should call
// StatObject first.
func (c *Client) GetObject(ctx context.Context, bucketName, objectName string) (*minio.Object, error) {
	if err := c.checkArgs(bucketName, objectName); err != nil {
		return nil, WrapError("GetObject", err, bucketName, objectName)
	}

	object, err := c.client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, WrapError("GetObject", err, bucketName, objectName)
	}
	return object, nil
}

// OpenObject stats the object and opens it for reading, so a missing key
// fails here instead of on the first Read.
func (c *Client) OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, ObjectInfo, error) {
	info, err := c.StatObject(ctx, bucketName, objectName)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	object, err := c.GetObject(ctx, bucketName, objectName)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	return object, info, nil
}

// StatObject gets object metadata
func (c *Client) StatObject(ctx context.Context, bucketName, objectName string) (ObjectInfo, error) {
	if err := c.checkArgs(bucketName, objectName); err != nil {
		return ObjectInfo{}, WrapError("StatObject", err, bucketName, objectName)
	}

	info, err := c.client.StatObject(ctx, bucketName, objectName, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, WrapError("StatObject", err, bucketName, objectName)
	}

	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// RemoveObject removes an object from a bucket. S3 treats removing a
// missing key as success.
func (c *Client) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	if err := c.checkArgs(bucketName, objectName); err != nil {
		return WrapError("RemoveObject", err, bucketName, objectName)
	}

	if err := c.client.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{}); err != nil {
		return WrapError("RemoveObject", err, bucketName, objectName)
	}

	c.logger.Debug("object removed",
		zap.String("bucket", bucketName),
		zap.String("object", objectName),
	)
	return nil
}

func (c *Client) checkArgs(bucketName, objectName string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if bucketName == "" {
		return ErrInvalidBucketName
	}
	if objectName == "" {
		return ErrInvalidObjectName
	}
	return nil
}
