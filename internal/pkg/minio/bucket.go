package minio

import (
	"context"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// BucketExists checks if a bucket exists
func (c *Client) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	if err := c.checkClosed(); err != nil {
		return false, err
	}
	if bucketName == "" {
		return false, WrapError("BucketExists", ErrInvalidBucketName, bucketName, "")
	}

	exists, err := c.client.BucketExists(ctx, bucketName)
	if err != nil {
		return false, WrapError("BucketExists", err, bucketName, "")
	}
	return exists, nil
}

// EnsureBucket creates the bucket when it does not exist yet
func (c *Client) EnsureBucket(ctx context.Context, bucketName string) error {
	exists, err := c.BucketExists(ctx, bucketName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = c.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: c.config.Region})
	if err != nil {
		// lost a creation race with another replica
		if exists, errExists := c.client.BucketExists(ctx, bucketName); errExists == nil && exists {
			return nil
		}
		return WrapError("MakeBucket", err, bucketName, "")
	}

	c.logger.Info("bucket created successfully", zap.String("bucket", bucketName))
	return nil
}

// ListObjects streams the keys under prefix. The error channel receives at
// most one error and is closed together with the object channel.
func (c *Client) ListObjects(ctx context.Context, bucketName, prefix string, recursive bool) (<-chan ObjectInfo, <-chan error) {
	objCh := make(chan ObjectInfo)
	errCh := make(chan error, 1)

	go func() {
		defer close(objCh)
		defer close(errCh)

		if err := c.checkClosed(); err != nil {
			errCh <- err
			return
		}
		if bucketName == "" {
			errCh <- WrapError("ListObjects", ErrInvalidBucketName, bucketName, "")
			return
		}

		opts := minio.ListObjectsOptions{Prefix: prefix, Recursive: recursive}
		for object := range c.client.ListObjects(ctx, bucketName, opts) {
			if object.Err != nil {
				errCh <- WrapError("ListObjects", object.Err, bucketName, "")
				return
			}

			info := ObjectInfo{
				Key:          object.Key,
				Size:         object.Size,
				ETag:         object.ETag,
				ContentType:  object.ContentType,
				LastModified: object.LastModified,
			}

			select {
			case objCh <- info:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return objCh, errCh
}
