// Package filestore abstracts binary blob storage for profile photos.
package filestore

import (
	"context"
	"io"
)

// FileStore stores photo binaries and hands out URLs for them. Upload is the
// direct path; UploadURL/ReadURL support clients that transfer the bytes
// themselves against presigned URLs.
type FileStore interface {
	// Upload stores the blob and returns the key it was stored under.
	Upload(ctx context.Context, fileName, contentType string, body io.Reader) (string, error)

	// UploadURL returns a presigned PUT URL and the key it will write to.
	UploadURL(ctx context.Context, fileName, contentType string) (url string, key string, err error)

	// ReadURL returns a presigned GET URL for an existing key.
	ReadURL(ctx context.Context, key string) (string, error)

	// Delete removes the blob at key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
