package storage

import (
	"context"
	"io"
)

// AvatarUploader stores profile pictures. Handlers depend on this so tests can swap it.
type AvatarUploader interface {
	UploadAvatar(ctx context.Context, body io.Reader, size int64, filename, userID string) (*UploadResult, error)
}

var _ AvatarUploader = (*S3Uploader)(nil)
