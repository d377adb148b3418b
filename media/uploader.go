// Package media stores uploaded images on disk and serves them back by URL.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"my-chat-backend/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

type DiskUploader struct {
	log      *slog.Logger
	dir      string
	baseURL  string
	maxBytes int
}

func NewDiskUploader(log *slog.Logger, dir, baseURL string, maxBytes int) (*DiskUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskUploader{log: log, dir: dir, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes}, nil
}

// Upload sniffs the content, accepts images only and returns the public URL.
func (u *DiskUploader) Upload(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", errors.ErrInvalidArgument)
	}
	if u.maxBytes > 0 && len(data) > u.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, max %d", errors.ErrMediaTooLarge, len(data), u.maxBytes)
	}
	detected := mimetype.Detect(data)
	if _, ok := AcceptedImage(detected.String()); !ok {
		return "", fmt.Errorf("%w: got %s", errors.ErrUnsupportedMedia, detected.String())
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrUploadFailed, err)
	}

	name := uuid.NewString() + detected.Extension()
	path := filepath.Join(u.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrUploadFailed, err)
	}
	u.log.Debug("Image stored", "path", path, "mime", detected.String(), "bytes", len(data))
	return u.baseURL + "/" + name, nil
}

func (u *DiskUploader) Dir() string {
	return u.dir
}
