package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"

	"github.com/google/uuid"

	"klik-api/imaging"
	"klik-api/storage"
)

// MaxImageSize is the upload limit for every image kind.
const MaxImageSize = 5 << 20

// Object key prefixes.
const (
	PrefixPosts    = "posts"
	PrefixComments = "comments"
	PrefixMessages = "messages"
	PrefixAvatars  = "avatars"
	PrefixBanners  = "banners"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Upload is a validated image held in memory.
type Upload struct {
	Data        []byte
	ContentType string
	Ext         string
}

// ValidateImage sniffs the content type of data and enforces the size limit.
func ValidateImage(data []byte) (*Upload, error) {
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, ErrUnsupportedImage
	}

	contentType := http.DetectContentType(data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, ErrUnsupportedImage
	}
	return &Upload{Data: data, ContentType: contentType, Ext: ext}, nil
}

// ReadImage reads and validates a multipart image upload.
func ReadImage(fh *multipart.FileHeader) (*Upload, error) {
	if fh.Size > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return ValidateImage(data)
}

// ObjectKey builds "<prefix>/<owner>/<uuid>.<ext>".
func ObjectKey(prefix, owner, ext string) string {
	return path.Join(prefix, owner, uuid.New().String()+"."+ext)
}

type MediaService struct {
	store storage.Store
}

func NewMediaService(store storage.Store) *MediaService {
	return &MediaService{store: store}
}

// Upload stores an image under prefix/owner and returns its public URL and key.
func (ms *MediaService) Upload(ctx context.Context, prefix, owner string, up *Upload) (string, string, error) {
	key := ObjectKey(prefix, owner, up.Ext)
	url, err := ms.store.Put(ctx, key, bytes.NewReader(up.Data), int64(len(up.Data)), up.ContentType)
	if err != nil {
		return "", "", fmt.Errorf("failed to upload image: %w", err)
	}
	return url, key, nil
}

// UploadCrop stores a rendered avatar or banner.
func (ms *MediaService) UploadCrop(ctx context.Context, kind imaging.Kind, owner string, res *imaging.Result) (string, string, error) {
	prefix := PrefixBanners
	if kind == imaging.KindAvatar {
		prefix = PrefixAvatars
	}
	return ms.Upload(ctx, prefix, owner, &Upload{Data: res.Data, ContentType: res.ContentType, Ext: res.Ext})
}

// Remove deletes a stored object. Failures are logged only; an orphaned
// object never fails the request that replaced or deleted it.
func (ms *MediaService) Remove(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := ms.store.Remove(ctx, key); err != nil {
		slog.Warn("failed to remove stored object", "key", key, "error", err)
	}
}

func (ms *MediaService) RemoveAll(ctx context.Context, keys []string) {
	for _, key := range keys {
		ms.Remove(ctx, key)
	}
}
