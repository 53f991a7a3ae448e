package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"klik-api/storage"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestValidateImage(t *testing.T) {
	up, err := ValidateImage(pngBytes(t))
	if err != nil {
		t.Fatalf("ValidateImage: %v", err)
	}
	if up.ContentType != "image/png" || up.Ext != "png" {
		t.Errorf("unexpected upload %s/%s", up.ContentType, up.Ext)
	}

	if _, err := ValidateImage([]byte("plain text")); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("expected ErrUnsupportedImage, got %v", err)
	}
	if _, err := ValidateImage(make([]byte, MaxImageSize+1)); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestMediaUploadAndRemove(t *testing.T) {
	store := storage.NewMemoryStore("http://cdn.test/posts")
	media := NewMediaService(store)
	up, _ := ValidateImage(pngBytes(t))

	url, key, err := media.Upload(context.Background(), PrefixPosts, "user-1", up)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(key, "posts/user-1/") || !strings.HasSuffix(key, ".png") {
		t.Errorf("unexpected key %s", key)
	}
	if url != "http://cdn.test/posts/"+key {
		t.Errorf("unexpected url %s", url)
	}
	if obj, ok := store.Get(key); !ok || obj.ContentType != "image/png" {
		t.Errorf("object not stored: %+v", obj)
	}

	media.Remove(context.Background(), key)
	if store.Len() != 0 {
		t.Error("expected object to be removed")
	}
}
