package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// CloudinaryStorage archives outputs as Cloudinary assets.
type CloudinaryStorage struct {
	uploader *uploader.API
	folder   string
}

// NewCloudinaryStorage creates a Cloudinary storage from API credentials.
func NewCloudinaryStorage(cfg Config) (*CloudinaryStorage, error) {
	cldCfg, err := config.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	up, err := uploader.NewWithConfiguration(cldCfg)
	if err != nil {
		return nil, fmt.Errorf("cloudinary uploader: %w", err)
	}
	return &CloudinaryStorage{uploader: up, folder: cfg.CloudinaryFolder}, nil
}

// Put uploads under folder/key. The extension is dropped from the public id.
func (s *CloudinaryStorage) Put(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	overwrite := true
	result, err := s.uploader.Upload(ctx, reader, uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     publicID(key),
		ResourceType: resourceType(contentType),
		Overwrite:    &overwrite,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", result.Error.Message)
	}
	return result.SecureURL, nil
}

// Delete destroys the asset. Cloudinary answers "not found" without an error.
func (s *CloudinaryStorage) Delete(ctx context.Context, key string) error {
	_, err := s.uploader.Destroy(ctx, uploader.DestroyParams{
		PublicID:     s.fullID(key),
		ResourceType: resourceTypeForKey(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from cloudinary: %w", err)
	}
	return nil
}

// Exists always reports false; uploads overwrite by public id.
func (s *CloudinaryStorage) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (s *CloudinaryStorage) fullID(key string) string {
	if s.folder == "" {
		return publicID(key)
	}
	return s.folder + "/" + publicID(key)
}

func publicID(key string) string {
	return strings.TrimSuffix(key, path.Ext(key))
}

func resourceType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"), strings.HasPrefix(contentType, "audio/"):
		return "video"
	default:
		return "raw"
	}
}

func resourceTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return "image"
	case ".mp4", ".webm", ".mov", ".mp3", ".wav":
		return "video"
	default:
		return "raw"
	}
}
