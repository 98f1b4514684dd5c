package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Drivers accepted by New.
const (
	DriverLocal      = "local"
	DriverS3         = "s3"
	DriverCloudinary = "cloudinary"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// Storage is where finished generation outputs are archived.
type Storage interface {
	// Put stores the object under key and returns its public URL.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)

	// Delete removes an object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)
}

// Config selects and configures a backend.
type Config struct {
	Driver string

	LocalPath string
	LocalURL  string

	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3PublicURL string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string
}

// New builds the backend named by cfg.Driver.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverLocal:
		return NewLocalStorage(cfg.LocalPath, cfg.LocalURL)
	case DriverS3:
		return NewS3Storage(ctx, cfg)
	case DriverCloudinary:
		return NewCloudinaryStorage(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
