package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

// Thumbnail is an encoded preview of a generated image.
type Thumbnail struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// Config for thumbnail rendering
type Config struct {
	ThumbWidth  int // default 320
	ThumbHeight int // default 320
	Quality     int // JPEG quality 1-100 (default 85)
}

// DefaultConfig returns default processing config
func DefaultConfig() Config {
	return Config{
		ThumbWidth:  320,
		ThumbHeight: 320,
		Quality:     85,
	}
}

// Processor builds thumbnails for generated images
type Processor struct {
	config Config
}

// NewProcessor creates image processor
func NewProcessor(config Config) *Processor {
	def := DefaultConfig()
	if config.ThumbWidth <= 0 {
		config.ThumbWidth = def.ThumbWidth
	}
	if config.ThumbHeight <= 0 {
		config.ThumbHeight = def.ThumbHeight
	}
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = def.Quality
	}
	return &Processor{config: config}
}

// Thumbnail decodes data and returns a center-cropped preview.
// PNG input stays PNG to keep transparency, everything else becomes JPEG.
func (p *Processor) Thumbnail(data []byte) (*Thumbnail, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Fill(img, p.config.ThumbWidth, p.config.ThumbHeight, imaging.Center, imaging.Lanczos)

	out, err := p.encode(thumb, format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	ct := "image/jpeg"
	ext := ".jpg"
	if format == "png" {
		ct = "image/png"
		ext = ".png"
	}

	return &Thumbnail{
		Data:        out,
		ContentType: ct,
		Ext:         ext,
		Width:       thumb.Bounds().Dx(),
		Height:      thumb.Bounds().Dy(),
	}, nil
}

func (p *Processor) encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer

	if format == "png" {
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.config.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExtFromContentType maps an output content type to a file extension.
func ExtFromContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch ct {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ".bin"
	}
}

// GeneratePaths returns storage keys for an output and its thumbnail
func GeneratePaths(userID, generationID, ext string) (output, thumb string) {
	output = fmt.Sprintf("generations/%s/%s%s", userID, generationID, ext)
	thumb = fmt.Sprintf("generations/%s/%s_thumb", userID, generationID)
	return
}
