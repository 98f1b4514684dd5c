package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestThumbnailPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(800, 400)); err != nil {
		t.Fatal(err)
	}

	p := NewProcessor(Config{ThumbWidth: 100, ThumbHeight: 100})
	th, err := p.Thumbnail(buf.Bytes())
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if th.Width != 100 || th.Height != 100 {
		t.Fatalf("expected 100x100, got %dx%d", th.Width, th.Height)
	}
	if th.ContentType != "image/png" || th.Ext != ".png" {
		t.Fatalf("unexpected type %s %s", th.ContentType, th.Ext)
	}
	if _, _, err := image.Decode(bytes.NewReader(th.Data)); err != nil {
		t.Fatalf("thumbnail is not decodable: %v", err)
	}
}

func TestThumbnailJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(200, 300), nil); err != nil {
		t.Fatal(err)
	}

	th, err := NewProcessor(Config{}).Thumbnail(buf.Bytes())
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if th.ContentType != "image/jpeg" || th.Width != 320 || th.Height != 320 {
		t.Fatalf("unexpected thumbnail %+v", th)
	}
}

func TestThumbnailRejectsGarbage(t *testing.T) {
	if _, err := NewProcessor(DefaultConfig()).Thumbnail([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestExtAndPaths(t *testing.T) {
	cases := map[string]string{
		"image/png":                ".png",
		"image/jpeg":               ".jpg",
		"video/mp4":                ".mp4",
		"audio/mpeg":               ".mp3",
		"text/html; charset=utf-8": ".bin",
		"IMAGE/WEBP":               ".webp",
	}
	for ct, want := range cases {
		if got := ExtFromContentType(ct); got != want {
			t.Errorf("ExtFromContentType(%q) = %q, want %q", ct, got, want)
		}
	}

	out, thumb := GeneratePaths("user_1", "gen_1", ".png")
	if out != "generations/user_1/gen_1.png" || thumb != "generations/user_1/gen_1_thumb" {
		t.Fatalf("unexpected paths %s %s", out, thumb)
	}
}
