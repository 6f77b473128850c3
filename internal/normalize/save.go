package normalize

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"github.com/ironsheep/openrouter-mcp/internal/content"
)

var extByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// ExtensionFor returns the file extension for an image MIME type, ".png" for
// anything unknown.
func ExtensionFor(mimeType string) string {
	if ext, ok := extByMIME[strings.ToLower(mimeType)]; ok {
		return ext
	}
	return ".png"
}

// encoderFor returns the encoder for a target extension whose format differs
// from the payload's, or nil when the bytes can be written as-is.
func encoderFor(ext, mimeType string) imgio.Encoder {
	ext = strings.ToLower(ext)
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if ext == ExtensionFor(mimeType) {
		return nil
	}
	switch ext {
	case ".png":
		return imgio.PNGEncoder()
	case ".jpg":
		return imgio.JPEGEncoder(95)
	case ".bmp":
		return imgio.BMPEncoder()
	}
	return nil
}

// SaveImages writes every image part to disk under dest and returns the
// parts with a "Saved image to ..." text part ahead of each saved image.
//
// dest is a file path, or a directory when it ends in a separator or names
// an existing directory; directories get generated file names. With several
// images, the second and later files get a -2, -3, ... suffix. A failed
// write is reported as text in place of the confirmation; the image part is
// always kept.
func SaveImages(parts []content.Part, dest string) []content.Part {
	if dest == "" {
		return parts
	}

	out := make([]content.Part, 0, len(parts)*2)
	n := 0
	for _, p := range parts {
		if p.Kind != content.KindImage {
			out = append(out, p)
			continue
		}
		n++
		path, err := saveImage(p, targetPath(dest, p.MIMEType, n))
		if err != nil {
			out = append(out, content.Textf("Failed to save image: %v", err))
		} else {
			out = append(out, content.Textf("Saved image to %s", path))
		}
		out = append(out, p)
	}
	return out
}

func targetPath(dest, mimeType string, n int) string {
	if isDirTarget(dest) {
		return filepath.Join(dest, uuid.NewString()+ExtensionFor(mimeType))
	}
	if n == 1 {
		return dest
	}
	ext := filepath.Ext(dest)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(dest, ext), n, ext)
}

func isDirTarget(dest string) bool {
	if strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, string(filepath.Separator)) {
		return true
	}
	fi, err := os.Stat(dest)
	return err == nil && fi.IsDir()
}

func saveImage(p content.Part, path string) (string, error) {
	data, err := p.Bytes()
	if err != nil {
		return "", fmt.Errorf("invalid image payload: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	enc := encoderFor(filepath.Ext(path), p.MIMEType)
	if enc == nil {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		return path, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s image for conversion: %w", p.MIMEType, err)
	}
	if err := imgio.Save(path, img, enc); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
