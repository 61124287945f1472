package controllers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/adamanr/hr_console/internal/schema"
	"github.com/adamanr/hr_console/internal/transport"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxSizeMB = 10
	PreviewSize      = 320
)

// DefaultAllowedTypes are the photo formats accepted when the config has none.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNoPhoto         = errors.New("no photo to upload")
)

// Photo is a checked image waiting to be uploaded. Preview is a small JPEG
// of it.
type Photo struct {
	Name        string
	ContentType string
	Size        int
	Preview     []byte

	data []byte
}

// Release drops the image bytes. The photo cannot be uploaded afterwards.
func (p *Photo) Release() {
	p.data = nil
	p.Preview = nil
}

type UploadController struct {
	errorState
	deps *Dependens
}

func NewUploadController(deps *Dependens) *UploadController {
	return &UploadController{
		deps: deps,
	}
}

func (c *UploadController) limits() (int, []string) {
	maxMB, allowed := DefaultMaxSizeMB, DefaultAllowedTypes

	if c.deps.Config != nil {
		if c.deps.Config.Upload.MaxSizeMB > 0 {
			maxMB = c.deps.Config.Upload.MaxSizeMB
		}

		if len(c.deps.Config.Upload.AllowedTypes) > 0 {
			allowed = c.deps.Config.Upload.AllowedTypes
		}
	}

	return maxMB, allowed
}

// PreparePhoto reads at most the size limit from r, checks the sniffed MIME
// type against the allow-list and renders the preview.
func (c *UploadController) PreparePhoto(name string, r io.Reader) (*Photo, error) {
	const fallback = "Photo cannot be read"

	maxMB, allowed := c.limits()
	maxBytes := int64(maxMB) << 20

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error reading photo", fallback, err)
	}

	if int64(len(data)) > maxBytes {
		err = &Error{Message: fmt.Sprintf("File size must be less than %dMB", maxMB), Err: ErrFileTooLarge}
		return nil, c.fail(c.deps.Logger, "Photo rejected", fallback, err)
	}

	mime := mimetype.Detect(data)
	if !mimetype.EqualsAny(mime.String(), allowed...) {
		err = &Error{Message: fmt.Sprintf("Only %s images are allowed", typeNames(allowed)), Err: ErrUnsupportedType}
		return nil, c.fail(c.deps.Logger, "Photo rejected", fallback, err)
	}

	preview, err := renderPreview(data)
	if err != nil {
		return nil, c.fail(c.deps.Logger, "Error decoding photo", fallback, err)
	}

	c.clearError()

	return &Photo{
		Name:        name,
		ContentType: mime.String(),
		Size:        len(data),
		Preview:     preview,
		data:        data,
	}, nil
}

func renderPreview(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, PreviewSize, PreviewSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err = imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// typeNames turns "image/jpeg", "image/png" into "JPEG, PNG".
func typeNames(types []string) string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		_, sub, _ := strings.Cut(t, "/")
		names = append(names, strings.ToUpper(sub))
	}

	return strings.Join(names, ", ")
}

// UploadPhoto sends photo as the multipart field "file" and returns the
// stored URL. The photo bytes are released once the server accepted them.
func (c *UploadController) UploadPhoto(ctx context.Context, photo *Photo) (string, error) {
	const fallback = "Failed to upload photo"

	if photo == nil || photo.data == nil {
		return "", c.fail(c.deps.Logger, "Error uploading photo", fallback, ErrNoPhoto)
	}

	env, err := c.deps.API.UploadFile(ctx, PathUploadPhoto, transport.FormFile{
		Field:       "file",
		Filename:    photo.Name,
		ContentType: photo.ContentType,
		Content:     bytes.NewReader(photo.data),
	})
	if err == nil {
		err = checkEnvelope(env, fallback)
	}

	if err != nil {
		return "", c.fail(c.deps.Logger, "Error uploading photo", fallback, err)
	}

	result, err := schema.DecodeUpload(env.Data)
	if err != nil {
		return "", c.fail(c.deps.Logger, "Error decoding upload result", fallback, err)
	}

	c.deps.Logger.Debug("Photo uploaded", slog.String("url", result.URL), slog.Int("size", photo.Size))

	photo.Release()
	c.clearError()

	return result.URL, nil
}
