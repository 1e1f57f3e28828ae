package domain

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

// ImageGenerator abstracts any text-to-image provider.
type ImageGenerator interface {
	// Generate returns the decoded image or a *GenerationError.
	Generate(ctx context.Context, prompt, credential, modelID string) (*Image, error)
}

// Image is an encoded image payload together with what decoding it revealed.
type Image struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
	Digest   string `json:"digest,omitempty"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// NewImage decodes data fully and returns it as an Image. Digest is left
// empty for the caller to fill in.
func NewImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode image: empty payload")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	return &Image{
		Data:     data,
		MIMEType: "image/" + format,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// Extension returns the file extension matching the image format.
func (i *Image) Extension() string {
	switch i.MIMEType {
	case "image/jpeg":
		return ".jpg"
	default:
		return "." + strings.TrimPrefix(i.MIMEType, "image/")
	}
}

// AttachmentMIMETypes lists the formats accepted as user uploads.
var AttachmentMIMETypes = []string{"image/png", "image/jpeg"}

// IsAttachable reports whether the image may be forwarded to the chat provider.
func (i *Image) IsAttachable() bool {
	for _, t := range AttachmentMIMETypes {
		if i.MIMEType == t {
			return true
		}
	}
	return false
}

// ImageModel is one entry of the image model registry.
type ImageModel struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ImageModels is the static registry of image generation models. The first
// entry is the default.
var ImageModels = []ImageModel{
	{Name: "Stable Diffusion XL (Default)", ID: "stabilityai/stable-diffusion-xl-base-1.0"},
	{Name: "Stable Diffusion v3.5-large", ID: "stabilityai/stable-diffusion-3.5-large"},
	{Name: "Stable Diffusion v2.1", ID: "stabilityai/stable-diffusion-2-1"},
	{Name: "Stable Diffusion v1.4", ID: "CompVis/stable-diffusion-v1-4"},
	{Name: "FLUX.1-Krea (New)", ID: "black-forest-labs/FLUX.1-Krea-dev"},
}

func DefaultImageModel() ImageModel {
	return ImageModels[0]
}

// LookupImageModel finds a registry entry by display name (case-insensitive)
// or by exact model id.
func LookupImageModel(nameOrID string) (ImageModel, bool) {
	key := strings.TrimSpace(nameOrID)
	if key == "" {
		return ImageModel{}, false
	}
	for _, m := range ImageModels {
		if m.ID == key || strings.EqualFold(m.Name, key) {
			return m, true
		}
	}
	return ImageModel{}, false
}
