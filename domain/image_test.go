package domain

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func encode(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return buf.Bytes()
}

func TestNewImage(t *testing.T) {
	cases := []struct {
		format     string
		mime, ext  string
		attachable bool
	}{
		{format: "png", mime: "image/png", ext: ".png", attachable: true},
		{format: "jpeg", mime: "image/jpeg", ext: ".jpg", attachable: true},
		{format: "gif", mime: "image/gif", ext: ".gif", attachable: false},
	}

	for _, tc := range cases {
		img, err := NewImage(encode(t, tc.format))
		if err != nil {
			t.Fatalf("%s: NewImage err: %v", tc.format, err)
		}
		if img.MIMEType != tc.mime || img.Extension() != tc.ext || img.IsAttachable() != tc.attachable {
			t.Errorf("%s: unexpected image %+v ext=%s", tc.format, img, img.Extension())
		}
		if img.Width != 3 || img.Height != 2 {
			t.Errorf("%s: unexpected bounds %dx%d", tc.format, img.Width, img.Height)
		}
	}
}

func TestNewImageRejectsGarbage(t *testing.T) {
	if _, err := NewImage(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := NewImage([]byte(`{"error":"x"}`)); err == nil {
		t.Fatal("expected error for json payload")
	}
}

func TestLookupImageModel(t *testing.T) {
	if DefaultImageModel().ID != "stabilityai/stable-diffusion-xl-base-1.0" {
		t.Fatalf("unexpected default %+v", DefaultImageModel())
	}

	cases := map[string]string{
		"Stable Diffusion v2.1":                    "stabilityai/stable-diffusion-2-1",
		"flux.1-krea (new)":                        "black-forest-labs/FLUX.1-Krea-dev",
		"CompVis/stable-diffusion-v1-4":            "CompVis/stable-diffusion-v1-4",
		" stabilityai/stable-diffusion-3.5-large ": "stabilityai/stable-diffusion-3.5-large",
	}
	for key, want := range cases {
		m, ok := LookupImageModel(key)
		if !ok || m.ID != want {
			t.Errorf("LookupImageModel(%q) = %+v, %v; want %s", key, m, ok, want)
		}
	}

	for _, key := range []string{"", "dall-e-3", "compvis/stable-diffusion-v1-4"} {
		if _, ok := LookupImageModel(key); ok {
			t.Errorf("LookupImageModel(%q) should fail", key)
		}
	}
}
