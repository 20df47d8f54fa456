package sd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
)

func TestMaybeImagePrompt(t *testing.T) {
	tests := []struct {
		body string
		want string
		ok   bool
	}{
		{"draw me a picture of a red cat", "a red cat", true},
		{"can you show me a photo of the moon?", "the moon?", true},
		{"make a sketch: two robots dancing", "two robots dancing", true},
		{"I love this image of yours", "yours", true},
		{"what time is it", "", false},
		{"send a picture", "", false}, // no description to extract
		{"picturesque villages are nice", "", false},
	}
	for _, tt := range tests {
		got, ok := MaybeImagePrompt(tt.body)
		if ok != tt.ok || got != tt.want {
			t.Errorf("MaybeImagePrompt(%q) = (%q, %v), want (%q, %v)", tt.body, got, ok, tt.want, tt.ok)
		}
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestGenerateImage(t *testing.T) {
	png := encodePNG(t, 64, 64)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != txt2imgPath {
			http.NotFound(w, r)
			return
		}
		var req txt2imgRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Prompt != "a red cat" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		if req.NegativePrompt == "" {
			t.Error("negative prompt missing")
		}
		json.NewEncoder(w).Encode(txt2imgResponse{
			Images: []string{base64.StdEncoding.EncodeToString(png)},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Params{Steps: 20, Width: 64, Height: 64})
	got, err := c.GenerateImage(context.Background(), "a red cat")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if !bytes.Equal(got, png) {
		t.Error("in-bounds image should pass through unchanged")
	}
}

func TestGenerateImageBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cuda out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Params{})
	if _, err := c.GenerateImage(context.Background(), "anything"); err == nil {
		t.Error("expected error on backend failure")
	}
}

func TestNormalizeSizeDownscales(t *testing.T) {
	big := encodePNG(t, 2048, 1024)

	out, err := normalizeSize(big, 1024)
	if err != nil {
		t.Fatalf("normalizeSize: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode resized: %v", err)
	}
	if img.Bounds().Dx() > 1024 || img.Bounds().Dy() > 1024 {
		t.Errorf("resized image still %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestTryConnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == samplersPath {
			w.Write([]byte("[]"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, Params{}).TryConnect(context.Background()); err != nil {
		t.Errorf("TryConnect: %v", err)
	}
	if err := NewClient("http://127.0.0.1:1", Params{}).TryConnect(context.Background()); err == nil {
		t.Error("TryConnect to a closed port should fail")
	}
}
