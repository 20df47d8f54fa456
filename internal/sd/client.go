package sd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	txt2imgPath  = "/sdapi/v1/txt2img"
	samplersPath = "/sdapi/v1/samplers"

	// defaultNegative steers generations away from content the bot should
	// never post in a chat room.
	defaultNegative = "animal harm, suicide, self-harm, excessive violence, nsfw"
)

// Params control the generation request.
type Params struct {
	Steps   int
	Width   int
	Height  int
	Sampler string
}

// Client talks to a single Stable Diffusion web UI instance.
type Client struct {
	baseURL    string
	params     Params
	httpClient *http.Client
}

// NewClient builds a client for the web UI at baseURL (e.g.
// http://localhost:7860).
func NewClient(baseURL string, params Params) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		params:  params,
		// Generation regularly takes tens of seconds on modest GPUs.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// URL returns the base URL this client talks to.
func (c *Client) URL() string {
	return c.baseURL
}

// TryConnect verifies the web UI is reachable. Used at startup.
func (c *Client) TryConnect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+samplersPath, nil)
	if err != nil {
		return fmt.Errorf("build samplers request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to image backend %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image backend %s: unexpected status %s", c.baseURL, resp.Status)
	}
	return nil
}

type txt2imgRequest struct {
	Prompt           string  `json:"prompt"`
	NegativePrompt   string  `json:"negative_prompt"`
	Steps            int     `json:"steps"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	SamplerName      string  `json:"sampler_name,omitempty"`
	CfgScale         float64 `json:"cfg_scale"`
	Seed             int     `json:"seed"`
	DoNotSaveSamples bool    `json:"do_not_save_samples"`
	DoNotSaveGrid    bool    `json:"do_not_save_grid"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

// GenerateImage renders one image for the prompt and returns it as PNG
// bytes, downscaled if the backend produced something oversized.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(txt2imgRequest{
		Prompt:           prompt,
		NegativePrompt:   defaultNegative,
		Steps:            c.params.Steps,
		Width:            c.params.Width,
		Height:           c.params.Height,
		SamplerName:      c.params.Sampler,
		CfgScale:         7,
		Seed:             -1,
		DoNotSaveSamples: true,
		DoNotSaveGrid:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode txt2img request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+txt2imgPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build txt2img request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("txt2img request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("txt2img: status %s: %s", resp.Status, snippet)
	}

	var parsed txt2imgResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode txt2img response: %w", err)
	}
	if len(parsed.Images) == 0 {
		return nil, fmt.Errorf("txt2img: response contained no images")
	}

	png, err := base64.StdEncoding.DecodeString(parsed.Images[0])
	if err != nil {
		return nil, fmt.Errorf("decode txt2img image: %w", err)
	}

	return normalizeSize(png, maxImageEdge)
}
