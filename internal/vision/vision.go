// Package vision is the client for the cat detection and identification service.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tomcat/internal/metrics"
)

var (
	// ErrNoImage is returned when there is no image to process.
	ErrNoImage = errors.New("no image")
	// ErrImageTooLarge is returned when the service rejects an image for its dimensions.
	ErrImageTooLarge = errors.New("image too large")
	// ErrNotConfigured is returned when no service endpoint is set.
	ErrNotConfigured = errors.New("vision service not configured")
)

const maxResponseSize = 32 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Guess is the classifier's best match for one detected cat.
type Guess struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	Confidence float64 `json:"conf"`
	Box        []int   `json:"box,omitempty"`
}

// Identification is an annotated image with one guess per detected cat.
type Identification struct {
	Image   []byte
	Results []Guess
}

// Client calls the inference service over HTTP. Images travel as raw JPEG bodies;
// results come back as JSON with images base64-encoded.
type Client struct {
	client   HTTPClient
	endpoint string
	timeout  time.Duration
}

// New creates a Client for the service at endpoint.
func New(client HTTPClient, endpoint string, timeout time.Duration) *Client {
	return &Client{
		client:   client,
		endpoint: strings.TrimRight(endpoint, "/"),
		timeout:  timeout,
	}
}

type detectResponse struct {
	Image []byte `json:"image"`
	Boxes int    `json:"boxes"`
}

type cropResponse struct {
	Crops [][]byte `json:"crops"`
}

type identifyResponse struct {
	Image   []byte  `json:"image"`
	Results []Guess `json:"results"`
}

// Detect returns img with a box drawn around each cat.
func (c *Client) Detect(ctx context.Context, img []byte) ([]byte, error) {
	var resp detectResponse
	if err := c.call(ctx, "detect", img, &resp); err != nil {
		return nil, err
	}
	return resp.Image, nil
}

// Crop returns one JPEG per detected cat.
func (c *Client) Crop(ctx context.Context, img []byte) ([][]byte, error) {
	var resp cropResponse
	if err := c.call(ctx, "crop", img, &resp); err != nil {
		return nil, err
	}
	return resp.Crops, nil
}

// Identify returns the annotated image and a name guess per detected cat.
func (c *Client) Identify(ctx context.Context, img []byte) (*Identification, error) {
	var resp identifyResponse
	if err := c.call(ctx, "identify", img, &resp); err != nil {
		return nil, err
	}
	return &Identification{Image: resp.Image, Results: resp.Results}, nil
}

func (c *Client) call(ctx context.Context, op string, img []byte, out any) error {
	if len(img) == 0 {
		return ErrNoImage
	}
	if c.endpoint == "" {
		return ErrNotConfigured
	}

	start := time.Now()
	defer func() { metrics.VisionLatency.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+op, bytes.NewReader(img))
	if err != nil {
		return fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%s: %w", op, ErrImageTooLarge)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
