package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxResponseBytes = 1 << 20

const (
	pathEmbed    = "/api/face/embed"
	pathLiveness = "/api/face/liveness"
	pathBlink    = "/api/face/blink-detection"
	pathMovement = "/api/face/movement-detection"
)

// HTTPClient talks to a recognition provider exposing the embed, liveness,
// blink-detection and movement-detection endpoints. Images travel as
// standard base64 strings inside JSON bodies.
//
// HTTPClient applies no time bounds of its own; wrap it with [Guard].
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns a client rooted at baseURL. A nil httpClient uses a
// dedicated client without a global timeout.
func NewHTTPClient(baseURL string, httpClient *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid provider url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("provider url must be http or https")
	}
	if u.Host == "" {
		return nil, errors.New("provider url is missing a host")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    httpClient,
	}, nil
}

type embedRequest struct {
	Image string `json:"image"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type framesRequest struct {
	Frames []string `json:"frames"`
}

type livenessResponse struct {
	IsLive     bool           `json:"is_live"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details"`
}

type blinkResponse struct {
	BlinkDetected bool `json:"blink_detected"`
}

type movementResponse struct {
	MovementDetected bool `json:"movement_detected"`
}

func (c *HTTPClient) Embed(ctx context.Context, image []byte) ([]float64, error) {
	var out embedResponse
	if err := c.post(ctx, pathEmbed, embedRequest{Image: encodeImage(image)}, &out); err != nil {
		return nil, err
	}
	return out.Embedding, nil
}

func (c *HTTPClient) Liveness(ctx context.Context, frames [][]byte) (LivenessSignal, error) {
	var out livenessResponse
	if err := c.post(ctx, pathLiveness, framesRequest{Frames: encodeFrames(frames)}, &out); err != nil {
		return LivenessSignal{}, err
	}
	return LivenessSignal{
		IsLive:     out.IsLive,
		Confidence: out.Confidence,
		Details:    out.Details,
	}, nil
}

func (c *HTTPClient) Blink(ctx context.Context, first, second, third []byte) (bool, error) {
	var out blinkResponse
	req := framesRequest{Frames: encodeFrames([][]byte{first, second, third})}
	if err := c.post(ctx, pathBlink, req, &out); err != nil {
		return false, err
	}
	return out.BlinkDetected, nil
}

func (c *HTTPClient) Movement(ctx context.Context, frames [][]byte) (bool, error) {
	var out movementResponse
	if err := c.post(ctx, pathMovement, framesRequest{Frames: encodeFrames(frames)}, &out); err != nil {
		return false, err
	}
	return out.MovementDetected, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %w", ErrUnavailable, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: provider rejected payload (%d)", ErrInvalidPayload, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, path, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", ErrUnavailable, path, err)
	}
	return nil
}

func encodeImage(image []byte) string {
	return base64.StdEncoding.EncodeToString(image)
}

func encodeFrames(frames [][]byte) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = encodeImage(f)
	}
	return out
}
