package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newProviderServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(srv.URL+"/", srv.Client())
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}
	return c
}

func TestHTTPClientEmbed(t *testing.T) {
	image := testImage()
	c := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathEmbed || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Image != base64.StdEncoding.EncodeToString(image) {
			t.Error("image was not base64-encoded")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.1, 0.2, 0.3}})
	})

	vec, err := c.Embed(context.Background(), image)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Fatalf("unexpected embedding %v", vec)
	}
}

func TestHTTPClientLivenessAndSignals(t *testing.T) {
	c := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req framesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch r.URL.Path {
		case pathLiveness:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"is_live":    true,
				"confidence": 91.5,
				"details":    map[string]any{"frames": len(req.Frames)},
			})
		case pathBlink:
			if len(req.Frames) != 3 {
				t.Errorf("blink expects 3 frames, got %d", len(req.Frames))
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"blink_detected": true})
		case pathMovement:
			_ = json.NewEncoder(w).Encode(map[string]any{"movement_detected": false})
		default:
			http.NotFound(w, r)
		}
	})

	frames := [][]byte{testImage(), testImage(), testImage(), testImage()}
	sig, err := c.Liveness(context.Background(), frames)
	if err != nil {
		t.Fatalf("Liveness failed: %v", err)
	}
	if !sig.IsLive || sig.Confidence != 91.5 || sig.Details["frames"] != float64(4) {
		t.Fatalf("unexpected liveness signal %+v", sig)
	}

	blink, err := c.Blink(context.Background(), frames[0], frames[1], frames[2])
	if err != nil || !blink {
		t.Fatalf("Blink = %v, %v", blink, err)
	}

	moved, err := c.Movement(context.Background(), frames)
	if err != nil || moved {
		t.Fatalf("Movement = %v, %v", moved, err)
	}
}

func TestHTTPClientStatusMapping(t *testing.T) {
	status := http.StatusInternalServerError
	c := newProviderServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})

	if _, err := c.Embed(context.Background(), testImage()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for 500, got %v", err)
	}

	status = http.StatusUnprocessableEntity
	if _, err := c.Embed(context.Background(), testImage()); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for 422, got %v", err)
	}
}

func TestHTTPClientMalformedBodyIsUnavailable(t *testing.T) {
	c := newProviderServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})

	if _, err := c.Embed(context.Background(), testImage()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGuardedHTTPClientTimesOut(t *testing.T) {
	release := make(chan struct{})
	c := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	guarded := Guard(c, Config{EmbedTimeout: 30 * time.Millisecond})
	_, err := guarded.Embed(context.Background(), testImage())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewHTTPClientRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://host", "http://"} {
		if _, err := NewHTTPClient(raw, nil); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
