// Package vision is a thin client for the Azure Computer Vision v3.2 REST
// API, covering the two calls the gateway needs: image analysis with the
// Objects and Tags features, and the model listing used as a health check.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/visiongate/visiongate/pkg/models"
)

const (
	analyzePath    = "/vision/v3.2/analyze"
	listModelsPath = "/vision/v3.2/models"
	keyHeader      = "Ocp-Apim-Subscription-Key"
)

// StatusError is a non-200 response from the service. Timeouts and server
// errors classify as transient for the retry executor; client errors do not.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vision: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

// Client calls the Computer Vision endpoint. Safe for concurrent use.
type Client struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
	limiter  *rate.Limiter
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

// WithRateLimit paces requests client-side at rps with burst 1. Zero or
// negative rps disables pacing.
func WithRateLimit(rps float64) Option {
	return func(cl *Client) {
		if rps > 0 {
			cl.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// New creates a Client for the given endpoint and key. Credential validation
// lives in config; this constructor assumes both are present.
func New(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		httpc:    &http.Client{Timeout: 30 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// analyzeResponse mirrors the wire format of the analyze call.
type analyzeResponse struct {
	Objects []struct {
		Rectangle struct {
			X int `json:"x"`
			Y int `json:"y"`
			W int `json:"w"`
			H int `json:"h"`
		} `json:"rectangle"`
		Object     string  `json:"object"`
		Confidence float64 `json:"confidence"`
	} `json:"objects"`
	Tags []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"tags"`
}

// Analyze submits raw image bytes for object and tag detection. Each call is
// billed against the service quota; the gateway decides whether to make it.
func (c *Client) Analyze(ctx context.Context, image []byte) (*models.DetectionResult, error) {
	body, err := c.do(ctx, http.MethodPost, analyzePath+"?visualFeatures=Objects,Tags", image)
	if err != nil {
		return nil, err
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("vision: decode analysis: %w", err)
	}

	result := &models.DetectionResult{CreatedAt: c.now().UTC()}
	for _, obj := range parsed.Objects {
		result.Detections = append(result.Detections, models.Detection{
			Label:      obj.Object,
			Confidence: obj.Confidence,
			Location: models.Point3D{
				X: float64(obj.Rectangle.X),
				Y: float64(obj.Rectangle.Y),
				Z: 0,
			},
		})
	}
	for _, tag := range parsed.Tags {
		result.Tags = append(result.Tags, models.Tag{Name: tag.Name, Confidence: tag.Confidence})
	}
	return result, nil
}

// ListModels hits the model listing endpoint. The response body is ignored;
// reaching it at all is the health signal.
func (c *Client) ListModels(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, listModelsPath, nil)
	return err
}

// CheckHealth satisfies the gateway's startup probe.
func (c *Client) CheckHealth(ctx context.Context) error {
	return c.ListModels(ctx)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("vision: create request: %w", err)
	}
	req.Header.Set(keyHeader, c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vision: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}
	return body, nil
}
