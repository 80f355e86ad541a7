// Package inference talks to a model server over the KServe v2 (Open
// Inference Protocol) REST API.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/stylebot/core/config"
	"github.com/m3rciful/stylebot/core/logger"
)

const (
	defaultDialTimeout     = 5 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
	defaultKeepAlive       = 30 * time.Second
	maxResponseBytes       = 64 << 20
	maxErrorBody           = 512
	datatypeFP32           = "FP32"
	inputName              = "input"
)

// ErrMalformedResponse is returned when the server reply cannot be used.
var ErrMalformedResponse = errors.New("inference: malformed response")

// Tensor is a dense float32 tensor with its shape.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Elements returns the number of values the shape describes, or -1 when a
// dimension is negative or the product overflows int64.
func (t Tensor) Elements() int64 {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		if d < 0 {
			return -1
		}
		if d != 0 && n > math.MaxInt64/d {
			return -1
		}
		n *= d
	}
	return n
}

// StatusError reports a non-2xx reply from the model server.
type StatusError struct {
	Model  string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inference: model %s: status %d", e.Model, e.Status)
	}
	return fmt.Sprintf("inference: model %s: status %d: %s", e.Model, e.Status, e.Body)
}

type tensorPayload struct {
	Name     string    `json:"name"`
	Shape    []int64   `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float32 `json:"data"`
}

type inferRequest struct {
	ID     string          `json:"id"`
	Inputs []tensorPayload `json:"inputs"`
}

type inferResponse struct {
	ID         string          `json:"id"`
	ModelName  string          `json:"model_name"`
	Outputs    []tensorPayload `json:"outputs"`
	ErrMessage string          `json:"error"`
}

// Client calls a single inference server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client from the inference config section. The request
// deadline comes from the caller's context; the client adds none of its own.
func NewClient(cfg config.InferenceConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("inference: invalid base url %q", cfg.BaseURL)
	}
	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    buildHTTPClient(),
	}, nil
}

func buildHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     defaultIdleConnTimeout,
			TLSHandshakeTimeout: defaultDialTimeout,
		},
	}
}

// Infer runs model on one input tensor and returns the first output tensor.
// It performs exactly one HTTP request.
func (c *Client) Infer(ctx context.Context, model string, in Tensor) (Tensor, error) {
	if model == "" {
		return Tensor{}, errors.New("inference: empty model id")
	}
	if int64(len(in.Data)) != in.Elements() {
		return Tensor{}, fmt.Errorf("inference: input has %d values for shape %v", len(in.Data), in.Shape)
	}

	reqID := uuid.NewString()
	body, err := json.Marshal(inferRequest{
		ID: reqID,
		Inputs: []tensorPayload{{
			Name:     inputName,
			Shape:    in.Shape,
			Datatype: datatypeFP32,
			Data:     in.Data,
		}},
	})
	if err != nil {
		return Tensor{}, fmt.Errorf("inference: encode request: %w", err)
	}

	endpoint := c.baseURL + "/v2/models/" + url.PathEscape(model) + "/infer"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Tensor{}, fmt.Errorf("inference: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn(ctx, logger.CompInference, "infer.fail",
			slog.String("model", model),
			slog.String("request_id", reqID),
			slog.Duration("duration", logger.Took(start)),
			logger.Err(err),
		)
		return Tensor{}, fmt.Errorf("inference: model %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serr := &StatusError{Model: model, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		logger.Warn(ctx, logger.CompInference, "infer.fail",
			slog.String("model", model),
			slog.String("request_id", reqID),
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", logger.Took(start)),
		)
		return Tensor{}, serr
	}

	var decoded inferResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return Tensor{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if decoded.ErrMessage != "" {
		return Tensor{}, fmt.Errorf("%w: %s", ErrMalformedResponse, decoded.ErrMessage)
	}
	if len(decoded.Outputs) == 0 {
		return Tensor{}, fmt.Errorf("%w: no outputs", ErrMalformedResponse)
	}
	out := decoded.Outputs[0]
	if out.Datatype != "" && out.Datatype != datatypeFP32 {
		return Tensor{}, fmt.Errorf("%w: datatype %s", ErrMalformedResponse, out.Datatype)
	}
	result := Tensor{Shape: out.Shape, Data: out.Data}
	if int64(len(result.Data)) != result.Elements() {
		return Tensor{}, fmt.Errorf("%w: %d values for shape %v", ErrMalformedResponse, len(result.Data), result.Shape)
	}

	logger.Debug(ctx, logger.CompInference, "infer.done",
		slog.String("model", model),
		slog.String("request_id", reqID),
		slog.Int("http_code", resp.StatusCode),
		slog.Duration("duration", logger.Took(start)),
	)
	return result, nil
}
