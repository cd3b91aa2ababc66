// Package ollama is a client for a locally running Ollama server. Failures
// are classified by kind at the source so callers never have to parse
// rendered error text.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the stock Ollama listen address.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultPrompt is used when a caller supplies no prompt of its own.
	DefaultPrompt = "Describe what you see in this image in detail, focusing on any text, UI elements, and visual content."

	// generateTimeout bounds one generate round trip when the caller sets no
	// deadline of its own. Cold vision models can take minutes to load into
	// memory; a longer configured deadline must be honored.
	generateTimeout = 5 * time.Minute
	probeTimeout    = 10 * time.Second
)

// ErrorKind identifies why a request against the server failed.
type ErrorKind int

const (
	KindUnavailable ErrorKind = iota // connection refused / server not reachable
	KindTimeout                      // request deadline exceeded
	KindModelMissing                 // requested model is not pulled
	KindBadStatus                    // non-2xx response
	KindBadPayload                   // response body was not the expected JSON
)

// Error is the structured failure type returned by all client operations.
type Error struct {
	Kind  ErrorKind
	Model string
	Err   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnavailable:
		return fmt.Sprintf("ollama server not available: %v", e.Err)
	case KindTimeout:
		return fmt.Sprintf("ollama request timed out: %v", e.Err)
	case KindModelMissing:
		return fmt.Sprintf("model %q not found on server", e.Model)
	case KindBadStatus:
		return fmt.Sprintf("ollama API error: %v", e.Err)
	default:
		return fmt.Sprintf("unexpected ollama response: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Hint returns a remediation line for user-facing error text, or "" when
// there is nothing actionable.
func (e *Error) Hint() string {
	switch e.Kind {
	case KindModelMissing:
		return fmt.Sprintf("To fix: ollama pull %s", e.Model)
	case KindUnavailable, KindTimeout:
		return "Ensure Ollama is running: ollama serve"
	default:
		return ""
	}
}

// HintFor extracts the remediation hint when err is (or wraps) an *Error.
func HintFor(err error) string {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Hint()
	}
	return ""
}

// Model is one entry from GET /api/tags.
type Model struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// GenerateRequest is the POST /api/generate body. Images carry base64 PNGs.
type GenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type tagsResponse struct {
	Models []Model `json:"models"`
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// Client talks to one Ollama server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL. An empty URL selects the
// default local server.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// No transport-level timeout: each operation is bounded by its request
	// context, so configured deadlines are not capped here.
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// BaseURL reports the server address this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// ListModels enumerates the models the server has pulled.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindBadStatus, Err: fmt.Errorf("GET /api/tags returned status %d", resp.StatusCode)}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, &Error{Kind: KindBadPayload, Err: err}
	}
	return tags.Models, nil
}

// HasModel reports whether the named model is available on the server.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Health probes the server and returns the number of available models.
func (c *Client) Health(ctx context.Context) (int, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return 0, err
	}
	return len(models), nil
}

// Generate performs one blocking request/response exchange.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, generateTimeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Printf("ollama: sending generate request, model=%s, images=%d", req.Model, len(req.Images))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &Error{Kind: KindBadStatus, Model: req.Model, Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Kind: KindBadPayload, Model: req.Model, Err: err}
	}
	return out.Response, nil
}

// Describe verifies the model is present, encodes the PNG image and asks the
// model to describe it. An empty prompt selects DefaultPrompt.
func (c *Client) Describe(ctx context.Context, model, prompt string, imagePNG []byte) (string, error) {
	ok, err := c.HasModel(ctx, model)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &Error{Kind: KindModelMissing, Model: model}
	}

	if prompt == "" {
		prompt = DefaultPrompt
	}

	log.Printf("ollama: describing image with model %s (%d bytes)", model, len(imagePNG))

	return c.Generate(ctx, GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Images: []string{base64.StdEncoding.EncodeToString(imagePNG)},
		Stream: false,
	})
}

// Pull asks the server to download a model. Blocks until the pull finishes.
func (c *Client) Pull(ctx context.Context, name string) error {
	body, err := json.Marshal(pullRequest{Name: name, Stream: false})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Error{Kind: KindBadStatus, Model: name, Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))}
	}
	return nil
}

// classifyTransport maps net/http transport failures to error kinds.
func classifyTransport(err error) *Error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindUnavailable, Err: err}
}
