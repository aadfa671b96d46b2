package huggingface

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/nyaysetu/nyaysetu"
	"github.com/nyaysetu/nyaysetu/provider"
)

const (
	DefaultBaseUrl = "https://api-inference.huggingface.co"
	DefaultModel   = "microsoft/DialoGPT-medium"

	confidence = 0.75
)

// ErrNoApiKey is reported when the remote backend was not configured.
var ErrNoApiKey = errors.New("huggingface api key is not configured")

type Config struct {
	// Empty disables the backend.
	ApiKey string

	// E.g., microsoft/DialoGPT-medium
	Model string

	BaseUrl string
	Timeout time.Duration
}

// Endpoint calls the HuggingFace Inference API. It is the second backend of the chain.
type Endpoint struct {
	apiKey  string
	model   string
	baseUrl *url.URL
	client  *http.Client
	clock   clock.Clock
	logger  *zap.SugaredLogger
}

var _ provider.Backend = (*Endpoint)(nil)

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

func NewEndpoint(config Config, logger *zap.SugaredLogger) (*Endpoint, error) {
	if config.BaseUrl == "" {
		config.BaseUrl = DefaultBaseUrl
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	parsedBaseUrl, err := url.Parse(strings.TrimSuffix(config.BaseUrl, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if parsedBaseUrl.Scheme == "" || parsedBaseUrl.Host == "" {
		return nil, fmt.Errorf("invalid endpoint: %q is not an absolute URL", config.BaseUrl)
	}

	return &Endpoint{
		apiKey:  config.ApiKey,
		model:   config.Model,
		baseUrl: parsedBaseUrl,
		client:  &http.Client{Timeout: config.Timeout},
		clock:   clock.New(),
		logger:  logger,
	}, nil
}

func (e *Endpoint) Name() string {
	return nyaysetu.BackendHuggingFace
}

func (e *Endpoint) Model() string {
	return e.model
}

// Configured reports whether an API key was provided. It does not contact the API.
func (e *Endpoint) Configured() bool {
	return e.apiKey != ""
}

func (e *Endpoint) Query(ctx context.Context, query string) (result provider.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = provider.Failed(fmt.Errorf("panic while querying huggingface: %v", r))
		}
	}()

	if !e.Configured() {
		return provider.Unavailable(ErrNoApiKey)
	}

	answer, err := e.infer(ctx, query)
	if err != nil {
		e.logger.Warnw("HuggingFace inference failed", "model", e.model, "error", err)
		return provider.Failed(err)
	}
	return provider.Success(answer)
}

func (e *Endpoint) infer(ctx context.Context, query string) (*nyaysetu.Answer, error) {
	body, err := json.Marshal(inferenceRequest{Inputs: BuildInput(query)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpointPath := fmt.Sprintf("%s/models/%s", e.baseUrl.String(), e.model)
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+e.apiKey)

	httpResponse, err := e.client.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResponse.Body.Close()

	responseBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResponse.StatusCode != http.StatusOK {
		if httpResponse.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("quota exceeded: %s", string(responseBody))
		}
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", httpResponse.StatusCode, string(responseBody))
	}

	shape, err := decodeShape(responseBody)
	if err != nil {
		return nil, err
	}
	text, err := shape.answerText()
	if err != nil {
		return nil, err
	}

	return nyaysetu.NewAnswer(text, e.Name(), e.clock.Now(), confidence, map[string]any{
		nyaysetu.MetadataModel:    e.model,
		nyaysetu.MetadataFallback: true,
	}), nil
}

// BuildInput frames the raw query for a general text-generation model.
func BuildInput(query string) string {
	return fmt.Sprintf("Legal Query: %s\n\nProvide helpful legal information based on Indian law:", query)
}
