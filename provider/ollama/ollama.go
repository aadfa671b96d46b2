package ollama

import (
	"bytes"
	"context"
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
	"github.com/nyaysetu/nyaysetu/monitoring"
	"github.com/nyaysetu/nyaysetu/provider"
	"github.com/nyaysetu/nyaysetu/state"
)

const (
	confidence       = 0.85
	noResponseAnswer = "No response generated"

	promptTemplate = "You are a knowledgeable Indian legal assistant. Provide accurate, helpful legal information based on Indian law.\n" +
		"\n" +
		"Query: %s\n" +
		"\n" +
		"Please provide:\n" +
		"1. A clear, informative response about the legal matter\n" +
		"2. Relevant legal provisions or acts if applicable\n" +
		"3. Practical guidance where appropriate\n" +
		"4. Disclaimer about seeking professional legal advice\n" +
		"\n" +
		"Response:"
)

type Config struct {
	// E.g., http://localhost:11434
	BaseUrl string

	// E.g., llama3.2
	Model string

	ProbeTimeout    time.Duration
	GenerateTimeout time.Duration
}

// Endpoint talks to a local Ollama server. It is both the availability prober and
// the first backend of the fallback chain.
type Endpoint struct {
	baseUrl        string
	model          string
	probeClient    *http.Client
	generateClient *http.Client
	state          state.Manager
	monitor        monitoring.Monitor
	clock          clock.Clock
	logger         *zap.SugaredLogger
}

var (
	_ provider.Backend = (*Endpoint)(nil)
	_ provider.Prober  = (*Endpoint)(nil)
)

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Model           string  `json:"model"`
	Response        *string `json:"response"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

func NewEndpoint(config Config, stateManager state.Manager, monitor monitoring.Monitor, logger *zap.SugaredLogger) (*Endpoint, error) {
	parsedBaseUrl, err := url.Parse(config.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if parsedBaseUrl.Scheme == "" || parsedBaseUrl.Host == "" {
		return nil, fmt.Errorf("invalid endpoint: %q is not an absolute URL", config.BaseUrl)
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &Endpoint{
		baseUrl:        strings.TrimSuffix(config.BaseUrl, "/"),
		model:          config.Model,
		probeClient:    &http.Client{Timeout: config.ProbeTimeout},
		generateClient: &http.Client{Timeout: config.GenerateTimeout},
		state:          stateManager,
		monitor:        monitor,
		clock:          clock.New(),
		logger:         logger,
	}, nil
}

func (e *Endpoint) Name() string {
	return nyaysetu.BackendLocal
}

func (e *Endpoint) BaseUrl() string {
	return e.baseUrl
}

func (e *Endpoint) Model() string {
	return e.model
}

// CheckAvailability reports whether the server lists its models. It never fails: any
// error counts as unavailable. The result is also recorded for the observability endpoints.
func (e *Endpoint) CheckAvailability(ctx context.Context) bool {
	available := e.probe(ctx)

	if err := e.state.SaveAvailability(ctx, e.Name(), available); err != nil {
		e.logger.Warnw("Failed to record availability", "backend", e.Name(), "error", err)
	}
	e.monitor.RecordAvailability(ctx, e.Name(), available)
	return available
}

func (e *Endpoint) probe(ctx context.Context) bool {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseUrl+"/api/tags", nil)
	if err != nil {
		e.logger.Warnw("Failed to create probe request", "error", err)
		return false
	}

	httpResponse, err := e.probeClient.Do(httpRequest)
	if err != nil {
		e.logger.Infow("Ollama is not reachable", "url", e.baseUrl, "error", err)
		return false
	}
	defer httpResponse.Body.Close()
	_, _ = io.Copy(io.Discard, httpResponse.Body)

	if httpResponse.StatusCode != http.StatusOK {
		e.logger.Infow("Ollama probe returned unexpected status", "url", e.baseUrl, "status", httpResponse.StatusCode)
		return false
	}
	return true
}

// Query probes the server and, when it is up, generates an answer in a single
// non-streaming call.
func (e *Endpoint) Query(ctx context.Context, query string) (result provider.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = provider.Failed(fmt.Errorf("panic while querying ollama: %v", r))
		}
	}()

	if !e.CheckAvailability(ctx) {
		return provider.Unavailable(fmt.Errorf("ollama at %s is not available", e.baseUrl))
	}

	answer, err := e.generate(ctx, query)
	if err != nil {
		e.logger.Warnw("Ollama generation failed", "model", e.model, "error", err)
		return provider.Failed(err)
	}
	return provider.Success(answer)
}

func (e *Endpoint) generate(ctx context.Context, query string) (*nyaysetu.Answer, error) {
	body, err := json.Marshal(generateRequest{
		Model:  e.model,
		Prompt: BuildPrompt(query),
		Stream: false,
		Options: generateOptions{
			Temperature: 0.7,
			TopP:        0.9,
			NumPredict:  512,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseUrl+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	httpResponse, err := e.generateClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResponse.Body.Close()

	responseBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", httpResponse.StatusCode, string(responseBody))
	}

	var response generateResponse
	if err := json.Unmarshal(responseBody, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	text := noResponseAnswer
	if response.Response != nil {
		text = *response.Response
	}
	if strings.TrimSpace(text) == "" {
		return nil, provider.ErrBlankAnswer
	}

	return nyaysetu.NewAnswer(text, e.Name(), e.clock.Now(), confidence, map[string]any{
		nyaysetu.MetadataModel: e.model,
		"model_info":           response.Model,
		"prompt_eval_count":    response.PromptEvalCount,
		"eval_count":           response.EvalCount,
	}), nil
}

// BuildPrompt wraps the raw query in the legal-assistant instructions.
func BuildPrompt(query string) string {
	return fmt.Sprintf(promptTemplate, query)
}
