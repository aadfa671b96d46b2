package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nyaysetu/nyaysetu"
	"github.com/nyaysetu/nyaysetu/config"
	"github.com/nyaysetu/nyaysetu/monitoring"
	"github.com/nyaysetu/nyaysetu/provider"
	"github.com/nyaysetu/nyaysetu/provider/huggingface"
	"github.com/nyaysetu/nyaysetu/provider/ollama"
	"github.com/nyaysetu/nyaysetu/provider/static"
	"github.com/nyaysetu/nyaysetu/state"
	"github.com/nyaysetu/nyaysetu/utils"
)

type BadRequestError struct{ error }

func (e BadRequestError) Unwrap() error { return e.error }

var ErrInvalidBody = errors.New("invalid request body")

type Service struct {
	// Answers queries through the fallback chain.
	orchestrator *Orchestrator

	// First backend. Also probed by the health endpoint and the ping loop.
	local *ollama.Endpoint

	// Second backend. Available whenever it has an API key.
	remote *huggingface.Endpoint

	// Availability recorded by the probes. Read by the root endpoint.
	stateManager state.Manager

	// Interval to refresh the recorded availability. Zero disables the loop.
	pingInterval time.Duration

	// Bearer token required on /ask. Empty disables authentication.
	apiKey string

	clock  clock.Clock
	logger *zap.SugaredLogger
}

type askRequest struct {
	Query string `json:"query"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type rootResponse struct {
	Message         string `json:"message"`
	Status          string `json:"status"`
	LocalAvailable  bool   `json:"ollama_available"`
	RemoteAvailable bool   `json:"huggingface_available"`
	Timestamp       string `json:"timestamp"`
}

type healthResponse struct {
	Status    string         `json:"status"`
	Backends  backendsHealth `json:"backends"`
	Timestamp string         `json:"timestamp"`
}

type backendsHealth struct {
	Local  localHealth  `json:"ollama"`
	Remote remoteHealth `json:"huggingface"`
}

type localHealth struct {
	Available bool   `json:"available"`
	Url       string `json:"url"`
	Model     string `json:"model"`
}

type remoteHealth struct {
	Available bool   `json:"available"`
	Model     string `json:"model"`
}

func NewService(stateManager state.Manager, monitor monitoring.Monitor, config *config.Config, logger *zap.SugaredLogger) (*Service, error) {
	durations, err := config.Durations()
	if err != nil {
		return nil, err
	}

	local, err := ollama.NewEndpoint(ollama.Config{
		BaseUrl:         config.LocalBaseUrl,
		Model:           config.LocalModel,
		ProbeTimeout:    durations.Probe,
		GenerateTimeout: durations.Generate,
	}, stateManager, monitor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create local backend: %w", err)
	}

	remote, err := huggingface.NewEndpoint(huggingface.Config{
		ApiKey:  config.RemoteApiKey,
		Model:   config.RemoteModel,
		BaseUrl: config.RemoteBaseUrl,
		Timeout: durations.Generate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote backend: %w", err)
	}

	return &Service{
		orchestrator: NewOrchestrator([]provider.Backend{local, remote}, static.NewGenerator(), monitor, logger),
		local:        local,
		remote:       remote,
		stateManager: stateManager,
		pingInterval: durations.Ping,
		apiKey:       config.ApiKey,
		clock:        clock.New(),
		logger:       logger,
	}, nil
}

// Router serves the API. The metrics handler is mounted only when it is not nil.
func (s *Service) Router(metricsPath string, metrics http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestIdMiddleware)

	router.HandleFunc("/", s.HandleRoot).Methods(http.MethodGet)
	router.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ask", s.HandleAuthentication(s.HandleAsk)).Methods(http.MethodPost)
	if metrics != nil {
		router.Handle(metricsPath, metrics).Methods(http.MethodGet)
	}
	return router
}

// HandleRoot reports the recorded availability without probing.
func (s *Service) HandleRoot(httpResponse http.ResponseWriter, httpRequest *http.Request) {
	availability, err := s.stateManager.LoadAvailability(httpRequest.Context(), s.local.Name())
	if err != nil {
		requestLogger(httpRequest.Context(), s.logger).Warnw("Failed to load availability", "error", err)
	}

	s.writeJSON(httpResponse, http.StatusOK, rootResponse{
		Message:         "NyaySetu Legal RAG Backend",
		Status:          "running",
		LocalAvailable:  availability.Available,
		RemoteAvailable: s.remote.Configured(),
		Timestamp:       nyaysetu.FormatTimestamp(s.clock.Now()),
	})
}

// HandleHealth probes the local backend before answering.
func (s *Service) HandleHealth(httpResponse http.ResponseWriter, httpRequest *http.Request) {
	localAvailable := s.local.CheckAvailability(httpRequest.Context())

	s.writeJSON(httpResponse, http.StatusOK, healthResponse{
		Status: "healthy",
		Backends: backendsHealth{
			Local: localHealth{
				Available: localAvailable,
				Url:       s.local.BaseUrl(),
				Model:     s.local.Model(),
			},
			Remote: remoteHealth{
				Available: s.remote.Configured(),
				Model:     s.remote.Model(),
			},
		},
		Timestamp: nyaysetu.FormatTimestamp(s.clock.Now()),
	})
}

func (s *Service) HandleAsk(httpResponse http.ResponseWriter, httpRequest *http.Request) {
	defer httpRequest.Body.Close()
	logger := requestLogger(httpRequest.Context(), s.logger)

	bodyBytes, err := io.ReadAll(httpRequest.Body)
	if err != nil {
		logger.Warnw("Failed to read request body", "error", err)
		s.handleError(httpResponse, BadRequestError{fmt.Errorf("%w: %v", ErrInvalidBody, err)})
		return
	}

	var request askRequest
	if err := json.Unmarshal(bodyBytes, &request); err != nil {
		logger.Warnw("Invalid request body", "error", err)
		s.handleError(httpResponse, BadRequestError{fmt.Errorf("%w: %v", ErrInvalidBody, err)})
		return
	}

	logger.Infow("Received query", "query", utils.Truncate(request.Query, maxLoggedQueryLength))

	answer, err := s.orchestrator.Answer(httpRequest.Context(), request.Query)
	if err != nil {
		s.handleError(httpResponse, err)
		return
	}

	s.writeJSON(httpResponse, http.StatusOK, answer)
}

func (s *Service) HandleAuthentication(handler http.HandlerFunc) http.HandlerFunc {
	return func(httpResponse http.ResponseWriter, httpRequest *http.Request) {
		if s.apiKey == "" {
			handler(httpResponse, httpRequest)
			return
		}

		headerSplit := strings.Split(httpRequest.Header.Get("Authorization"), " ")
		if len(headerSplit) != 2 ||
			strings.ToLower(headerSplit[0]) != "bearer" ||
			headerSplit[1] != s.apiKey {
			s.writeJSON(httpResponse, http.StatusUnauthorized, errorResponse{Detail: "Unauthorized"})
			return
		}

		handler(httpResponse, httpRequest)
	}
}

// StartPingLoop refreshes the recorded availability until the context is cancelled.
// Routing never reads what it records.
func (s *Service) StartPingLoop(ctx context.Context) {
	if s.pingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PingBackends(ctx)
		}
	}
}

// PingBackends probes the local backend and logs what is available.
func (s *Service) PingBackends(ctx context.Context) {
	localAvailable := s.local.CheckAvailability(ctx)
	s.logger.Infow("Backend availability",
		"local", localAvailable,
		"local_url", s.local.BaseUrl(),
		"remote", s.remote.Configured(),
	)
}

func (s *Service) handleError(w http.ResponseWriter, err error) {
	var badRequest BadRequestError
	switch {
	case errors.As(err, &badRequest):
		detail := "Invalid request"
		switch {
		case errors.Is(err, ErrEmptyQuery):
			detail = "Query cannot be empty"
		case errors.Is(err, ErrInvalidBody):
			detail = "Invalid request body"
		}
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Detail: detail})
	default:
		s.logger.Errorw("Unexpected error", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Internal server error"})
	}
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorw("Failed to encode JSON response", "error", err)
	}
}
