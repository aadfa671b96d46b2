package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nyaysetu/nyaysetu"
	"github.com/nyaysetu/nyaysetu/monitoring"
	"github.com/nyaysetu/nyaysetu/provider"
	"github.com/nyaysetu/nyaysetu/state"
)

type fakeOllama struct {
	tagsStatus     int
	generateStatus int
	generateBody   string
	generateDelay  time.Duration

	tagsCalls     atomic.Int32
	generateCalls atomic.Int32
	lastRequest   atomic.Pointer[generateRequest]
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/tags":
		f.tagsCalls.Add(1)
		w.WriteHeader(f.tagsStatus)
		_, _ = w.Write([]byte(`{"models":[]}`))
	case "/api/generate":
		f.generateCalls.Add(1)
		var request generateRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err == nil {
			f.lastRequest.Store(&request)
		}
		if f.generateDelay > 0 {
			select {
			case <-time.After(f.generateDelay):
			case <-r.Context().Done():
				return
			}
		}
		w.WriteHeader(f.generateStatus)
		_, _ = w.Write([]byte(f.generateBody))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestEndpoint(t *testing.T, baseUrl string, generateTimeout time.Duration) (*Endpoint, state.Manager) {
	logger := zaptest.NewLogger(t).Sugar()
	stateManager := state.NewMemoryManager()

	endpoint, err := NewEndpoint(Config{
		BaseUrl:         baseUrl,
		Model:           "llama3.2",
		ProbeTimeout:    time.Second,
		GenerateTimeout: generateTimeout,
	}, stateManager, monitoring.NewNopManager(logger), logger)
	require.NoError(t, err)

	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC))
	endpoint.clock = mockClock
	return endpoint, stateManager
}

func TestNewEndpoint(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	monitor := monitoring.NewNopManager(logger)

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{BaseUrl: "http://localhost:11434/", Model: "llama3.2"}, false},
		{"relative url", Config{BaseUrl: "localhost", Model: "llama3.2"}, true},
		{"missing model", Config{BaseUrl: "http://localhost:11434"}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			endpoint, err := NewEndpoint(test.config, state.NewMemoryManager(), monitor, logger)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "http://localhost:11434", endpoint.BaseUrl())
			assert.Equal(t, nyaysetu.BackendLocal, endpoint.Name())
		})
	}
}

func TestCheckAvailability(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected bool
	}{
		{"ok", http.StatusOK, true},
		{"server error", http.StatusInternalServerError, false},
		{"created is not ok", http.StatusCreated, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fake := &fakeOllama{tagsStatus: test.status}
			server := httptest.NewServer(fake)
			defer server.Close()

			endpoint, stateManager := newTestEndpoint(t, server.URL, time.Second)

			assert.Equal(t, test.expected, endpoint.CheckAvailability(context.Background()))

			availability, err := stateManager.LoadAvailability(context.Background(), nyaysetu.BackendLocal)
			require.NoError(t, err)
			assert.Equal(t, test.expected, availability.Available)
			assert.False(t, availability.CheckedAt.IsZero())
		})
	}

	t.Run("unreachable server", func(t *testing.T) {
		server := httptest.NewServer(&fakeOllama{})
		server.Close()

		endpoint, _ := newTestEndpoint(t, server.URL, time.Second)
		assert.False(t, endpoint.CheckAvailability(context.Background()))
	})
}

func TestQuery_Success(t *testing.T) {
	fake := &fakeOllama{
		tagsStatus:     http.StatusOK,
		generateStatus: http.StatusOK,
		generateBody:   `{"model":"llama3.2:latest","response":"X","prompt_eval_count":12,"eval_count":5}`,
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	endpoint, _ := newTestEndpoint(t, server.URL, time.Second)

	result := endpoint.Query(context.Background(), "What is Section 420 IPC?")
	require.Equal(t, provider.OutcomeSuccess, result.Outcome)
	require.True(t, result.Ok())

	answer := result.Answer
	assert.Equal(t, "X", answer.Answer)
	assert.Equal(t, 0.85, *answer.Confidence)
	assert.Nil(t, answer.Sources)
	assert.Equal(t, nyaysetu.BackendLocal, answer.Metadata[nyaysetu.MetadataBackend])
	assert.Equal(t, "llama3.2", answer.Metadata[nyaysetu.MetadataModel])
	assert.Equal(t, "llama3.2:latest", answer.Metadata["model_info"])
	assert.Equal(t, 12, answer.Metadata["prompt_eval_count"])
	assert.Equal(t, 5, answer.Metadata["eval_count"])
	assert.Equal(t, "2024-05-01T10:30:00Z", answer.Metadata[nyaysetu.MetadataTimestamp])

	request := fake.lastRequest.Load()
	require.NotNil(t, request)
	assert.Equal(t, "llama3.2", request.Model)
	assert.False(t, request.Stream)
	assert.Equal(t, 0.7, request.Options.Temperature)
	assert.Equal(t, 0.9, request.Options.TopP)
	assert.Equal(t, 512, request.Options.NumPredict)
	assert.Contains(t, request.Prompt, "Query: What is Section 420 IPC?")
	assert.Equal(t, int32(1), fake.tagsCalls.Load())
}

func TestQuery_MissingFields(t *testing.T) {
	fake := &fakeOllama{
		tagsStatus:     http.StatusOK,
		generateStatus: http.StatusOK,
		generateBody:   `{}`,
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	endpoint, _ := newTestEndpoint(t, server.URL, time.Second)

	result := endpoint.Query(context.Background(), "query")
	require.True(t, result.Ok())
	assert.Equal(t, "No response generated", result.Answer.Answer)
	assert.Equal(t, 0, result.Answer.Metadata["eval_count"])
	assert.Equal(t, "", result.Answer.Metadata["model_info"])
}

func TestQuery_Unavailable(t *testing.T) {
	fake := &fakeOllama{tagsStatus: http.StatusServiceUnavailable}
	server := httptest.NewServer(fake)
	defer server.Close()

	endpoint, _ := newTestEndpoint(t, server.URL, time.Second)

	result := endpoint.Query(context.Background(), "query")
	assert.Equal(t, provider.OutcomeUnavailable, result.Outcome)
	assert.Error(t, result.Err)
	assert.Equal(t, int32(0), fake.generateCalls.Load())
}

func TestQuery_Failures(t *testing.T) {
	tests := []struct {
		name  string
		fake  *fakeOllama
		after time.Duration
	}{
		{
			name:  "non-200 status",
			fake:  &fakeOllama{tagsStatus: http.StatusOK, generateStatus: http.StatusInternalServerError, generateBody: `{"error":"model not found"}`},
			after: time.Second,
		},
		{
			name:  "malformed body",
			fake:  &fakeOllama{tagsStatus: http.StatusOK, generateStatus: http.StatusOK, generateBody: `not json`},
			after: time.Second,
		},
		{
			name:  "blank response",
			fake:  &fakeOllama{tagsStatus: http.StatusOK, generateStatus: http.StatusOK, generateBody: `{"response":"  ","eval_count":5}`},
			after: time.Second,
		},
		{
			name:  "timeout",
			fake:  &fakeOllama{tagsStatus: http.StatusOK, generateStatus: http.StatusOK, generateBody: `{"response":"late"}`, generateDelay: 2 * time.Second},
			after: 50 * time.Millisecond,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(test.fake)
			defer server.Close()

			endpoint, _ := newTestEndpoint(t, server.URL, test.after)

			result := endpoint.Query(context.Background(), "query")
			assert.Equal(t, provider.OutcomeFailed, result.Outcome)
			assert.Nil(t, result.Answer)
			assert.Error(t, result.Err)
			assert.Equal(t, int32(1), test.fake.generateCalls.Load())
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Can my landlord keep the deposit? 100% of it")

	assert.Contains(t, prompt, "Indian legal assistant")
	assert.Contains(t, prompt, "Query: Can my landlord keep the deposit? 100% of it\n")
	assert.Contains(t, prompt, "4. Disclaimer about seeking professional legal advice")
	assert.True(t, strings.HasSuffix(prompt, "\n\nResponse:"))
}
