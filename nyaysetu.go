package nyaysetu

import (
	"time"

	"github.com/nyaysetu/nyaysetu/utils"
)

// Names reported in Answer.Metadata["backend"].
const (
	BackendLocal          = "local"
	BackendHuggingFace    = "huggingface"
	BackendStaticFallback = "static_fallback"
)

// Metadata keys shared by every producer.
const (
	MetadataBackend   = "backend"
	MetadataTimestamp = "timestamp"
	MetadataModel     = "model"
	MetadataFallback  = "fallback"
	MetadataReason    = "reason"
)

// Answer is the unified result returned by every backend and by the fallback chain.
type Answer struct {
	// Generated answer text. Never empty once returned to a caller.
	Answer string `json:"answer"`

	// Open key/value diagnostics. Always contains "backend" and "timestamp".
	Metadata map[string]any `json:"metadata"`

	// Citations backing the answer. Reserved for retrieval; always nil for now.
	Sources []Source `json:"sources"`

	// Producer-reported certainty in [0, 1].
	Confidence *float64 `json:"confidence"`
}

// Source is a structured citation record.
type Source struct {
	// Human readable title. E.g., "Indian Contract Act, 1872"
	Title string `json:"title"`

	// Location of the cited material, when it has one.
	Url string `json:"url,omitempty"`

	// Quoted passage the answer relies on.
	Excerpt string `json:"excerpt,omitempty"`
}

// Backend returns the producer recorded in the metadata, or an empty string.
func (a *Answer) Backend() string {
	if a == nil || a.Metadata == nil {
		return ""
	}
	backend, _ := a.Metadata[MetadataBackend].(string)
	return backend
}

// NewAnswer builds an answer stamped with the producing backend and time.
// Extra metadata entries are copied after the standard ones and may not override them.
func NewAnswer(text string, backend string, now time.Time, confidence float64, extra map[string]any) *Answer {
	metadata := make(map[string]any, len(extra)+2)
	for key, value := range extra {
		metadata[key] = value
	}
	metadata[MetadataBackend] = backend
	metadata[MetadataTimestamp] = FormatTimestamp(now)

	return &Answer{
		Answer:     text,
		Metadata:   metadata,
		Sources:    nil,
		Confidence: utils.ToPtr(confidence),
	}
}

// FormatTimestamp renders times the way every response reports them.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
