package huggingface

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/nyaysetu/nyaysetu/provider"
)

const (
	noResponseAnswer    = "No response generated"
	unprocessableAnswer = "Unable to process response from HuggingFace"
)

// Inference models answer in different shapes. Decoding is strict about JSON itself
// and lenient about its layout.
type shapeKind int

const (
	// Non-empty array whose first element is an object.
	listShape shapeKind = iota

	// A single object.
	objectShape

	// Anything else: empty array, scalar or null.
	unknownShape
)

type responseShape struct {
	kind   shapeKind
	object map[string]json.RawMessage
	raw    json.RawMessage
}

func decodeShape(body []byte) (responseShape, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return responseShape{}, fmt.Errorf("response is not valid JSON")
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return responseShape{}, fmt.Errorf("failed to decode list response: %w", err)
		}
		if len(items) == 0 {
			return responseShape{kind: unknownShape, raw: trimmed}, nil
		}
		var first map[string]json.RawMessage
		if err := json.Unmarshal(items[0], &first); err != nil || first == nil {
			return responseShape{}, fmt.Errorf("first element of list response is not an object")
		}
		return responseShape{kind: listShape, object: first, raw: trimmed}, nil
	case '{':
		var object map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &object); err != nil {
			return responseShape{}, fmt.Errorf("failed to decode object response: %w", err)
		}
		return responseShape{kind: objectShape, object: object, raw: trimmed}, nil
	}
	return responseShape{kind: unknownShape, raw: trimmed}, nil
}

// answerText extracts the generated text the way each shape allows.
func (s responseShape) answerText() (string, error) {
	switch s.kind {
	case listShape:
		if text, ok := s.object["generated_text"]; ok {
			return renderText(text)
		}
		return noResponseAnswer, nil
	case objectShape:
		if text, ok := s.object["generated_text"]; ok {
			return renderText(text)
		}
		return compact(s.raw)
	}
	return unprocessableAnswer, nil
}

// Strings are unquoted, any other JSON value keeps its compact JSON text.
// A null or blank text is not an answer.
func renderText(value json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(value)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("generated_text is null: %w", provider.ErrBlankAnswer)
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		rendered, err := compact(trimmed)
		if err != nil {
			return "", err
		}
		text = rendered
	}
	if strings.TrimSpace(text) == "" {
		return "", provider.ErrBlankAnswer
	}
	return text, nil
}

func compact(value json.RawMessage) (string, error) {
	var buffer bytes.Buffer
	if err := json.Compact(&buffer, value); err != nil {
		return "", fmt.Errorf("failed to compact response: %w", err)
	}
	return buffer.String(), nil
}
