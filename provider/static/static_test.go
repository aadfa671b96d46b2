package static

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyaysetu/nyaysetu"
	"github.com/nyaysetu/nyaysetu/provider"
)

func TestGenerate(t *testing.T) {
	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC))
	generator := NewGeneratorWithClock(mockClock)

	query := `What does "Section 498A" cover? 100%`
	answer := generator.Generate(query)

	assert.Contains(t, answer.Answer, `"`+query+`"`)
	assert.True(t, strings.HasPrefix(answer.Answer, "I apologize, but the AI legal assistant"))
	for _, heading := range []string{"**General Legal Resources:**", "**Common Legal Information:**", "**Important Disclaimer:**"} {
		assert.Contains(t, answer.Answer, heading)
	}
	for _, resource := range []string{"sci.gov.in", "lawmin.gov.in", "indiankanoon.org", "barcouncilofindia.org"} {
		assert.Contains(t, answer.Answer, resource)
	}

	require.NotNil(t, answer.Confidence)
	assert.Equal(t, 0.3, *answer.Confidence)
	assert.Nil(t, answer.Sources)
	assert.Equal(t, map[string]any{
		nyaysetu.MetadataBackend:   nyaysetu.BackendStaticFallback,
		nyaysetu.MetadataTimestamp: "2024-05-01T10:30:00Z",
		nyaysetu.MetadataFallback:  true,
		nyaysetu.MetadataReason:    "all_backends_unavailable",
	}, answer.Metadata)
}

func TestQueryAlwaysSucceeds(t *testing.T) {
	result := NewGenerator().Query(context.Background(), "")

	assert.Equal(t, provider.OutcomeSuccess, result.Outcome)
	assert.True(t, result.Ok())
	assert.NotEmpty(t, result.Answer.Answer)
}
