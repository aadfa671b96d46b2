// Package static produces the last-resort answer of the fallback chain.
package static

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/nyaysetu/nyaysetu"
	"github.com/nyaysetu/nyaysetu/provider"
)

const (
	confidence = 0.3

	ReasonAllBackendsUnavailable = "all_backends_unavailable"
)

const template = `I apologize, but the AI legal assistant is currently experiencing technical difficulties. Here's some general guidance for your query: "%s"

**General Legal Resources:**
• Supreme Court of India: sci.gov.in
• Ministry of Law and Justice: lawmin.gov.in
• Indian Kanoon (free case law database): indiankanoon.org
• Bar Council of India: barcouncilofindia.org

**Common Legal Information:**
• Fundamental Rights: Articles 12-35 of the Indian Constitution
• Criminal Law: Indian Penal Code (IPC) and Criminal Procedure Code (CrPC)
• Civil Law: Code of Civil Procedure (CPC) and Indian Contract Act
• Personal Laws: Vary based on religion and community

**Important Disclaimer:**
This is a general response due to technical difficulties. Always seek professional legal advice for your specific situation. Laws may have changed since the last update.`

// Generator never fails and performs no I/O.
type Generator struct {
	clock clock.Clock
}

var _ provider.Backend = (*Generator)(nil)

func NewGenerator() *Generator {
	return &Generator{clock: clock.New()}
}

func NewGeneratorWithClock(clk clock.Clock) *Generator {
	return &Generator{clock: clk}
}

func (g *Generator) Name() string {
	return nyaysetu.BackendStaticFallback
}

// Generate embeds the query verbatim into the fixed guidance text.
func (g *Generator) Generate(query string) *nyaysetu.Answer {
	return nyaysetu.NewAnswer(fmt.Sprintf(template, query), g.Name(), g.clock.Now(), confidence, map[string]any{
		nyaysetu.MetadataFallback: true,
		nyaysetu.MetadataReason:   ReasonAllBackendsUnavailable,
	})
}

func (g *Generator) Query(ctx context.Context, query string) provider.Result {
	return provider.Success(g.Generate(query))
}
