package composer

import (
	"fmt"
	"strings"
)

const defaultMaxContextTokens = 4000

const documentsHeader = "\n\n[Uploaded Files]\n"

// Document is one uploaded file offered as context.
type Document struct {
	Name string
	Text string
}

// Composer assembles system prompts from a base instruction and uploaded
// documents, keeping the injected documents within a token budget.
type Composer struct {
	MaxContextTokens int
}

// New creates a Composer with the given token budget for injected context.
// If maxContextTokens <= 0, the default (4000) is used.
func New(maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Composer{MaxContextTokens: maxContextTokens}
}

// Compose appends as many documents as fit in the budget to base. Documents
// are taken in the given order; one that does not fit is skipped and later,
// smaller ones may still be included.
func (c *Composer) Compose(base string, docs []Document) string {
	if len(docs) == 0 {
		return base
	}

	remaining := c.MaxContextTokens - EstimateTokens(documentsHeader)
	var selected []string
	for _, d := range docs {
		entry := formatDocument(d)
		tokens := EstimateTokens(entry)
		if tokens > remaining {
			continue
		}
		selected = append(selected, entry)
		remaining -= tokens
	}
	if len(selected) == 0 {
		return base
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString(documentsHeader)
	for _, entry := range selected {
		sb.WriteString(entry)
	}
	return sb.String()
}

func formatDocument(d Document) string {
	return fmt.Sprintf("--- %s ---\n%s\n\n", d.Name, d.Text)
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
