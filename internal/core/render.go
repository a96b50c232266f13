package core

import (
	"fmt"
	"strings"

	"github.com/khroma-labs/khroma/internal/vectorindex"
)

// NoMatchMessage is the literal answer when the index returns zero matches.
// The search paths never produce an empty response.
const NoMatchMessage = "I couldn't find any products matching your query."

// RenderMatches formats index matches into the markdown answer streamed back
// to the caller: one block per product, similarity score to 4 decimals.
func RenderMatches(matches []vectorindex.Match) string {
	if len(matches) == 0 {
		return NoMatchMessage
	}

	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, fmt.Sprintf(
			"### %s\n**Category:** %s\n**Brand:** %s\n**Price:** $%s\n**Description:** %s\n*(Similarity Score: %.4f)*",
			m.Metadata.Name,
			m.Metadata.Category,
			m.Metadata.Brand,
			m.Metadata.Price,
			m.Metadata.Description,
			m.Score,
		))
	}
	return "Here are the top results I found:\n\n" + strings.Join(blocks, "\n\n---\n\n")
}
