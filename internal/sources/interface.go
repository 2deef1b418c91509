package sources

import (
	"context"
	"strings"
	"time"

	"github.com/findora/tool-radar/internal/models"
)

// Source interface defines the contract for all mention sources
type Source interface {
	GetName() string
	FetchMentions(ctx context.Context, keywords []string, since time.Duration) ([]models.Mention, error)
	IsEnabled() bool
}

// matchKeywords returns the keywords that occur in text as whole words,
// ignoring case
func matchKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, keyword := range keywords {
		k := strings.ToLower(strings.TrimSpace(keyword))
		if k != "" && containsWord(lower, k) {
			matched = append(matched, keyword)
		}
	}
	return matched
}

func containsWord(text, word string) bool {
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(word)
		if !wordByte(text, start-1) && !wordByte(text, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func wordByte(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return false
	}
	c := text[i]
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

func deduplicateMentions(mentions []models.Mention) []models.Mention {
	seen := make(map[string]bool)
	var unique []models.Mention

	for _, mention := range mentions {
		if !seen[mention.ID] {
			seen[mention.ID] = true
			unique = append(unique, mention)
		}
	}

	return unique
}
