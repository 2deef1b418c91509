package discovery

import (
	"sort"
	"time"

	"github.com/findora/tool-radar/internal/models"
)

// FreshnessCutoff returns the earliest first-seen time admitted by window.
// The zero time is returned when the window admits everything.
func FreshnessCutoff(window models.Freshness, now time.Time) time.Time {
	d := window.Window()
	if d == 0 {
		return time.Time{}
	}
	return now.Add(-d)
}

// Matches reports whether tool satisfies every active predicate of f
func Matches(tool models.Tool, f models.Filters, now time.Time) bool {
	free := tool.Pricing.FreeTier.Normalized()

	if f.TrulyFree && !(free.Exists && !free.RequiresCard && !free.Watermark) {
		return false
	}
	if f.NoSignup && free.RequiresSignup {
		return false
	}
	if f.CommercialUse && !free.CommercialUse {
		return false
	}
	if len(f.PricingModels) > 0 && !containsModel(f.PricingModels, tool.Pricing.Model) {
		return false
	}
	if len(f.Categories) > 0 && !containsCategory(f.Categories, tool.Category) {
		return false
	}
	if cutoff := FreshnessCutoff(f.Freshness, now); !cutoff.IsZero() && tool.FirstSeenAt.Before(cutoff) {
		return false
	}

	return true
}

// Apply returns the tools matching f, in their original order
func Apply(tools []models.Tool, f models.Filters, now time.Time) []models.Tool {
	out := make([]models.Tool, 0, len(tools))
	for _, t := range tools {
		if Matches(t, f, now) {
			out = append(out, t)
		}
	}
	return out
}

// SortTools orders tools in place by the single key of option, descending.
// Ties keep their relative order.
func SortTools(tools []models.Tool, option models.SortOption) {
	sort.SliceStable(tools, func(i, j int) bool {
		a, b := tools[i], tools[j]
		switch option {
		case models.SortRising:
			return a.TrendScore > b.TrendScore
		case models.SortEstablished:
			return a.MentionCount > b.MentionCount
		default:
			return a.FirstSeenAt.After(b.FirstSeenAt)
		}
	})
}

// residual reports whether f has predicates the store cannot evaluate.
// The store only understands a single category.
func residual(f models.Filters) bool {
	return f.TrulyFree || f.NoSignup || f.CommercialUse ||
		len(f.PricingModels) > 0 || len(f.Categories) > 1 ||
		f.Freshness.Window() > 0
}

func paginate(tools []models.Tool, limit, offset int) ([]models.Tool, bool) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(tools) {
		return []models.Tool{}, limit <= 0 && offset < len(tools)
	}
	end := offset + limit
	if end > len(tools) {
		end = len(tools)
	}
	return tools[offset:end], end < len(tools)
}

func containsModel(set []models.PricingModel, m models.PricingModel) bool {
	for _, s := range set {
		if s == m {
			return true
		}
	}
	return false
}

func containsCategory(set []models.Category, c models.Category) bool {
	for _, s := range set {
		if s == c {
			return true
		}
	}
	return false
}
