package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/findora/tool-radar/internal/discovery"
	"github.com/findora/tool-radar/internal/models"
)

const maxLimit = 100

// sortAliases maps the store's sort spellings onto the user-facing options
var sortAliases = map[string]models.SortOption{
	"":            models.SortRecent,
	"rising":      models.SortRising,
	"recent":      models.SortRecent,
	"established": models.SortEstablished,
	"trending":    models.SortRising,
	"freshness":   models.SortRecent,
	"mentions":    models.SortEstablished,
}

// parseListRequest reads the /api/tools query string
func parseListRequest(q url.Values, defaultLimit int) (discovery.Request, error) {
	req := discovery.Request{Limit: defaultLimit}

	sort, ok := sortAliases[strings.ToLower(strings.TrimSpace(q.Get("sort")))]
	if !ok {
		return req, fmt.Errorf("invalid sort %q", q.Get("sort"))
	}
	req.Sort = sort

	for _, v := range listValues(q, "category") {
		c := models.Category(v)
		if !c.Valid() {
			return req, fmt.Errorf("invalid category %q", v)
		}
		req.Filters.Categories = append(req.Filters.Categories, c)
	}

	for _, v := range listValues(q, "pricing") {
		m := models.PricingModel(strings.ToLower(v))
		if !m.Valid() {
			return req, fmt.Errorf("invalid pricing model %q", v)
		}
		req.Filters.PricingModels = append(req.Filters.PricingModels, m)
	}

	var err error
	if req.Filters.TrulyFree, err = boolParam(q, "truly_free"); err != nil {
		return req, err
	}
	if req.Filters.NoSignup, err = boolParam(q, "no_signup"); err != nil {
		return req, err
	}
	if req.Filters.CommercialUse, err = boolParam(q, "commercial_use"); err != nil {
		return req, err
	}

	freshness := models.Freshness(strings.ToLower(q.Get("freshness")))
	if !freshness.Valid() {
		return req, fmt.Errorf("invalid freshness %q", q.Get("freshness"))
	}
	req.Filters.Freshness = freshness

	if v := q.Get("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil || req.Limit < 0 {
			return req, fmt.Errorf("invalid limit %q", v)
		}
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}

	if v := q.Get("offset"); v != "" {
		if req.Offset, err = strconv.Atoi(v); err != nil || req.Offset < 0 {
			return req, fmt.Errorf("invalid offset %q", v)
		}
	}

	return req, nil
}

// listValues collects a parameter given repeatedly and/or comma separated
func listValues(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func boolParam(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, v)
	}
	return b, nil
}
