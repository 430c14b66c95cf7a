package retrieval

import (
	"context"
	"strings"
)

// QueryExpander produces rephrasings of a query. It may return fewer than n.
type QueryExpander interface {
	ExpandQuery(ctx context.Context, query string, n int) ([]string, error)
}

// expandVariants always puts query first. On expander failure the result is
// just the query and the error is returned for reporting.
func expandVariants(ctx context.Context, e QueryExpander, query string, n int) ([]string, error) {
	variants := []string{query}
	if e == nil || n <= 0 {
		return variants, nil
	}
	extra, err := e.ExpandQuery(ctx, query, n)
	if err != nil {
		return variants, err
	}
	for _, v := range extra {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		variants = append(variants, v)
	}
	return variants, nil
}
