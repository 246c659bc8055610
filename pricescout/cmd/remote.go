package main

import (
	"context"
	"net/http"
	"strings"

	"pricescout/pricescout/services/scraper"
	httputils "pricescout/pricescout/utils/http"
	"pricescout/pricescout/utils/types"
)

// RemoteClient drives a running pricescout server, posting one group of
// names per request so each call stays short.
type RemoteClient struct {
	BaseURL string
	Token   string
	Group   int
	Client  *http.Client
}

// Search posts names group by group and returns the results in input order.
// onGroup, when set, sees each group's results as they arrive.
func (c *RemoteClient) Search(ctx context.Context, names []string, onGroup func(done, total int)) ([]types.ProductResult, error) {
	headers := map[string]string{}
	if c.Token != "" {
		headers["Authorization"] = "Bearer " + c.Token
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/search"

	out := make([]types.ProductResult, 0, len(names))
	for _, b := range scraper.Partition(names, c.Group) {
		terms := make([]string, 0, len(b.Queries))
		for _, q := range b.Queries {
			// commas separate terms on the wire
			terms = append(terms, strings.ReplaceAll(q.Name, ",", " "))
		}
		var results []types.ProductResult
		req := types.SearchRequest{SearchTerms: strings.Join(terms, ",")}
		if err := httputils.PostJSON(ctx, c.Client, url, headers, req, &results); err != nil {
			return out, err
		}
		out = append(out, results...)
		if onGroup != nil {
			onGroup(len(out), len(names))
		}
	}
	return out, nil
}
