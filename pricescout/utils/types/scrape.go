// pricescout/utils/types/scrape.go
package types

import (
	"math"
)

// PriceUnavailable marks a listing whose page exposed no parseable price.
// It sorts after every real price and is never selected as a candidate.
var PriceUnavailable = math.Inf(1)

type ProductQuery struct {
	Name string
}

type Listing struct {
	Price     float64 `json:"price"`
	Title     string  `json:"title"`
	DetailURL string  `json:"url"`
	ImageURL  string  `json:"image"`
}

// Available reports whether the listing carries a real, finite price.
func (l Listing) Available() bool {
	return !math.IsInf(l.Price, 0) && !math.IsNaN(l.Price)
}

type ProductResult struct {
	ProductName string    `json:"productName"`
	Candidates  []Listing `json:"lowestPrices"`
	Error       string    `json:"error,omitempty"`
	Err         error     `json:"-"`
}

// Failed builds the error-carrying entry for a product whose pipeline could not finish.
func Failed(name string, err error) ProductResult {
	return ProductResult{
		ProductName: name,
		Candidates:  []Listing{},
		Error:       err.Error(),
		Err:         err,
	}
}

// Batch is a contiguous slice of the input, Offset being the position of its
// first query in the full request.
type Batch struct {
	Index   int
	Offset  int
	Queries []ProductQuery
}

type SearchRequest struct {
	Token       string `json:"token,omitempty"`
	SearchTerms string `json:"searchTerms"`
}

type SelectionRequest struct {
	Position int `json:"position"`
	Rank     int `json:"rank"`
}

// StreamEvent is one websocket frame of a streamed search.
type StreamEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type StreamStarted struct {
	RunID            string `json:"runId,omitempty"`
	Total            int    `json:"total"`
	Cached           int    `json:"cached"`
	Batches          int    `json:"batches"`
	EstimatedSeconds int    `json:"estimatedSeconds"`
}

type IndexedResult struct {
	Index  int           `json:"index"`
	Result ProductResult `json:"result"`
}

type StreamBatch struct {
	Index   int             `json:"index"`
	Results []IndexedResult `json:"results"`
}
