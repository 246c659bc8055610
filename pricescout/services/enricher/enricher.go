// Package enricher attaches a product image to each filtered candidate by
// visiting its detail page.
package enricher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pricescout/pricescout/services/browser"
	"pricescout/pricescout/services/extractor"
	"pricescout/pricescout/utils/logging"
	"pricescout/pricescout/utils/types"

	"go.uber.org/zap"
)

// Enrich loads every candidate's detail page concurrently on sess and fills in
// ImageURL. The returned slice keeps the input order and is a copy; a failed
// candidate keeps an empty image and its error is reported in errs, which has
// one slot per candidate (nil on success). A panic while fetching one image
// is recovered into that candidate's error.
func Enrich(ctx context.Context, sess browser.Session, strategy extractor.Strategy, candidates []types.Listing, timeout time.Duration) ([]types.Listing, []error) {
	enriched := make([]types.Listing, len(candidates))
	copy(enriched, candidates)
	errs := make([]error, len(candidates))

	var wg sync.WaitGroup
	for i := range enriched {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("%w: panic: %v", types.ErrImageFetch, r)
					logging.ErrorLogger.Error("image fetch panicked",
						zap.String("run_id", logging.RunID(ctx)),
						zap.String("url", enriched[i].DetailURL),
						zap.Any("panic", r),
					)
				}
			}()
			image, err := fetchImage(ctx, sess, strategy, enriched[i].DetailURL, timeout)
			if err != nil {
				errs[i] = err
				logging.ErrorLogger.Warn("image fetch failed",
					zap.String("run_id", logging.RunID(ctx)),
					zap.String("url", enriched[i].DetailURL),
					zap.Error(err),
				)
				return
			}
			enriched[i].ImageURL = image
		}(i)
	}
	wg.Wait()
	return enriched, errs
}

func fetchImage(ctx context.Context, sess browser.Session, strategy extractor.Strategy, detailURL string, timeout time.Duration) (string, error) {
	if detailURL == "" {
		return "", fmt.Errorf("%w: listing has no detail url", types.ErrImageFetch)
	}
	html, err := extractor.Load(ctx, sess, detailURL, timeout)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrImageFetch, err)
	}
	image, err := strategy.ParseImage(html)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrImageFetch, err)
	}
	return image, nil
}

// Failures counts the non-nil entries of errs.
func Failures(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}
