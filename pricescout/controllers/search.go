// pricescout/controllers/search.go
package controllers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"pricescout/pricescout/services/scraper"
	"pricescout/pricescout/sources/psql/dao"
	"pricescout/pricescout/sources/psql/models"
	"pricescout/pricescout/utils/logging"
	"pricescout/pricescout/utils/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrHistoryDisabled is returned by run history operations when no database is configured.
var ErrHistoryDisabled = errors.New("run history is not enabled")

const (
	EventStarted = "started"
	EventBatch   = "batch"
	EventDone    = "done"
	EventError   = "error"
)

// SearchRunner is the batch pipeline; *scraper.Orchestrator implements it.
type SearchRunner interface {
	Run(ctx context.Context, names []string, onBatch scraper.BatchFunc) ([]types.ProductResult, error)
	ChunkSize() int
}

// ResultCache stores successful per-product results between runs.
type ResultCache interface {
	GetResult(ctx context.Context, siteID, productName string) (types.ProductResult, error)
	PutResult(ctx context.Context, siteID string, result types.ProductResult) (string, error)
}

// RunStore persists runs and the user's candidate selections.
type RunStore interface {
	CreateRun(ctx context.Context, siteID string, total, cached int) (*models.SearchRun, error)
	SaveResults(ctx context.Context, runID uuid.UUID, results []types.ProductResult) error
	FinishRun(ctx context.Context, runID uuid.UUID, runErr error) error
	GetRun(ctx context.Context, runID uuid.UUID) (*models.SearchRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.SearchRun, error)
	SelectCandidate(ctx context.Context, runID uuid.UUID, position, rank int) error
	ExportRows(ctx context.Context, runID uuid.UUID) ([]dao.ExportRow, error)
}

type SearchController struct {
	runner   SearchRunner
	cache    ResultCache
	runs     RunStore
	siteID   string
	perBatch time.Duration
}

// NewSearchController wires the pipeline. cache and runs are optional and
// must be passed as untyped nil when disabled.
func NewSearchController(runner SearchRunner, cache ResultCache, runs RunStore, siteID string, perBatch time.Duration) *SearchController {
	return &SearchController{
		runner:   runner,
		cache:    cache,
		runs:     runs,
		siteID:   siteID,
		perBatch: perBatch,
	}
}

func (c *SearchController) HistoryEnabled() bool {
	return c.runs != nil
}

// ParseSearchTerms splits the comma-separated searchTerms field into trimmed
// product names. Blank entries are dropped; no names at all is invalid.
func ParseSearchTerms(raw string) ([]string, error) {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: searchTerms must name at least one product", types.ErrInvalidRequest)
	}
	return names, nil
}

// Search runs a full search and returns the results in input order along
// with the run id ("" when history is disabled).
func (c *SearchController) Search(ctx context.Context, req types.SearchRequest) (string, []types.ProductResult, error) {
	return c.SearchStream(ctx, req, nil)
}

// SearchStream is Search with progress events delivered to emit as batches
// complete. emit may be nil.
func (c *SearchController) SearchStream(ctx context.Context, req types.SearchRequest, emit func(types.StreamEvent)) (string, []types.ProductResult, error) {
	if emit == nil {
		emit = func(types.StreamEvent) {}
	}
	names, err := ParseSearchTerms(req.SearchTerms)
	if err != nil {
		return "", nil, err
	}

	results := make([]types.ProductResult, len(names))
	missIdx, missNames := c.lookupCached(ctx, names, results)
	cached := len(names) - len(missNames)

	runID, err := c.startRun(ctx, len(names), cached)
	if err != nil {
		return "", nil, err
	}
	if runID != uuid.Nil {
		ctx = logging.WithRunID(ctx, runID.String())
	}
	defer logging.LogDuration(ctx, "SearchController.Search")()

	batches := scraper.BatchCount(len(missNames), c.runner.ChunkSize())
	emit(types.StreamEvent{Type: EventStarted, Payload: types.StreamStarted{
		RunID:            runIDString(runID),
		Total:            len(names),
		Cached:           cached,
		Batches:          batches,
		EstimatedSeconds: int(scraper.EstimateDuration(batches, c.perBatch).Seconds()),
	}})

	scraped, runErr := c.runner.Run(ctx, missNames, func(b types.Batch, rs []types.ProductResult) {
		indexed := make([]types.IndexedResult, 0, len(rs))
		for j, r := range rs {
			idx := missIdx[b.Offset+j]
			results[idx] = r
			indexed = append(indexed, types.IndexedResult{Index: idx, Result: r})
			c.storeCached(ctx, r)
		}
		emit(types.StreamEvent{Type: EventBatch, Payload: types.StreamBatch{Index: b.Index, Results: indexed}})
	})
	if runErr != nil {
		c.finishRun(ctx, runID, nil, runErr)
		return runIDString(runID), nil, runErr
	}
	for j, r := range scraped {
		results[missIdx[j]] = r
	}

	c.finishRun(ctx, runID, results, nil)
	emit(types.StreamEvent{Type: EventDone, Payload: map[string]string{"runId": runIDString(runID)}})
	return runIDString(runID), results, nil
}

func (c *SearchController) lookupCached(ctx context.Context, names []string, results []types.ProductResult) ([]int, []string) {
	missIdx := make([]int, 0, len(names))
	missNames := make([]string, 0, len(names))
	for i, name := range names {
		if c.cache != nil {
			res, err := c.cache.GetResult(ctx, c.siteID, name)
			if err == nil {
				results[i] = res
				continue
			}
		}
		missIdx = append(missIdx, i)
		missNames = append(missNames, name)
	}
	return missIdx, missNames
}

func (c *SearchController) storeCached(ctx context.Context, r types.ProductResult) {
	if c.cache == nil || r.Err != nil {
		return
	}
	if _, err := c.cache.PutResult(ctx, c.siteID, r); err != nil {
		logging.ErrorLogger.Warn("cache upload failed", zap.String("product", r.ProductName), zap.Error(err))
	}
}

func (c *SearchController) startRun(ctx context.Context, total, cached int) (uuid.UUID, error) {
	if c.runs == nil {
		return uuid.Nil, nil
	}
	run, err := c.runs.CreateRun(ctx, c.siteID, total, cached)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create run: %w", err)
	}
	return run.ID, nil
}

// finishRun persists the outcome; history failures are logged, never surfaced,
// so a completed search still reaches the caller.
func (c *SearchController) finishRun(ctx context.Context, runID uuid.UUID, results []types.ProductResult, runErr error) {
	if c.runs == nil || runID == uuid.Nil {
		return
	}
	// the request ctx may already be cancelled; history is written regardless
	ctx = context.WithoutCancel(ctx)
	if runErr == nil {
		if err := c.runs.SaveResults(ctx, runID, results); err != nil {
			logging.ErrorLogger.Error("failed to save run results", zap.String("run_id", runID.String()), zap.Error(err))
			runErr = err
		}
	}
	if err := c.runs.FinishRun(ctx, runID, runErr); err != nil {
		logging.ErrorLogger.Error("failed to finish run", zap.String("run_id", runID.String()), zap.Error(err))
	}
}

func runIDString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func parseRunID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad run id %q", types.ErrInvalidRequest, raw)
	}
	return id, nil
}

func (c *SearchController) ListRuns(ctx context.Context, limit int) ([]models.SearchRun, error) {
	if c.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return c.runs.ListRuns(ctx, limit)
}

func (c *SearchController) GetRun(ctx context.Context, rawID string) (*models.SearchRun, error) {
	if c.runs == nil {
		return nil, ErrHistoryDisabled
	}
	id, err := parseRunID(rawID)
	if err != nil {
		return nil, err
	}
	return c.runs.GetRun(ctx, id)
}

func (c *SearchController) SelectCandidate(ctx context.Context, rawID string, req types.SelectionRequest) error {
	if c.runs == nil {
		return ErrHistoryDisabled
	}
	id, err := parseRunID(rawID)
	if err != nil {
		return err
	}
	return c.runs.SelectCandidate(ctx, id, req.Position, req.Rank)
}

// Export writes the selected candidates as CSV. Nothing is written when the
// selection is incomplete.
func (c *SearchController) Export(ctx context.Context, rawID string, w io.Writer) error {
	if c.runs == nil {
		return ErrHistoryDisabled
	}
	id, err := parseRunID(rawID)
	if err != nil {
		return err
	}
	rows, err := c.runs.ExportRows(ctx, id)
	if err != nil {
		return err
	}
	return WriteExportCSV(w, rows)
}

// WriteExportCSV writes the "Product Name,Price,URL" sheet.
func WriteExportCSV(w io.Writer, rows []dao.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Product Name", "Price", "URL"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{row.ProductName, strconv.FormatFloat(row.Price, 'f', 2, 64), row.URL}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
