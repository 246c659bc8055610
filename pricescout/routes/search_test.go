package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pricescout/pricescout/config"
	"pricescout/pricescout/controllers"
	"pricescout/pricescout/services/scraper"
	"pricescout/pricescout/utils/types"

	"github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	err error
}

func (s stubRunner) ChunkSize() int { return 2 }

func (s stubRunner) Run(ctx context.Context, names []string, onBatch scraper.BatchFunc) ([]types.ProductResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []types.ProductResult
	for _, b := range scraper.Partition(names, 2) {
		rs := make([]types.ProductResult, 0, len(b.Queries))
		for _, q := range b.Queries {
			rs = append(rs, types.ProductResult{ProductName: q.Name, Candidates: []types.Listing{
				{Price: 99.5, Title: q.Name, DetailURL: "https://item/" + q.Name, ImageURL: "https://img/" + q.Name},
			}})
		}
		out = append(out, rs...)
		onBatch(b, rs)
	}
	return out, nil
}

func newTestServer(t *testing.T, cfg config.Config, runner controllers.SearchRunner) *httptest.Server {
	t.Helper()
	ctrl := controllers.NewSearchController(runner, nil, nil, "mercadolibre_ar", 9*time.Second)
	srv := httptest.NewServer(NewRouter(cfg, ctrl, controllers.NewHealthController(nil)))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPostSearch_ReturnsOrderedResults(t *testing.T) {
	srv := newTestServer(t, config.Config{}, stubRunner{})

	resp := post(t, srv.URL+"/search", `{"searchTerms": "taladro, amoladora , sierra"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Empty(t, resp.Header.Get(RunIDHeader), "history disabled")

	var got []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 3)
	assert.Equal(t, "taladro", got[0]["productName"])
	assert.Equal(t, "amoladora", got[1]["productName"])
	assert.Equal(t, "sierra", got[2]["productName"])

	prices := got[0]["lowestPrices"].([]any)
	require.Len(t, prices, 1)
	first := prices[0].(map[string]any)
	assert.Equal(t, 99.5, first["price"])
	assert.Equal(t, "https://item/taladro", first["url"])
	assert.Equal(t, "https://img/taladro", first["image"])
	assert.NotContains(t, got[0], "error")
}

func TestPostSearch_BadRequests(t *testing.T) {
	srv := newTestServer(t, config.Config{}, stubRunner{})

	for name, body := range map[string]string{
		"empty body":  "",
		"malformed":   `{"searchTerms": `,
		"blank terms": `{"searchTerms": " , "}`,
		"no terms":    `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := post(t, srv.URL+"/search", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestPostSearch_TransportFailureIsBadGateway(t *testing.T) {
	srv := newTestServer(t, config.Config{}, stubRunner{err: fmt.Errorf("%w: batch 0", types.ErrTransport)})

	resp := post(t, srv.URL+"/search", `{"searchTerms": "taladro"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestPostSearch_RequiresTokenWhenSecretSet(t *testing.T) {
	srv := newTestServer(t, config.Config{JWTSecret: "s3cret"}, stubRunner{})

	resp := post(t, srv.URL+"/search", `{"searchTerms": "taladro"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "ana"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/search", strings.NewReader(`{"searchTerms": "taladro"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)
}

func TestHistoryRoutes_DisabledWithoutDatabase(t *testing.T) {
	srv := newTestServer(t, config.Config{}, stubRunner{})

	resp, err := http.Get(srv.URL + "/searches")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestHealthRoute(t *testing.T) {
	srv := newTestServer(t, config.Config{}, stubRunner{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["activeSessions"])
}

type wireEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func TestSearchStream_EmitsBatchesInOrder(t *testing.T) {
	srv := newTestServer(t, config.Config{}, stubRunner{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/search/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"searchTerms": "a,b,c"}`)))

	var events []wireEvent
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
			break
		}
		var e wireEvent
		require.NoError(t, json.Unmarshal(data, &e))
		events = append(events, e)
	}

	require.Len(t, events, 4)
	assert.Equal(t, []string{"started", "batch", "batch", "done"},
		[]string{events[0].Type, events[1].Type, events[2].Type, events[3].Type})

	var started types.StreamStarted
	require.NoError(t, json.Unmarshal(events[0].Payload, &started))
	assert.Equal(t, 3, started.Total)
	assert.Equal(t, 2, started.Batches)
	assert.Equal(t, 18, started.EstimatedSeconds)

	var second types.StreamBatch
	require.NoError(t, json.Unmarshal(events[2].Payload, &second))
	require.Len(t, second.Results, 1)
	assert.Equal(t, 2, second.Results[0].Index)
	assert.Equal(t, "c", second.Results[0].Result.ProductName)
}

func TestSearchStream_ReportsErrors(t *testing.T) {
	srv := newTestServer(t, config.Config{}, stubRunner{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/search/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"searchTerms": "  "}`)))
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var e wireEvent
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, "error", e.Type)
	assert.Contains(t, string(e.Payload), "invalid request")
}

type blockingRunner struct{}

func (blockingRunner) ChunkSize() int { return 2 }

func (blockingRunner) Run(ctx context.Context, names []string, onBatch scraper.BatchFunc) ([]types.ProductResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSearchStream_RequestTimeoutEndsSearch(t *testing.T) {
	srv := newTestServer(t, config.Config{RequestTimeout: 50 * time.Millisecond}, blockingRunner{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/search/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"searchTerms": "a,b"}`)))

	var kinds []string
	var last wireEvent
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		require.NoError(t, json.Unmarshal(data, &last))
		kinds = append(kinds, last.Type)
	}

	assert.Equal(t, []string{"started", "error"}, kinds)
	assert.Contains(t, string(last.Payload), "deadline exceeded")
}
