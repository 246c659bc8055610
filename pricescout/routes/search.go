package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pricescout/pricescout/config"
	"pricescout/pricescout/controllers"
	"pricescout/pricescout/middlewares"
	"pricescout/pricescout/utils/logging"
	"pricescout/pricescout/utils/types"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RunIDHeader carries the persisted run id of a POST /search.
const RunIDHeader = "X-Search-Run-ID"

// SearchRoutes registers POST / and the /ws progress stream.
func SearchRoutes(ctrl *controllers.SearchController, cfg config.Config) chi.Router {
	r := chi.NewRouter()

	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))

		// POST /search
		gr.Post("/", func(w http.ResponseWriter, r *http.Request) {
			handleJSON(func(r *http.Request) (any, int, error) {
				var req types.SearchRequest
				if err := decodeJSON(r, &req); err != nil {
					return nil, http.StatusBadRequest, err
				}
				ctx := r.Context()
				if cfg.RequestTimeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
					defer cancel()
				}
				runID, results, err := ctrl.Search(ctx, req)
				if runID != "" {
					w.Header().Set(RunIDHeader, runID)
				}
				if err != nil {
					return nil, statusFor(err), err
				}
				return results, http.StatusOK, nil
			})(w, r)
		})
	})

	// the token travels in the first message, browsers cannot set headers on upgrade
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")

		ctx := r.Context()
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "unsupported data")
			return
		}

		send := func(e types.StreamEvent) {
			payload, err := json.Marshal(e)
			if err != nil {
				logging.ErrorLogger.Error("stream event encode failed", zap.String("type", e.Type), zap.Error(err))
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				logging.ErrorLogger.Warn("stream write failed", zap.Error(err))
			}
		}
		sendError := func(err error) {
			send(types.StreamEvent{Type: controllers.EventError, Payload: map[string]string{"message": err.Error()}})
		}

		var req types.SearchRequest
		if err := json.Unmarshal(data, &req); err != nil {
			sendError(fmt.Errorf("invalid json: %w", err))
			conn.Close(websocket.StatusUnsupportedData, "invalid json")
			return
		}
		if cfg.JWTSecret != "" {
			if _, err := middlewares.ValidateToken(cfg.JWTSecret, req.Token); err != nil {
				sendError(err)
				conn.Close(websocket.StatusPolicyViolation, "invalid token")
				return
			}
		}

		// writes keep using ctx so the error event still goes out after a timeout
		searchCtx := ctx
		if cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			searchCtx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()
		}
		if _, _, err := ctrl.SearchStream(searchCtx, req, send); err != nil {
			sendError(err)
			conn.Close(websocket.StatusNormalClosure, "search failed")
			return
		}
		conn.Close(websocket.StatusNormalClosure, "done")
	})

	return r
}

// HistoryRoutes exposes past runs, candidate selection and the CSV export.
func HistoryRoutes(ctrl *controllers.SearchController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middlewares.AuthMiddleware(cfg))

	// GET /searches?limit=
	r.Get("/", handleJSON(func(r *http.Request) (any, int, error) {
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, http.StatusBadRequest, fmt.Errorf("%w: limit must be a number", types.ErrInvalidRequest)
			}
			limit = n
		}
		runs, err := ctrl.ListRuns(r.Context(), limit)
		if err != nil {
			return nil, statusFor(err), err
		}
		return runs, http.StatusOK, nil
	}))

	r.Get("/{run_id}", handleJSON(func(r *http.Request) (any, int, error) {
		run, err := ctrl.GetRun(r.Context(), chi.URLParam(r, "run_id"))
		if err != nil {
			return nil, statusFor(err), err
		}
		return run, http.StatusOK, nil
	}))

	r.Put("/{run_id}/selections", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.SelectionRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, http.StatusBadRequest, err
		}
		if err := ctrl.SelectCandidate(r.Context(), chi.URLParam(r, "run_id"), req); err != nil {
			return nil, statusFor(err), err
		}
		return map[string]string{"status": "ok"}, http.StatusOK, nil
	}))

	r.Get("/{run_id}/export", func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "run_id")
		var buf bytes.Buffer
		if err := ctrl.Export(r.Context(), runID, &buf); err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="pricescout-%s.csv"`, runID))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	})

	return r
}
