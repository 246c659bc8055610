package httputils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pricescout/pricescout/utils/types"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		json.NewEncoder(w).Encode(map[string]string{"echo": in["searchTerms"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := PostJSON(context.Background(), nil, srv.URL, map[string]string{"Authorization": "Bearer t"},
		map[string]string{"searchTerms": "a,b"}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["echo"] != "a,b" {
		t.Errorf("expected echo %q, got %q", "a,b", out["echo"])
	}

	err = PostJSON(context.Background(), nil, srv.URL, nil, map[string]string{}, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 StatusError, got %v", err)
	}
}

func TestPostJSON_UnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := PostJSON(context.Background(), nil, url, nil, map[string]string{}, nil)
	if !errors.Is(err, types.ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}
