package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"elo-ledger/server/engine"
	"elo-ledger/server/filestore"
	"elo-ledger/server/ledger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	svc := engine.New(st, engine.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	srv := httptest.NewServer(Router(svc, nil))
	t.Cleanup(func() {
		srv.Close()
		svc.Close()
	})
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	s, _ := e["code"].(string)
	return s
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	code, body := do(t, srv, http.MethodGet, "/api/health", "")
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("health = %d %v", code, body)
	}
}

func TestResultLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	for _, p := range []string{"ann", "bob"} {
		if code, body := do(t, srv, http.MethodPost, "/api/default/players/chess", `{"player":"`+p+`","rating":1500}`); code != http.StatusCreated {
			t.Fatalf("create %s = %d %v", p, code, body)
		}
	}
	if code, body := do(t, srv, http.MethodPost, "/api/default/players/chess", `{"player":"ann"}`); code != http.StatusConflict {
		t.Fatalf("duplicate = %d %v", code, body)
	}

	code, body := do(t, srv, http.MethodPost, "/api/default/results", `{"game":"chess","player1":"ann","player2":"bob","score":1}`)
	if code != http.StatusCreated {
		t.Fatalf("submit = %d %v", code, body)
	}
	code, body = do(t, srv, http.MethodGet, "/api/default/players/chess/ann", "")
	if code != http.StatusOK || body["rating"] != 1520.0 || body["games"] != 1.0 || body["k_factor"] != 40.0 {
		t.Fatalf("ann = %d %v", code, body)
	}

	code, body = do(t, srv, http.MethodPost, "/api/default/results/comments", `{"comment":"gg","author":"bob","offset":0,"index":0}`)
	if code != http.StatusOK {
		t.Fatalf("comment = %d %v", code, body)
	}
	code, body = do(t, srv, http.MethodGet, "/api/default/results?limit=10", "")
	rows, _ := body["rows"].([]any)
	if code != http.StatusOK || len(rows) != 1 || body["total"] != 1.0 {
		t.Fatalf("results = %d %v", code, body)
	}

	code, body = do(t, srv, http.MethodPost, "/api/default/results/undo", "")
	if code != http.StatusOK || body["undone"] != true {
		t.Fatalf("undo = %d %v", code, body)
	}
	code, body = do(t, srv, http.MethodPost, "/api/default/results/undo", "")
	if code != http.StatusOK || body["undone"] != false {
		t.Fatalf("empty undo = %d %v", code, body)
	}
	code, body = do(t, srv, http.MethodGet, "/api/default/deleted", "")
	if rows, _ := body["rows"].([]any); code != http.StatusOK || len(rows) != 1 {
		t.Fatalf("deleted = %d %v", code, body)
	}
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/club/players/chess", `{"player":"ann"}`)
	do(t, srv, http.MethodPost, "/api/club/players/chess", `{"player":"bob"}`)

	cases := []struct {
		method, path, body string
		status             int
		code               string
	}{
		{http.MethodPost, "/api/club/results", `{"game":"chess","player1":"ann","player2":"zed","result":"1-0"}`, http.StatusNotFound, "PLAYER_NOT_FOUND"},
		{http.MethodPost, "/api/club/results", `{"game":"chess","player1":"ann","player2":"bob","result":"2-0"}`, http.StatusBadRequest, "INVALID_RESULT_FORMAT"},
		{http.MethodPost, "/api/club/results", `{"game":"chess","player1":"ann","player2":"bob","score":0.3}`, http.StatusBadRequest, "INVALID_SCORE"},
		{http.MethodPost, "/api/club/results", `{`, http.StatusBadRequest, "INVALID_REQUEST"},
		{http.MethodPost, "/api/club/results/comments", `{"comment":"x","author":"a"}`, http.StatusBadRequest, "INVALID_POSITION"},
		{http.MethodDelete, "/api/club/pending/7", "", http.StatusBadRequest, "INVALID_POSITION"},
		{http.MethodDelete, "/api/club/pending/nope", "", http.StatusNotFound, "PENDING_NOT_FOUND"},
		{http.MethodGet, "/api/bad!team/results", "", http.StatusBadRequest, "INVALID_NAME"},
	}
	for _, c := range cases {
		code, body := do(t, srv, c.method, c.path, c.body)
		if code != c.status || errorCode(body) != c.code {
			t.Fatalf("%s %s = %d %v, want %d %s", c.method, c.path, code, body, c.status, c.code)
		}
	}
}

func TestApprovalOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	for _, p := range []string{"ann", "bob", "carol"} {
		do(t, srv, http.MethodPost, "/api/default/players/pingpong", `{"player":"`+p+`"}`)
	}
	for _, body := range []string{
		`{"game":"pingpong","player1":"ann","player2":"bob","result":"1-0","notes":"witnessed"}`,
		`{"game":"pingpong","player1":"carol","player2":"bob","result":"0-1"}`,
	} {
		if code, out := do(t, srv, http.MethodPost, "/api/default/pending", body); code != http.StatusCreated {
			t.Fatalf("submit pending = %d %v", code, out)
		}
	}
	if code, out := do(t, srv, http.MethodPost, "/api/default/pending/0/notes", `{"note":"ok"}`); code != http.StatusOK || out["notes_to_admin"] != "witnessed | ok" {
		t.Fatalf("note = %d %v", code, out)
	}
	do(t, srv, http.MethodDelete, "/api/default/players/pingpong/carol", "")

	code, body := do(t, srv, http.MethodPost, "/api/default/pending/approve", "")
	if code != http.StatusMultiStatus || body["processed_count"] != 1.0 || body["failed_count"] != 1.0 {
		t.Fatalf("approve = %d %v", code, body)
	}
	code, body = do(t, srv, http.MethodGet, "/api/default/pending", "")
	if rows, _ := body["rows"].([]any); code != http.StatusOK || len(rows) != 1 {
		t.Fatalf("pending = %d %v", code, body)
	}
	if code, body := do(t, srv, http.MethodDelete, "/api/default/pending", ""); code != http.StatusOK || body["cleared"] != true {
		t.Fatalf("clear = %d %v", code, body)
	}

	code, body = do(t, srv, http.MethodGet, "/api/default/leaderboard/pingpong", "")
	rows, _ := body["rows"].([]any)
	if code != http.StatusOK || len(rows) != 2 {
		t.Fatalf("leaderboard = %d %v", code, body)
	}
	if first, _ := rows[0].(map[string]any); first["player"] != "ann" {
		t.Fatalf("leader = %v", rows[0])
	}
	code, body = do(t, srv, http.MethodGet, "/api/default/probability/pingpong?player1=ann&player2=bob", "")
	if p, _ := body["probability"].(float64); code != http.StatusOK || p <= 0.5 {
		t.Fatalf("probability = %d %v", code, body)
	}
}

func TestStatusFor(t *testing.T) {
	if statusFor(ledger.CodeOf(errors.New("boom"))) != http.StatusInternalServerError {
		t.Fatal("unknown errors should be 500")
	}
	if statusFor(ledger.CodeInconsistentLedgerState) != http.StatusInternalServerError {
		t.Fatal("inconsistent state should be 500")
	}
	if statusFor(ledger.CodeTimestampMismatch) != http.StatusConflict {
		t.Fatal("timestamp mismatch should be 409")
	}
}

func TestHealthReportsStorageFailure(t *testing.T) {
	st, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New: %v", err)
	}
	svc := engine.New(st, engine.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	defer svc.Close()
	h := Router(svc, func(context.Context) error { return errors.New("db down") })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}
