package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"elo-ledger/server/engine"
	"elo-ledger/server/ledger"
)

const maxBodyBytes = 1 << 20

type api struct {
	svc  *engine.Service
	ping func(context.Context) error
}

// Router exposes the engine over JSON. ping reports storage health and may
// be nil.
func Router(svc *engine.Service, ping func(context.Context) error) http.Handler {
	a := &api{svc: svc, ping: ping}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", a.health)

	r.Route("/api/{scope}", func(r chi.Router) {
		r.Use(scopeCtx)

		r.Get("/players/{game}", a.listPlayers)
		r.Post("/players/{game}", a.createPlayer)
		r.Get("/players/{game}/{player}", a.playerInfo)
		r.Delete("/players/{game}/{player}", a.deletePlayer)
		r.Get("/players/{game}/{player}/history", a.playerHistory)

		r.Get("/leaderboard/{game}", a.leaderboard)
		r.Get("/probability/{game}", a.probability)

		r.Get("/results", a.listResults)
		r.Post("/results", a.submitResult)
		r.Post("/results/undo", a.undo)
		r.Post("/results/comments", a.addComment)

		r.Get("/pending", a.listPending)
		r.Post("/pending", a.submitPending)
		r.Delete("/pending", a.clearPending)
		r.Post("/pending/approve", a.approve)
		r.Delete("/pending/{ref}", a.deletePending)
		r.Post("/pending/{ref}/notes", a.addNote)

		r.Get("/deleted", a.listDeleted)
	})
	return r
}

type ctxKey struct{}

func scopeCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, err := ledger.ParseScope(chi.URLParam(r, "scope"))
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, scope)))
	})
}

func scopeOf(r *http.Request) ledger.Scope {
	s, _ := r.Context().Value(ctxKey{}).(ledger.Scope)
	return s
}

/* -----------------------------
   Health
------------------------------*/

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if a.ping != nil {
		ctx, cancel := withTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.ping(ctx); err != nil {
			writeJSONStatus(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
	}
	writeJSON(w, map[string]any{"ok": true})
}

/* -----------------------------
   Players
------------------------------*/

func (a *api) listPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := a.svc.ListPlayers(r.Context(), scopeOf(r), chi.URLParam(r, "game"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"rows": players})
}

func (a *api) createPlayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Player    string  `json:"player"`
		Rating    float64 `json:"rating"`
		Timestamp string  `json:"timestamp"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := a.svc.CreatePlayer(r.Context(), scopeOf(r), chi.URLParam(r, "game"), req.Player, req.Rating, req.Timestamp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"player": strings.ToLower(strings.TrimSpace(req.Player)), "entry": entry})
}

func (a *api) playerInfo(w http.ResponseWriter, r *http.Request) {
	ctx, scope := r.Context(), scopeOf(r)
	game, player := chi.URLParam(r, "game"), chi.URLParam(r, "player")
	latest, err := a.svc.LatestRating(ctx, scope, game, player)
	if err != nil {
		writeError(w, err)
		return
	}
	games, err := a.svc.GameCount(ctx, scope, game, player)
	if err != nil {
		writeError(w, err)
		return
	}
	k, err := a.svc.KFactor(ctx, scope, game, player)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"player":   strings.ToLower(player),
		"game":     strings.ToLower(game),
		"rating":   latest.Rating,
		"games":    games,
		"k_factor": k,
		"latest":   latest,
	})
}

func (a *api) deletePlayer(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeletePlayer(r.Context(), scopeOf(r), chi.URLParam(r, "game"), chi.URLParam(r, "player")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"deleted": true})
}

func (a *api) playerHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := a.svc.RatingHistory(r.Context(), scopeOf(r), chi.URLParam(r, "game"), chi.URLParam(r, "player"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"rows": rows})
}

func (a *api) leaderboard(w http.ResponseWriter, r *http.Request) {
	var exclude []string
	if v := r.URL.Query().Get("exclude"); v != "" {
		exclude = strings.Split(v, ",")
	}
	rows, err := a.svc.Leaderboard(r.Context(), scopeOf(r), chi.URLParam(r, "game"), exclude)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"rows": rows})
}

func (a *api) probability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p1, p2 := q.Get("player1"), q.Get("player2")
	p, err := a.svc.WinProbability(r.Context(), scopeOf(r), chi.URLParam(r, "game"), p1, p2)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"player1": p1, "player2": p2, "probability": p})
}

/* -----------------------------
   Results
------------------------------*/

// matchRequest accepts either a result string or player1's score.
type matchRequest struct {
	Player1   string   `json:"player1"`
	Player2   string   `json:"player2"`
	Game      string   `json:"game"`
	Result    string   `json:"result"`
	Score     *float64 `json:"score"`
	Timestamp string   `json:"timestamp"`
	Comment   string   `json:"comment"`
	Author    string   `json:"author"`
	Notes     string   `json:"notes"`
}

func (req matchRequest) match(scope ledger.Scope) (engine.Match, error) {
	res := ledger.Result(req.Result)
	if req.Score != nil {
		var err error
		if res, err = ledger.ResultFromScore(*req.Score); err != nil {
			return engine.Match{}, err
		}
	}
	return engine.Match{
		Scope:     scope,
		Game:      req.Game,
		Player1:   req.Player1,
		Player2:   req.Player2,
		Result:    res,
		Timestamp: req.Timestamp,
		Comment:   req.Comment,
		Author:    req.Author,
	}, nil
}

func (a *api) listResults(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	rows, total, err := a.svc.ListResults(r.Context(), scopeOf(r), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"rows": rows, "total": total, "offset": offset, "limit": limit})
}

func (a *api) submitResult(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := req.match(scopeOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := a.svc.SubmitImmediate(r.Context(), m)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

func (a *api) undo(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.UndoLast(r.Context(), scopeOf(r))
	if errors.Is(err, ledger.ErrEmptyLog) {
		writeJSON(w, map[string]any{"undone": false, "message": err.Error()})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"undone":   true,
		"record":   res.Record,
		"removed":  res.Removed,
		"warnings": res.Warnings,
	})
}

func (a *api) addComment(w http.ResponseWriter, r *http.Request) {
	var req engine.CommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Scope = scopeOf(r)
	rec, err := a.svc.AddComment(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rec)
}

/* -----------------------------
   Pending queue
------------------------------*/

func (a *api) listPending(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	rows, total, err := a.svc.ListPending(r.Context(), scopeOf(r), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"rows": rows, "total": total, "offset": offset, "limit": limit})
}

func (a *api) submitPending(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := req.match(scopeOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := a.svc.SubmitForApproval(r.Context(), m, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, rec)
}

func (a *api) clearPending(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.ClearPending(r.Context(), scopeOf(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"cleared": true})
}

func (a *api) approve(w http.ResponseWriter, r *http.Request) {
	report, err := a.svc.ApproveAll(r.Context(), scopeOf(r))
	switch {
	case err == nil:
		writeJSON(w, report)
	case errors.Is(err, ledger.ErrPartialApprovalFailure):
		writeJSONStatus(w, http.StatusMultiStatus, report)
	default:
		writeError(w, err)
	}
}

func (a *api) deletePending(w http.ResponseWriter, r *http.Request) {
	rec, err := a.svc.DeletePending(r.Context(), scopeOf(r), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"deleted": rec})
}

func (a *api) addNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := a.svc.AddAdminNote(r.Context(), scopeOf(r), chi.URLParam(r, "ref"), req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rec)
}

func (a *api) listDeleted(w http.ResponseWriter, r *http.Request) {
	rows, err := a.svc.ListDeleted(r.Context(), scopeOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"rows": rows})
}

/* -----------------------------
   Helpers
------------------------------*/

func page(r *http.Request) (offset, limit int) {
	q := r.URL.Query()
	offset, _ = strconv.Atoi(q.Get("offset"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	return max(offset, 0), max(limit, 0)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// statusFor maps a ledger error code onto an HTTP status.
func statusFor(code ledger.Code) int {
	switch code {
	case ledger.CodePlayerNotFound, ledger.CodePendingNotFound:
		return http.StatusNotFound
	case ledger.CodeInvalidResultFormat, ledger.CodeInvalidScore, ledger.CodeInvalidName,
		ledger.CodeInvalidMatch, ledger.CodeInvalidPosition, ledger.CodeInvalidComment,
		ledger.CodeInsufficientHistory:
		return http.StatusBadRequest
	case ledger.CodePlayerExists, ledger.CodeTimestampMismatch:
		return http.StatusConflict
	case ledger.CodePartialApprovalFailure:
		return http.StatusMultiStatus
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := ledger.CodeOf(err)
	writeJSONError(w, statusFor(code), string(code), err.Error())
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSONStatus(w, status, map[string]any{"error": map[string]string{"code": code, "message": message}})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
