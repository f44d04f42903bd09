package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"elo-ledger/server/ledger"
)

const noColour = "no colour"

func encodeEntry(e ledger.RatingEntry) []string {
	colour := string(e.Side)
	if e.Side == ledger.NoSide || e.Side == "" {
		colour = noColour
	}
	opp := e.Opponent
	if opp == "" {
		opp = ledger.NoOpponent
	}
	return []string{formatFloat(e.Rating, 1), opp, formatFloat(e.Result, -1), colour, e.Timestamp}
}

func decodeEntry(path string, row []string) (ledger.RatingEntry, error) {
	rating, err := parseFloat(path, "rating", row[0])
	if err != nil {
		return ledger.RatingEntry{}, err
	}
	result, err := parseFloat(path, "result", row[2])
	if err != nil {
		return ledger.RatingEntry{}, err
	}
	opp := row[1]
	if opp == "none" {
		opp = ledger.NoOpponent
	}
	side := ledger.Side(strings.ToLower(strings.TrimSpace(row[3])))
	switch side {
	case ledger.White, ledger.Black:
	default:
		side = ledger.NoSide
	}
	return ledger.RatingEntry{Rating: rating, Opponent: opp, Result: result, Side: side, Timestamp: row[4]}, nil
}

func (s *Store) CreatePlayer(ctx context.Context, scope ledger.Scope, game, player string, bootstrap ledger.RatingEntry) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.ledgerPath(scope, game, player)
	if _, err := os.Stat(path); err == nil {
		return ledger.New(ledger.CodePlayerExists, fmt.Sprintf("player %q already exists for %s", player, game))
	}
	return ledgerSchema.write(path, [][]string{encodeEntry(bootstrap)})
}

func (s *Store) DeletePlayer(ctx context.Context, scope ledger.Scope, game, player string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.ledgerPath(scope, game, player))
	if errors.Is(err, os.ErrNotExist) {
		return notFound(game, player)
	}
	return err
}

func (s *Store) ListPlayers(ctx context.Context, scope ledger.Scope, game string) ([]string, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.gameDir(scope, game))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	players := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".csv") {
			continue
		}
		players = append(players, strings.TrimSuffix(name, ".csv"))
	}
	sort.Strings(players)
	return players, nil
}

func (s *Store) AppendRating(ctx context.Context, scope ledger.Scope, game, player string, entry ledger.RatingEntry) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.ledgerPath(scope, game, player)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return notFound(game, player)
	}
	return ledgerSchema.append(path, encodeEntry(entry))
}

func (s *Store) RatingHistory(ctx context.Context, scope ledger.Scope, game, player string) ([]ledger.RatingEntry, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history(scope, game, player)
}

func (s *Store) history(scope ledger.Scope, game, player string) ([]ledger.RatingEntry, error) {
	path := s.ledgerPath(scope, game, player)
	t, ok, err := ledgerSchema.read(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(game, player)
	}
	if len(t.rows) == 0 {
		return nil, corrupt(path, fmt.Errorf("ledger has no bootstrap entry"))
	}
	out := make([]ledger.RatingEntry, 0, len(t.rows))
	for _, row := range t.rows {
		e, err := decodeEntry(path, row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) LatestRating(ctx context.Context, scope ledger.Scope, game, player string) (ledger.RatingEntry, error) {
	h, err := s.RatingHistory(ctx, scope, game, player)
	if err != nil {
		return ledger.RatingEntry{}, err
	}
	return h[len(h)-1], nil
}

func (s *Store) CountGames(ctx context.Context, scope ledger.Scope, game, player string) (int, error) {
	h, err := s.RatingHistory(ctx, scope, game, player)
	if err != nil {
		return 0, err
	}
	return len(h) - 1, nil
}

func (s *Store) TruncateLastRating(ctx context.Context, scope ledger.Scope, game, player string) (ledger.RatingEntry, error) {
	if err := checkCtx(ctx); err != nil {
		return ledger.RatingEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.history(scope, game, player)
	if err != nil {
		return ledger.RatingEntry{}, err
	}
	if len(h) <= 1 {
		return ledger.RatingEntry{}, ledger.New(ledger.CodeInsufficientHistory,
			fmt.Sprintf("player %q has no game entries to delete in %s (only initial rating remains)", player, game))
	}
	rows := make([][]string, 0, len(h)-1)
	for _, e := range h[:len(h)-1] {
		rows = append(rows, encodeEntry(e))
	}
	if err := ledgerSchema.write(s.ledgerPath(scope, game, player), rows); err != nil {
		return ledger.RatingEntry{}, err
	}
	return h[len(h)-1], nil
}

func notFound(game, player string) error {
	return ledger.New(ledger.CodePlayerNotFound, fmt.Sprintf("player %q not found in %s", player, game))
}
