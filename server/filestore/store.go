// Package filestore keeps ledgers and logs as CSV files under one root
// directory. The default pool lives in <root>/default and each team in
// <root>/teams/<team>; inside a scope every game has a directory of player
// ledgers next to results.csv, pending_results.csv and deleted_results.csv.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"elo-ledger/server/ledger"
)

type Store struct {
	root string
	mu   sync.RWMutex
}

var _ ledger.Store = (*Store)(nil)

// New opens (and creates if needed) a store rooted at root.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: abs}, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) scopeDir(scope ledger.Scope) string {
	if scope.IsDefault() {
		return filepath.Join(s.root, "default")
	}
	return filepath.Join(s.root, "teams", string(scope))
}

func (s *Store) gameDir(scope ledger.Scope, game string) string {
	return filepath.Join(s.scopeDir(scope), game)
}

func (s *Store) ledgerPath(scope ledger.Scope, game, player string) string {
	return filepath.Join(s.gameDir(scope, game), player+".csv")
}

func (s *Store) resultsPath(scope ledger.Scope) string {
	return filepath.Join(s.scopeDir(scope), "results.csv")
}

func (s *Store) pendingPath(scope ledger.Scope) string {
	return filepath.Join(s.scopeDir(scope), "pending_results.csv")
}

func (s *Store) deletedPath(scope ledger.Scope) string {
	return filepath.Join(s.scopeDir(scope), "deleted_results.csv")
}

// ---- field codecs ----

func formatFloat(f float64, prec int) string { return strconv.FormatFloat(f, 'f', prec, 64) }

func parseFloat(path, field, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, corrupt(path, fmt.Errorf("%s %q: %w", field, v, err))
	}
	return f, nil
}

func formatChange(c *int) string {
	if c == nil {
		return ""
	}
	return strconv.Itoa(*c)
}

func parseChange(path, field, v string) (*int, error) {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "nan", "none", "null":
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, corrupt(path, fmt.Errorf("%s %q: %w", field, v, err))
	}
	n := int(f)
	return &n, nil
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
