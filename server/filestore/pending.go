package filestore

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"

	"elo-ledger/server/ledger"
)

func encodePending(r ledger.PendingResultRecord) []string {
	return []string{
		r.Timestamp, r.Game, r.Player1, r.Player2, string(r.Result),
		formatFloat(r.Probability, 3),
		"", "",
		formatList(r.Comments),
		r.SubmissionTimestamp, r.NotesToAdmin, r.ID,
	}
}

func decodePending(path string, row []string) (ledger.PendingResultRecord, error) {
	rec := ledger.PendingResultRecord{
		Timestamp:           row[0],
		Game:                row[1],
		Player1:             row[2],
		Player2:             row[3],
		SubmissionTimestamp: row[9],
		NotesToAdmin:        row[10],
		ID:                  row[11],
	}
	res, err := ledger.ParseResult(row[4])
	if err != nil {
		return rec, corrupt(path, err)
	}
	rec.Result = res
	if rec.Probability, err = parseFloat(path, "probability", row[5]); err != nil {
		return rec, err
	}
	if rec.Comments, err = parseList(row[8]); err != nil {
		return rec, corrupt(path, err)
	}
	if rec.Comments == nil {
		rec.Comments = []string{}
	}
	// Rows queued before submission times were recorded sort by game time.
	if rec.SubmissionTimestamp == "" {
		rec.SubmissionTimestamp = rec.Timestamp
	}
	return rec, nil
}

func (s *Store) AppendPending(ctx context.Context, scope ledger.Scope, rec ledger.PendingResultRecord) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return pendingSchema.append(s.pendingPath(scope), encodePending(rec))
}

// Pending returns the queue in storage order. Rows written before ids
// existed are given one and the file is rewritten so ids stay stable.
func (s *Store) Pending(ctx context.Context, scope ledger.Scope) ([]ledger.PendingResultRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pendingPath(scope)
	t, _, err := pendingSchema.read(path)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.PendingResultRecord, 0, len(t.rows))
	assigned := false
	for _, row := range t.rows {
		rec, err := decodePending(path, row)
		if err != nil {
			return nil, err
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
			assigned = true
		}
		out = append(out, rec)
	}
	if assigned {
		if err := s.writePending(scope, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) ReplacePending(ctx context.Context, scope ledger.Scope, recs []ledger.PendingResultRecord) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(recs) == 0 {
		return s.removePending(scope)
	}
	return s.writePending(scope, recs)
}

func (s *Store) ClearPending(ctx context.Context, scope ledger.Scope) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removePending(scope)
}

func (s *Store) writePending(scope ledger.Scope, recs []ledger.PendingResultRecord) error {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		rows = append(rows, encodePending(r))
	}
	return pendingSchema.write(s.pendingPath(scope), rows)
}

func (s *Store) removePending(scope ledger.Scope) error {
	err := os.Remove(s.pendingPath(scope))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
