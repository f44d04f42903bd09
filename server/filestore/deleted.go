package filestore

import (
	"context"

	"elo-ledger/server/ledger"
)

func (s *Store) AppendDeleted(ctx context.Context, scope ledger.Scope, rec ledger.DeletedResultRecord) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletedSchema.append(s.deletedPath(scope), []string{
		rec.OriginalTimestamp, rec.DeletionTimestamp, rec.Game,
		rec.Player1, rec.Player2, string(rec.Result), formatFloat(rec.Probability, 3),
	})
}

func (s *Store) Deleted(ctx context.Context, scope ledger.Scope) ([]ledger.DeletedResultRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.deletedPath(scope)
	t, _, err := deletedSchema.read(path)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.DeletedResultRecord, 0, len(t.rows))
	for _, row := range t.rows {
		res, err := ledger.ParseResult(row[5])
		if err != nil {
			return nil, corrupt(path, err)
		}
		p, err := parseFloat(path, "probability", row[6])
		if err != nil {
			return nil, err
		}
		out = append(out, ledger.DeletedResultRecord{
			OriginalTimestamp: row[0],
			DeletionTimestamp: row[1],
			Game:              row[2],
			Player1:           row[3],
			Player2:           row[4],
			Result:            res,
			Probability:       p,
		})
	}
	return out, nil
}
