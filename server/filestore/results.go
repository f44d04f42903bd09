package filestore

import (
	"context"
	"fmt"

	"elo-ledger/server/ledger"
)

func encodeResult(r ledger.ResultRecord) []string {
	return []string{
		r.Timestamp, r.Game, r.Player1, r.Player2, string(r.Result),
		formatFloat(r.Probability, 3),
		formatChange(r.Player1Change), formatChange(r.Player2Change),
		formatList(r.Comments),
	}
}

func decodeResult(path string, row []string) (ledger.ResultRecord, error) {
	rec := ledger.ResultRecord{
		Timestamp: row[0],
		Game:      row[1],
		Player1:   row[2],
		Player2:   row[3],
	}
	res, err := ledger.ParseResult(row[4])
	if err != nil {
		return rec, corrupt(path, err)
	}
	rec.Result = res
	if rec.Probability, err = parseFloat(path, "probability", row[5]); err != nil {
		return rec, err
	}
	if rec.Player1Change, err = parseChange(path, "player1_change", row[6]); err != nil {
		return rec, err
	}
	if rec.Player2Change, err = parseChange(path, "player2_change", row[7]); err != nil {
		return rec, err
	}
	if rec.Comments, err = parseList(row[8]); err != nil {
		return rec, corrupt(path, err)
	}
	if rec.Comments == nil {
		rec.Comments = []string{}
	}
	return rec, nil
}

func (s *Store) AppendResult(ctx context.Context, scope ledger.Scope, rec ledger.ResultRecord) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return resultSchema.append(s.resultsPath(scope), encodeResult(rec))
}

func (s *Store) Results(ctx context.Context, scope ledger.Scope) ([]ledger.ResultRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results(scope)
}

func (s *Store) results(scope ledger.Scope) ([]ledger.ResultRecord, error) {
	path := s.resultsPath(scope)
	t, _, err := resultSchema.read(path)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.ResultRecord, 0, len(t.rows))
	for _, row := range t.rows {
		rec, err := decodeResult(path, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) LatestResult(ctx context.Context, scope ledger.Scope) (ledger.ResultRecord, error) {
	recs, err := s.Results(ctx, scope)
	if err != nil {
		return ledger.ResultRecord{}, err
	}
	if len(recs) == 0 {
		return ledger.ResultRecord{}, emptyLog(scope)
	}
	return recs[len(recs)-1], nil
}

func (s *Store) RemoveLastResult(ctx context.Context, scope ledger.Scope) (ledger.ResultRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return ledger.ResultRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.results(scope)
	if err != nil {
		return ledger.ResultRecord{}, err
	}
	if len(recs) == 0 {
		return ledger.ResultRecord{}, emptyLog(scope)
	}
	rows := make([][]string, 0, len(recs)-1)
	for _, r := range recs[:len(recs)-1] {
		rows = append(rows, encodeResult(r))
	}
	if err := resultSchema.write(s.resultsPath(scope), rows); err != nil {
		return ledger.ResultRecord{}, err
	}
	return recs[len(recs)-1], nil
}

func (s *Store) SetResultComments(ctx context.Context, scope ledger.Scope, row int, comments []string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.results(scope)
	if err != nil {
		return err
	}
	if row < 0 || row >= len(recs) {
		return ledger.New(ledger.CodeInvalidPosition, fmt.Sprintf("row %d out of range (%d results)", row, len(recs)))
	}
	recs[row].Comments = append([]string(nil), comments...)
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, encodeResult(r))
	}
	return resultSchema.write(s.resultsPath(scope), rows)
}

func emptyLog(scope ledger.Scope) error {
	return ledger.New(ledger.CodeEmptyLog, fmt.Sprintf("no results recorded for %s", scope))
}
