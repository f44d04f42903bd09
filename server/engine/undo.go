package engine

import (
	"context"
	"errors"
	"fmt"

	"elo-ledger/server/ledger"
)

// UndoResult reports what UndoLast removed. Removed maps each player to
// the ledger entry taken off their history; skipped players show up in
// Warnings instead.
type UndoResult struct {
	Record   ledger.ResultRecord           `json:"record"`
	Removed  map[string]ledger.RatingEntry `json:"removed"`
	Warnings []string                      `json:"warnings,omitempty"`
}

// UndoLast reverses the newest result in scope. The audit record is
// written before anything is removed. An empty log returns EmptyLog.
func (s *Service) UndoLast(ctx context.Context, scope ledger.Scope) (UndoResult, error) {
	res := UndoResult{Removed: map[string]ledger.RatingEntry{}}
	err := s.locked(ctx, scope, func(ctx context.Context, emit emitFunc) error {
		log := s.logger(scope)
		last, err := s.store.LatestResult(ctx, scope)
		if err != nil {
			return err
		}
		log = log.With("game", last.Game)

		audit := ledger.DeletedResultRecord{
			OriginalTimestamp: last.Timestamp,
			DeletionTimestamp: s.timestamp(),
			Game:              last.Game,
			Player1:           last.Player1,
			Player2:           last.Player2,
			Result:            last.Result,
			Probability:       last.Probability,
		}
		if err := s.store.AppendDeleted(ctx, scope, audit); err != nil {
			return err
		}
		if _, err := s.store.RemoveLastResult(ctx, scope); err != nil {
			log.Error("undo diverged: audit written but result not removed", "err", err)
			return ledger.Wrap(ledger.CodeInconsistentLedgerState,
				"deleted log written but the result log tail could not be removed", err)
		}
		res.Record = last
		emit(last.Game, EventResultUndone)

		for _, player := range []string{last.Player1, last.Player2} {
			entry, err := s.store.TruncateLastRating(ctx, scope, last.Game, player)
			switch {
			case err == nil:
				res.Removed[player] = entry
			case errors.Is(err, ledger.ErrInsufficientHistory), errors.Is(err, ledger.ErrPlayerNotFound):
				msg := fmt.Sprintf("skipped %s ledger for %s: %v", last.Game, player, err)
				log.Warn("undo skipped player ledger", "player", player, "err", err)
				res.Warnings = append(res.Warnings, msg)
			default:
				log.Error("undo diverged: ledger truncate failed", "player", player, "err", err)
				return ledger.Wrap(ledger.CodeInconsistentLedgerState,
					fmt.Sprintf("result removed but %s ledger for %q could not be truncated", last.Game, player), err)
			}
		}
		log.Info("result undone", "player1", last.Player1, "player2", last.Player2, "timestamp", last.Timestamp)
		return nil
	})
	return res, err
}
