package engine

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"elo-ledger/server/elo"
	"elo-ledger/server/ledger"
)

const noteSeparator = " | "

// SubmitForApproval queues a game for admin approval. Only the win
// probability is computed now; ratings move when the queue is approved.
func (s *Service) SubmitForApproval(ctx context.Context, m Match, notes string) (ledger.PendingResultRecord, error) {
	m, err := m.normalize()
	if err != nil {
		return ledger.PendingResultRecord{}, err
	}
	var rec ledger.PendingResultRecord
	err = s.locked(ctx, m.Scope, func(ctx context.Context, emit emitFunc) error {
		r1, err := s.store.LatestRating(ctx, m.Scope, m.Game, m.Player1)
		if err != nil {
			return err
		}
		r2, err := s.store.LatestRating(ctx, m.Scope, m.Game, m.Player2)
		if err != nil {
			return err
		}
		now := s.timestamp()
		ts := m.Timestamp
		if ts == "" {
			ts = now
		}
		rec = ledger.PendingResultRecord{
			ID:                  uuid.NewString(),
			Timestamp:           ts,
			Game:                m.Game,
			Player1:             m.Player1,
			Player2:             m.Player2,
			Result:              m.Result,
			Probability:         elo.WinProbability(r1.Rating, r2.Rating),
			Comments:            m.comments(),
			SubmissionTimestamp: now,
			NotesToAdmin:        strings.TrimSpace(notes),
		}
		if err := s.store.AppendPending(ctx, m.Scope, rec); err != nil {
			return err
		}
		emit(m.Game, EventPendingChanged)
		return nil
	})
	return rec, err
}

// ApprovalFailure is a queued result that could not be committed.
type ApprovalFailure struct {
	Record  ledger.PendingResultRecord `json:"record"`
	Code    ledger.Code                `json:"code"`
	Message string                     `json:"message"`
	Err     error                      `json:"-"`
}

type ApprovalReport struct {
	Processed   int               `json:"processed_count"`
	FailedCount int               `json:"failed_count"`
	Committed   []CommitResult    `json:"committed"`
	Failed      []ApprovalFailure `json:"failed"`
}

// sortPending orders records by submission time, then game time. The sort
// is stable so equal timestamps keep storage order.
func sortPending(recs []ledger.PendingResultRecord) []ledger.PendingResultRecord {
	out := slices.Clone(recs)
	slices.SortStableFunc(out, func(a, b ledger.PendingResultRecord) int {
		if c := ledger.CompareTimestamps(a.SubmissionTimestamp, b.SubmissionTimestamp); c != 0 {
			return c
		}
		return ledger.CompareTimestamps(a.Timestamp, b.Timestamp)
	})
	return out
}

func pendingMatch(scope ledger.Scope, p ledger.PendingResultRecord) Match {
	return Match{
		Scope:     scope,
		Game:      p.Game,
		Player1:   p.Player1,
		Player2:   p.Player2,
		Result:    p.Result,
		Timestamp: p.Timestamp,
	}
}

// ApproveAll replays the queue in chronological order against current
// ratings. Failures stay queued and are reported; if every entry commits
// the queue is removed. A non-empty Failed list comes back with a
// PartialApprovalFailure error alongside the report.
func (s *Service) ApproveAll(ctx context.Context, scope ledger.Scope) (ApprovalReport, error) {
	report := ApprovalReport{Committed: []CommitResult{}, Failed: []ApprovalFailure{}}
	err := s.locked(ctx, scope, func(ctx context.Context, emit emitFunc) error {
		log := s.logger(scope)
		queue, err := s.store.Pending(ctx, scope)
		if err != nil {
			return err
		}
		if len(queue) == 0 {
			return nil
		}

		sorted := sortPending(queue)
		failed := map[string]bool{}
		var fatal error
		for i, p := range sorted {
			m, err := pendingMatch(scope, p).normalize()
			if err == nil {
				var res CommitResult
				res, err = s.commit(ctx, m, p.Comments)
				if err == nil {
					res.PendingID = p.ID
					report.Committed = append(report.Committed, res)
					emit(m.Game, EventResultCommitted)
					continue
				}
			}
			if ledger.CodeOf(err) == ledger.CodeInconsistentLedgerState {
				// stop replaying; this entry and the rest stay queued
				for _, rest := range sorted[i:] {
					failed[rest.ID] = true
				}
				report.Failed = append(report.Failed, ApprovalFailure{
					Record: p, Code: ledger.CodeInconsistentLedgerState, Message: err.Error(), Err: err,
				})
				fatal = err
				break
			}
			log.Warn("pending result not approved", "id", p.ID, "game", p.Game, "err", err)
			failed[p.ID] = true
			report.Failed = append(report.Failed, ApprovalFailure{
				Record: p, Code: ledger.CodeOf(err), Message: err.Error(), Err: err,
			})
		}
		report.Processed = len(report.Committed)
		report.FailedCount = len(report.Failed)

		var keep []ledger.PendingResultRecord
		for _, p := range queue {
			if failed[p.ID] {
				keep = append(keep, p)
			}
		}
		if err := s.store.ReplacePending(ctx, scope, keep); err != nil {
			log.Error("pending queue not rewritten after approval",
				"committed", report.Processed, "err", err)
			return ledger.Wrap(ledger.CodeInconsistentLedgerState,
				fmt.Sprintf("%d results committed but the pending queue could not be rewritten", report.Processed), err)
		}
		emit("", EventPendingChanged)
		if fatal != nil {
			return fatal
		}
		log.Info("pending results approved", "committed", report.Processed, "failed", report.FailedCount)
		if len(report.Failed) > 0 {
			return ledger.New(ledger.CodePartialApprovalFailure,
				fmt.Sprintf("%d of %d pending results failed", len(report.Failed), len(queue)))
		}
		return nil
	})
	return report, err
}

// PendingItem is a queued record with its position in the chronological
// view. Index is what DeletePending and AddAdminNote accept as a ref.
type PendingItem struct {
	Index int `json:"index"`
	ledger.PendingResultRecord
}

// ListPending returns the queue in approval order. A limit <= 0 means
// everything after offset.
func (s *Service) ListPending(ctx context.Context, scope ledger.Scope, offset, limit int) ([]PendingItem, int, error) {
	queue, err := s.store.Pending(ctx, scope)
	if err != nil {
		return nil, 0, err
	}
	sorted := sortPending(queue)
	lo, hi := window(len(sorted), offset, limit)
	out := make([]PendingItem, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, PendingItem{Index: i, PendingResultRecord: sorted[i]})
	}
	return out, len(sorted), nil
}

// resolveRef finds a queued record by ID, or by index into the
// chronological view. It returns the record's storage position.
func resolveRef(queue []ledger.PendingResultRecord, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	id := ref
	if _, err := uuid.Parse(ref); err != nil {
		idx, convErr := strconv.Atoi(ref)
		if convErr != nil {
			return -1, ledger.New(ledger.CodePendingNotFound, fmt.Sprintf("pending result %q not found", ref))
		}
		sorted := sortPending(queue)
		if idx < 0 || idx >= len(sorted) {
			return -1, ledger.New(ledger.CodeInvalidPosition,
				fmt.Sprintf("pending index %d out of range (queue has %d entries)", idx, len(sorted)))
		}
		id = sorted[idx].ID
	}
	for i, p := range queue {
		if strings.EqualFold(p.ID, id) {
			return i, nil
		}
	}
	return -1, ledger.New(ledger.CodePendingNotFound, fmt.Sprintf("pending result %q not found", ref))
}

// DeletePending removes one queued record.
func (s *Service) DeletePending(ctx context.Context, scope ledger.Scope, ref string) (ledger.PendingResultRecord, error) {
	var removed ledger.PendingResultRecord
	err := s.locked(ctx, scope, func(ctx context.Context, emit emitFunc) error {
		queue, err := s.store.Pending(ctx, scope)
		if err != nil {
			return err
		}
		i, err := resolveRef(queue, ref)
		if err != nil {
			return err
		}
		removed = queue[i]
		if err := s.store.ReplacePending(ctx, scope, slices.Delete(slices.Clone(queue), i, i+1)); err != nil {
			return err
		}
		s.logger(scope).Info("pending result deleted", "id", removed.ID, "game", removed.Game)
		emit(removed.Game, EventPendingChanged)
		return nil
	})
	return removed, err
}

// AddAdminNote appends note to a queued record's admin notes.
func (s *Service) AddAdminNote(ctx context.Context, scope ledger.Scope, ref, note string) (ledger.PendingResultRecord, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return ledger.PendingResultRecord{}, ledger.New(ledger.CodeInvalidComment, "note is required")
	}
	var updated ledger.PendingResultRecord
	err := s.locked(ctx, scope, func(ctx context.Context, emit emitFunc) error {
		queue, err := s.store.Pending(ctx, scope)
		if err != nil {
			return err
		}
		i, err := resolveRef(queue, ref)
		if err != nil {
			return err
		}
		queue = slices.Clone(queue)
		if queue[i].NotesToAdmin == "" {
			queue[i].NotesToAdmin = note
		} else {
			queue[i].NotesToAdmin += noteSeparator + note
		}
		if err := s.store.ReplacePending(ctx, scope, queue); err != nil {
			return err
		}
		updated = queue[i]
		emit(updated.Game, EventPendingChanged)
		return nil
	})
	return updated, err
}

// ClearPending drops the whole queue.
func (s *Service) ClearPending(ctx context.Context, scope ledger.Scope) error {
	return s.locked(ctx, scope, func(ctx context.Context, emit emitFunc) error {
		if err := s.store.ClearPending(ctx, scope); err != nil {
			return err
		}
		s.logger(scope).Info("pending queue cleared")
		emit("", EventPendingChanged)
		return nil
	})
}

// window clamps [offset, offset+limit) to n items.
func window(n, offset, limit int) (lo, hi int) {
	lo = max(offset, 0)
	if lo > n {
		lo = n
	}
	hi = n
	if limit > 0 && lo+limit < n {
		hi = lo + limit
	}
	return lo, hi
}
