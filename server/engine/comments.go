package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"elo-ledger/server/ledger"
)

// CommentRequest addresses a result newest-first: Offset is the page start
// a client was showing and Index the row within that page. Timestamp, if
// set, must match the target row to the minute.
type CommentRequest struct {
	Scope     ledger.Scope `json:"-"`
	Comment   string       `json:"comment"`
	Author    string       `json:"author"`
	Offset    int          `json:"offset"`
	Index     int          `json:"index"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// AddComment appends `"<comment>" - <author>` to the addressed result.
func (s *Service) AddComment(ctx context.Context, req CommentRequest) (ledger.ResultRecord, error) {
	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		return ledger.ResultRecord{}, ledger.New(ledger.CodeInvalidComment, "comment is required")
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = anonymous
	}
	if req.Offset < 0 || req.Index < 0 {
		return ledger.ResultRecord{}, ledger.New(ledger.CodeInvalidPosition,
			fmt.Sprintf("offset %d and index %d must not be negative", req.Offset, req.Index))
	}

	var updated ledger.ResultRecord
	err := s.locked(ctx, req.Scope, func(ctx context.Context, emit emitFunc) error {
		results, err := s.store.Results(ctx, req.Scope)
		if err != nil {
			return err
		}
		row := len(results) - 1 - req.Offset - req.Index
		if row < 0 || row >= len(results) {
			return ledger.New(ledger.CodeInvalidPosition,
				fmt.Sprintf("offset %d index %d is out of range (%d results)", req.Offset, req.Index, len(results)))
		}
		target := results[row]
		if ts := strings.TrimSpace(req.Timestamp); ts != "" && !ledger.SameMinute(ts, target.Timestamp) {
			return ledger.New(ledger.CodeTimestampMismatch,
				fmt.Sprintf("result at that position is from %s, not %s", target.Timestamp, ts))
		}
		comments := append(slices.Clone(target.Comments), ledger.FormatComment(comment, author))
		if err := s.store.SetResultComments(ctx, req.Scope, row, comments); err != nil {
			return err
		}
		target.Comments = comments
		updated = target
		emit(target.Game, EventCommentAdded)
		return nil
	})
	return updated, err
}
