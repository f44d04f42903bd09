package ledger

import "context"

// PlayerLedger holds one append-only rating history per (scope, game, player).
type PlayerLedger interface {
	CreatePlayer(ctx context.Context, scope Scope, game, player string, bootstrap RatingEntry) error
	DeletePlayer(ctx context.Context, scope Scope, game, player string) error
	ListPlayers(ctx context.Context, scope Scope, game string) ([]string, error)
	AppendRating(ctx context.Context, scope Scope, game, player string, entry RatingEntry) error
	LatestRating(ctx context.Context, scope Scope, game, player string) (RatingEntry, error)
	RatingHistory(ctx context.Context, scope Scope, game, player string) ([]RatingEntry, error)
	// CountGames is the number of entries minus the bootstrap.
	CountGames(ctx context.Context, scope Scope, game, player string) (int, error)
	// TruncateLastRating removes and returns the tail entry. It refuses to
	// remove the bootstrap entry.
	TruncateLastRating(ctx context.Context, scope Scope, game, player string) (RatingEntry, error)
}

// ResultLog is a scope's append-only list of finalized games, oldest first.
type ResultLog interface {
	AppendResult(ctx context.Context, scope Scope, rec ResultRecord) error
	Results(ctx context.Context, scope Scope) ([]ResultRecord, error)
	LatestResult(ctx context.Context, scope Scope) (ResultRecord, error)
	RemoveLastResult(ctx context.Context, scope Scope) (ResultRecord, error)
	// SetResultComments replaces the comment list of the row at storage
	// position row (0 = oldest).
	SetResultComments(ctx context.Context, scope Scope, row int, comments []string) error
}

// PendingQueue holds results awaiting approval in storage order.
type PendingQueue interface {
	AppendPending(ctx context.Context, scope Scope, rec PendingResultRecord) error
	Pending(ctx context.Context, scope Scope) ([]PendingResultRecord, error)
	// ReplacePending rewrites the queue; an empty slice removes it.
	ReplacePending(ctx context.Context, scope Scope, recs []PendingResultRecord) error
	ClearPending(ctx context.Context, scope Scope) error
}

// DeletedLog is the immutable audit trail written by undo.
type DeletedLog interface {
	AppendDeleted(ctx context.Context, scope Scope, rec DeletedResultRecord) error
	Deleted(ctx context.Context, scope Scope) ([]DeletedResultRecord, error)
}

type Store interface {
	PlayerLedger
	ResultLog
	PendingQueue
	DeletedLog
}
