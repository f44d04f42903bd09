package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"elo-ledger/server/ledger"
)

// openTestDB connects to LEDGER_TEST_DATABASE_URL or skips.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL not set")
	}
	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close(context.Background()) })
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func uniqueScope(t *testing.T) ledger.Scope {
	return ledger.Scope(fmt.Sprintf("test_%d", time.Now().UnixNano()))
}

func TestPostgresLedgerAndLogs(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	scope := uniqueScope(t)

	if err := db.CreatePlayer(ctx, scope, "chess", "ann", ledger.Bootstrap(0, "")); err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	if err := db.CreatePlayer(ctx, scope, "chess", "ann", ledger.Bootstrap(0, "")); !errors.Is(err, ledger.ErrPlayerExists) {
		t.Fatalf("duplicate: got %v", err)
	}
	if _, err := db.TruncateLastRating(ctx, scope, "chess", "ann"); !errors.Is(err, ledger.ErrInsufficientHistory) {
		t.Fatalf("truncate bootstrap: got %v", err)
	}
	e := ledger.RatingEntry{Rating: 1220, Opponent: "bob", Result: 1, Side: ledger.White, Timestamp: "2025-03-01 10:00:00.000000"}
	if err := db.AppendRating(ctx, scope, "chess", "ann", e); err != nil {
		t.Fatalf("AppendRating: %v", err)
	}
	if n, err := db.CountGames(ctx, scope, "chess", "ann"); err != nil || n != 1 {
		t.Fatalf("CountGames = %d, %v", n, err)
	}
	got, err := db.TruncateLastRating(ctx, scope, "chess", "ann")
	if err != nil || got != e {
		t.Fatalf("TruncateLastRating = %+v, %v", got, err)
	}

	if _, err := db.LatestResult(ctx, scope); !errors.Is(err, ledger.ErrEmptyLog) {
		t.Fatalf("empty log: got %v", err)
	}
	change := 20
	rec := ledger.ResultRecord{Timestamp: "2025-03-01 10:00:00.000000", Game: "chess", Player1: "ann", Player2: "bob",
		Result: ledger.Player1Wins, Probability: 0.51234, Player1Change: &change, Comments: []string{"a"}}
	if err := db.AppendResult(ctx, scope, rec); err != nil {
		t.Fatalf("AppendResult: %v", err)
	}
	if err := db.SetResultComments(ctx, scope, 0, []string{"a", "b"}); err != nil {
		t.Fatalf("SetResultComments: %v", err)
	}
	last, err := db.RemoveLastResult(ctx, scope)
	if err != nil {
		t.Fatalf("RemoveLastResult: %v", err)
	}
	if last.Probability != 0.512 || len(last.Comments) != 2 || last.Player2Change != nil {
		t.Fatalf("removed = %+v", last)
	}

	p := ledger.PendingResultRecord{Timestamp: "2025-03-01 10:00:00.000000", Game: "chess", Player1: "ann", Player2: "bob",
		Result: ledger.Draw, Probability: 0.5, SubmissionTimestamp: "2025-03-01 10:01:00.000000"}
	if err := db.AppendPending(ctx, scope, p); err != nil {
		t.Fatalf("AppendPending: %v", err)
	}
	pending, err := db.Pending(ctx, scope)
	if err != nil || len(pending) != 1 || pending[0].ID == "" {
		t.Fatalf("Pending = %+v, %v", pending, err)
	}
	if err := db.ReplacePending(ctx, scope, nil); err != nil {
		t.Fatalf("ReplacePending: %v", err)
	}
	if pending, _ := db.Pending(ctx, scope); len(pending) != 0 {
		t.Fatalf("queue not emptied: %+v", pending)
	}
}
