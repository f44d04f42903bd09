package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"elo-ledger/server/ledger"
)

//go:embed schema.sql
var schema embed.FS

// DB is the Postgres-backed ledger store.
type DB struct{ *pgxpool.Pool }

var _ ledger.Store = (*DB)(nil)

func Open(dsn string) (*DB, error) {
	p, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close(ctx context.Context)      { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

// round3 keeps probabilities at the precision the file logs use.
func round3(p float64) float64 { return math.Round(p*1000) / 1000 }

/* -----------------------------
   Player ledgers
------------------------------*/

func (db *DB) CreatePlayer(ctx context.Context, scope ledger.Scope, game, player string, bootstrap ledger.RatingEntry) error {
	var exists bool
	if err := db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM rating_entries WHERE scope = $1 AND game = $2 AND player = $3)
	`, string(scope), game, player).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ledger.New(ledger.CodePlayerExists, fmt.Sprintf("player %q already exists for %s", player, game))
	}
	return db.AppendRating(ctx, scope, game, player, bootstrap)
}

func (db *DB) DeletePlayer(ctx context.Context, scope ledger.Scope, game, player string) error {
	tag, err := db.Exec(ctx, `
		DELETE FROM rating_entries WHERE scope = $1 AND game = $2 AND player = $3
	`, string(scope), game, player)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(game, player)
	}
	return nil
}

func (db *DB) ListPlayers(ctx context.Context, scope ledger.Scope, game string) ([]string, error) {
	rows, err := db.Query(ctx, `
		SELECT DISTINCT player FROM rating_entries
		 WHERE scope = $1 AND game = $2
		 ORDER BY player
	`, string(scope), game)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) AppendRating(ctx context.Context, scope ledger.Scope, game, player string, e ledger.RatingEntry) error {
	side := e.Side
	if side == "" {
		side = ledger.NoSide
	}
	_, err := db.Exec(ctx, `
		INSERT INTO rating_entries(scope, game, player, rating, opponent, result, side, ts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, string(scope), game, player, e.Rating, e.Opponent, e.Result, string(side), e.Timestamp)
	return err
}

func (db *DB) RatingHistory(ctx context.Context, scope ledger.Scope, game, player string) ([]ledger.RatingEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT rating, opponent, result, side, ts
		  FROM rating_entries
		 WHERE scope = $1 AND game = $2 AND player = $3
		 ORDER BY id
	`, string(scope), game, player)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.RatingEntry
	for rows.Next() {
		var e ledger.RatingEntry
		var side string
		if err := rows.Scan(&e.Rating, &e.Opponent, &e.Result, &side, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Side = ledger.Side(side)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, notFound(game, player)
	}
	return out, nil
}

func (db *DB) LatestRating(ctx context.Context, scope ledger.Scope, game, player string) (ledger.RatingEntry, error) {
	var e ledger.RatingEntry
	var side string
	err := db.QueryRow(ctx, `
		SELECT rating, opponent, result, side, ts
		  FROM rating_entries
		 WHERE scope = $1 AND game = $2 AND player = $3
		 ORDER BY id DESC
		 LIMIT 1
	`, string(scope), game, player).Scan(&e.Rating, &e.Opponent, &e.Result, &side, &e.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, notFound(game, player)
	}
	e.Side = ledger.Side(side)
	return e, err
}

func (db *DB) CountGames(ctx context.Context, scope ledger.Scope, game, player string) (int, error) {
	var n int
	if err := db.QueryRow(ctx, `
		SELECT COUNT(*)::int FROM rating_entries WHERE scope = $1 AND game = $2 AND player = $3
	`, string(scope), game, player).Scan(&n); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, notFound(game, player)
	}
	return n - 1, nil
}

func (db *DB) TruncateLastRating(ctx context.Context, scope ledger.Scope, game, player string) (ledger.RatingEntry, error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ledger.RatingEntry{}, err
	}
	defer tx.Rollback(ctx) // safe if already committed

	rows, err := tx.Query(ctx, `
		SELECT id, rating, opponent, result, side, ts
		  FROM rating_entries
		 WHERE scope = $1 AND game = $2 AND player = $3
		 ORDER BY id DESC
		 LIMIT 2
		 FOR UPDATE
	`, string(scope), game, player)
	if err != nil {
		return ledger.RatingEntry{}, err
	}
	var ids []int64
	var tail ledger.RatingEntry
	for rows.Next() {
		var id int64
		var e ledger.RatingEntry
		var side string
		if err := rows.Scan(&id, &e.Rating, &e.Opponent, &e.Result, &side, &e.Timestamp); err != nil {
			rows.Close()
			return ledger.RatingEntry{}, err
		}
		if len(ids) == 0 {
			e.Side = ledger.Side(side)
			tail = e
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ledger.RatingEntry{}, err
	}
	switch len(ids) {
	case 0:
		return ledger.RatingEntry{}, notFound(game, player)
	case 1:
		return ledger.RatingEntry{}, ledger.New(ledger.CodeInsufficientHistory,
			fmt.Sprintf("player %q has no game entries to delete in %s (only initial rating remains)", player, game))
	}
	if _, err := tx.Exec(ctx, `DELETE FROM rating_entries WHERE id = $1`, ids[0]); err != nil {
		return ledger.RatingEntry{}, err
	}
	return tail, tx.Commit(ctx)
}

/* -----------------------------
   Result log
------------------------------*/

func (db *DB) AppendResult(ctx context.Context, scope ledger.Scope, r ledger.ResultRecord) error {
	comments := r.Comments
	if comments == nil {
		comments = []string{}
	}
	_, err := db.Exec(ctx, `
		INSERT INTO results(scope, ts, game, player1, player2, result, probability,
		                    player1_change, player2_change, comments)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, string(scope), r.Timestamp, r.Game, r.Player1, r.Player2, string(r.Result), round3(r.Probability),
		r.Player1Change, r.Player2Change, comments)
	return err
}

func scanResult(row pgx.Row) (ledger.ResultRecord, error) {
	var r ledger.ResultRecord
	var res string
	if err := row.Scan(&r.Timestamp, &r.Game, &r.Player1, &r.Player2, &res, &r.Probability,
		&r.Player1Change, &r.Player2Change, &r.Comments); err != nil {
		return r, err
	}
	r.Result = ledger.Result(res)
	if r.Comments == nil {
		r.Comments = []string{}
	}
	return r, nil
}

const resultCols = `ts, game, player1, player2, result, probability, player1_change, player2_change, comments`

func (db *DB) Results(ctx context.Context, scope ledger.Scope) ([]ledger.ResultRecord, error) {
	rows, err := db.Query(ctx, `SELECT `+resultCols+` FROM results WHERE scope = $1 ORDER BY id`, string(scope))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.ResultRecord{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) LatestResult(ctx context.Context, scope ledger.Scope) (ledger.ResultRecord, error) {
	r, err := scanResult(db.QueryRow(ctx,
		`SELECT `+resultCols+` FROM results WHERE scope = $1 ORDER BY id DESC LIMIT 1`, string(scope)))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, emptyLog(scope)
	}
	return r, err
}

func (db *DB) RemoveLastResult(ctx context.Context, scope ledger.Scope) (ledger.ResultRecord, error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ledger.ResultRecord{}, err
	}
	defer tx.Rollback(ctx)

	var id int64
	var r ledger.ResultRecord
	var res string
	err = tx.QueryRow(ctx, `
		SELECT id, `+resultCols+`
		  FROM results WHERE scope = $1
		 ORDER BY id DESC LIMIT 1
		 FOR UPDATE
	`, string(scope)).Scan(&id, &r.Timestamp, &r.Game, &r.Player1, &r.Player2, &res, &r.Probability,
		&r.Player1Change, &r.Player2Change, &r.Comments)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, emptyLog(scope)
	}
	if err != nil {
		return r, err
	}
	r.Result = ledger.Result(res)
	if r.Comments == nil {
		r.Comments = []string{}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM results WHERE id = $1`, id); err != nil {
		return r, err
	}
	return r, tx.Commit(ctx)
}

func (db *DB) SetResultComments(ctx context.Context, scope ledger.Scope, row int, comments []string) error {
	if row < 0 {
		return ledger.New(ledger.CodeInvalidPosition, fmt.Sprintf("row %d out of range", row))
	}
	if comments == nil {
		comments = []string{}
	}
	tag, err := db.Exec(ctx, `
		UPDATE results SET comments = $3
		 WHERE id = (SELECT id FROM results WHERE scope = $1 ORDER BY id OFFSET $2 LIMIT 1)
	`, string(scope), row, comments)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.New(ledger.CodeInvalidPosition, fmt.Sprintf("row %d out of range", row))
	}
	return nil
}

/* -----------------------------
   Pending queue
------------------------------*/

const pendingCols = `id::text, ts, game, player1, player2, result, probability, comments, submission_ts, notes_to_admin`

func (db *DB) AppendPending(ctx context.Context, scope ledger.Scope, r ledger.PendingResultRecord) error {
	return insertPending(ctx, db.Pool, scope, r)
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertPending(ctx context.Context, q execer, scope ledger.Scope, r ledger.PendingResultRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	comments := r.Comments
	if comments == nil {
		comments = []string{}
	}
	_, err := q.Exec(ctx, `
		INSERT INTO pending_results(id, scope, ts, game, player1, player2, result, probability,
		                            comments, submission_ts, notes_to_admin)
		VALUES ($1::uuid,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, r.ID, string(scope), r.Timestamp, r.Game, r.Player1, r.Player2, string(r.Result), round3(r.Probability),
		comments, r.SubmissionTimestamp, r.NotesToAdmin)
	return err
}

func (db *DB) Pending(ctx context.Context, scope ledger.Scope) ([]ledger.PendingResultRecord, error) {
	rows, err := db.Query(ctx, `SELECT `+pendingCols+` FROM pending_results WHERE scope = $1 ORDER BY seq`, string(scope))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.PendingResultRecord{}
	for rows.Next() {
		var r ledger.PendingResultRecord
		var res string
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Game, &r.Player1, &r.Player2, &res, &r.Probability,
			&r.Comments, &r.SubmissionTimestamp, &r.NotesToAdmin); err != nil {
			return nil, err
		}
		r.Result = ledger.Result(res)
		if r.Comments == nil {
			r.Comments = []string{}
		}
		if r.SubmissionTimestamp == "" {
			r.SubmissionTimestamp = r.Timestamp
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplacePending rewrites the scope's queue in one transaction.
func (db *DB) ReplacePending(ctx context.Context, scope ledger.Scope, recs []ledger.PendingResultRecord) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM pending_results WHERE scope = $1`, string(scope)); err != nil {
		return err
	}
	for _, r := range recs {
		if err := insertPending(ctx, tx, scope, r); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (db *DB) ClearPending(ctx context.Context, scope ledger.Scope) error {
	_, err := db.Exec(ctx, `DELETE FROM pending_results WHERE scope = $1`, string(scope))
	return err
}

/* -----------------------------
   Deleted log
------------------------------*/

func (db *DB) AppendDeleted(ctx context.Context, scope ledger.Scope, r ledger.DeletedResultRecord) error {
	_, err := db.Exec(ctx, `
		INSERT INTO deleted_results(scope, original_ts, deletion_ts, game, player1, player2, result, probability)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, string(scope), r.OriginalTimestamp, r.DeletionTimestamp, r.Game, r.Player1, r.Player2,
		string(r.Result), round3(r.Probability))
	return err
}

func (db *DB) Deleted(ctx context.Context, scope ledger.Scope) ([]ledger.DeletedResultRecord, error) {
	rows, err := db.Query(ctx, `
		SELECT original_ts, deletion_ts, game, player1, player2, result, probability
		  FROM deleted_results
		 WHERE scope = $1
		 ORDER BY id
	`, string(scope))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ledger.DeletedResultRecord{}
	for rows.Next() {
		var r ledger.DeletedResultRecord
		var res string
		if err := rows.Scan(&r.OriginalTimestamp, &r.DeletionTimestamp, &r.Game, &r.Player1, &r.Player2,
			&res, &r.Probability); err != nil {
			return nil, err
		}
		r.Result = ledger.Result(res)
		out = append(out, r)
	}
	return out, rows.Err()
}

func notFound(game, player string) error {
	return ledger.New(ledger.CodePlayerNotFound, fmt.Sprintf("player %q not found in %s", player, game))
}

func emptyLog(scope ledger.Scope) error {
	return ledger.New(ledger.CodeEmptyLog, fmt.Sprintf("no results recorded for %s", scope))
}
