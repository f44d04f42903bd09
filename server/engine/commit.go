package engine

import (
	"context"
	"fmt"
	"strings"

	"elo-ledger/server/elo"
	"elo-ledger/server/ledger"
)

// Match is one two-player game as submitted by a caller. Player1 plays
// white. Timestamp defaults to the submission time.
type Match struct {
	Scope     ledger.Scope  `json:"-"`
	Game      string        `json:"game"`
	Player1   string        `json:"player1"`
	Player2   string        `json:"player2"`
	Result    ledger.Result `json:"result"`
	Timestamp string        `json:"timestamp,omitempty"`
	Comment   string        `json:"comment,omitempty"`
	Author    string        `json:"author,omitempty"`
}

const anonymous = "anonymous"

// normalize validates names and the result before anything is read.
func (m Match) normalize() (Match, error) {
	var err error
	if m.Game, err = ledger.NormalizeName("game", m.Game); err != nil {
		return m, err
	}
	if m.Player1, err = ledger.NormalizeName("player", m.Player1); err != nil {
		return m, err
	}
	if m.Player2, err = ledger.NormalizeName("player", m.Player2); err != nil {
		return m, err
	}
	if m.Player1 == m.Player2 {
		return m, ledger.New(ledger.CodeInvalidMatch, fmt.Sprintf("player %q cannot play against themselves", m.Player1))
	}
	if m.Result, err = ledger.ParseResult(string(m.Result)); err != nil {
		return m, err
	}
	m.Timestamp = strings.TrimSpace(m.Timestamp)
	m.Comment = strings.TrimSpace(m.Comment)
	m.Author = strings.TrimSpace(m.Author)
	return m, nil
}

// comments renders the optional submission comment as the record's first
// comment.
func (m Match) comments() []string {
	if m.Comment == "" {
		return []string{}
	}
	author := m.Author
	if author == "" {
		author = anonymous
	}
	return []string{ledger.FormatComment(m.Comment, author)}
}

// CommitResult is what one committed game wrote.
type CommitResult struct {
	PendingID string              `json:"pending_id,omitempty"`
	Record    ledger.ResultRecord `json:"record"`
	Player1   ledger.RatingEntry  `json:"player1_entry"`
	Player2   ledger.RatingEntry  `json:"player2_entry"`
	K1        int                 `json:"player1_k"`
	K2        int                 `json:"player2_k"`
}

// SubmitImmediate rates and commits a game straight away.
func (s *Service) SubmitImmediate(ctx context.Context, m Match) (CommitResult, error) {
	m, err := m.normalize()
	if err != nil {
		return CommitResult{}, err
	}
	if m.Timestamp == "" {
		m.Timestamp = s.timestamp()
	}
	var res CommitResult
	err = s.locked(ctx, m.Scope, func(ctx context.Context, emit emitFunc) error {
		var err error
		res, err = s.commit(ctx, m, m.comments())
		if err == nil {
			emit(m.Game, EventResultCommitted)
		}
		return err
	})
	return res, err
}

// commit runs the paired update for a normalized match. Callers hold the
// scope lock. Nothing is written until both ratings and counts are read;
// a failure after the first ledger write leaves the scope inconsistent.
func (s *Service) commit(ctx context.Context, m Match, comments []string) (CommitResult, error) {
	log := s.logger(m.Scope).With("game", m.Game)

	r1, err := s.store.LatestRating(ctx, m.Scope, m.Game, m.Player1)
	if err != nil {
		return CommitResult{}, err
	}
	r2, err := s.store.LatestRating(ctx, m.Scope, m.Game, m.Player2)
	if err != nil {
		return CommitResult{}, err
	}
	n1, err := s.store.CountGames(ctx, m.Scope, m.Game, m.Player1)
	if err != nil {
		return CommitResult{}, err
	}
	n2, err := s.store.CountGames(ctx, m.Scope, m.Game, m.Player2)
	if err != nil {
		return CommitResult{}, err
	}

	k1 := s.policy.KFactor(m.Game, n1)
	k2 := s.policy.KFactor(m.Game, n2)
	score := m.Result.Score()
	u := elo.Pair(r1.Rating, r2.Rating, score, k1, k2)

	e1 := ledger.RatingEntry{Rating: u.New1, Opponent: m.Player2, Result: score, Side: ledger.White, Timestamp: m.Timestamp}
	e2 := ledger.RatingEntry{Rating: u.New2, Opponent: m.Player1, Result: 1 - score, Side: ledger.Black, Timestamp: m.Timestamp}
	c1, c2 := u.Change1(r1.Rating), u.Change2(r2.Rating)
	if comments == nil {
		comments = []string{}
	}
	rec := ledger.ResultRecord{
		Timestamp:     m.Timestamp,
		Game:          m.Game,
		Player1:       m.Player1,
		Player2:       m.Player2,
		Result:        m.Result,
		Probability:   u.Probability,
		Player1Change: &c1,
		Player2Change: &c2,
		Comments:      comments,
	}

	if err := s.store.AppendRating(ctx, m.Scope, m.Game, m.Player1, e1); err != nil {
		return CommitResult{}, err
	}
	if err := s.store.AppendRating(ctx, m.Scope, m.Game, m.Player2, e2); err != nil {
		log.Error("ledger diverged: second rating append failed",
			"player1", m.Player1, "player2", m.Player2, "err", err)
		return CommitResult{}, ledger.Wrap(ledger.CodeInconsistentLedgerState,
			fmt.Sprintf("rating for %q written but rating for %q failed", m.Player1, m.Player2), err)
	}
	if err := s.store.AppendResult(ctx, m.Scope, rec); err != nil {
		log.Error("ledger diverged: result append failed",
			"player1", m.Player1, "player2", m.Player2, "err", err)
		return CommitResult{}, ledger.Wrap(ledger.CodeInconsistentLedgerState,
			fmt.Sprintf("ratings for %q and %q written but the result log append failed", m.Player1, m.Player2), err)
	}

	log.Debug("result committed",
		"player1", m.Player1, "player2", m.Player2, "result", m.Result,
		"probability", u.Probability, "player1_change", c1, "player2_change", c2)
	return CommitResult{Record: rec, Player1: e1, Player2: e2, K1: k1, K2: k2}, nil
}
