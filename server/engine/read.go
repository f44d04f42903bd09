package engine

import (
	"context"
	"slices"
	"strings"

	"elo-ledger/server/elo"
	"elo-ledger/server/ledger"
)

func (s *Service) LatestRating(ctx context.Context, scope ledger.Scope, game, player string) (ledger.RatingEntry, error) {
	game, player, err := names(game, player)
	if err != nil {
		return ledger.RatingEntry{}, err
	}
	return s.store.LatestRating(ctx, scope, game, player)
}

func (s *Service) GameCount(ctx context.Context, scope ledger.Scope, game, player string) (int, error) {
	game, player, err := names(game, player)
	if err != nil {
		return 0, err
	}
	return s.store.CountGames(ctx, scope, game, player)
}

func (s *Service) RatingHistory(ctx context.Context, scope ledger.Scope, game, player string) ([]ledger.RatingEntry, error) {
	game, player, err := names(game, player)
	if err != nil {
		return nil, err
	}
	return s.store.RatingHistory(ctx, scope, game, player)
}

// KFactor is the K the player would use in their next game.
func (s *Service) KFactor(ctx context.Context, scope ledger.Scope, game, player string) (int, error) {
	n, err := s.GameCount(ctx, scope, game, player)
	if err != nil {
		return 0, err
	}
	return s.policy.KFactor(strings.ToLower(strings.TrimSpace(game)), n), nil
}

// WinProbability is P(player1 beats player2) from current ratings.
func (s *Service) WinProbability(ctx context.Context, scope ledger.Scope, game, player1, player2 string) (float64, error) {
	r1, err := s.LatestRating(ctx, scope, game, player1)
	if err != nil {
		return 0, err
	}
	r2, err := s.LatestRating(ctx, scope, game, player2)
	if err != nil {
		return 0, err
	}
	return elo.WinProbability(r1.Rating, r2.Rating), nil
}

// ResultItem is a committed result with its newest-first offset, the value
// AddComment takes as Offset (with Index 0).
type ResultItem struct {
	Offset int `json:"offset"`
	ledger.ResultRecord
}

// ListResults pages the result log newest first. A limit <= 0 means
// everything after offset.
func (s *Service) ListResults(ctx context.Context, scope ledger.Scope, offset, limit int) ([]ResultItem, int, error) {
	results, err := s.store.Results(ctx, scope)
	if err != nil {
		return nil, 0, err
	}
	n := len(results)
	lo, hi := window(n, offset, limit)
	out := make([]ResultItem, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, ResultItem{Offset: i, ResultRecord: results[n-1-i]})
	}
	return out, n, nil
}

func (s *Service) ListDeleted(ctx context.Context, scope ledger.Scope) ([]ledger.DeletedResultRecord, error) {
	return s.store.Deleted(ctx, scope)
}

func (s *Service) ListPlayers(ctx context.Context, scope ledger.Scope, game string) ([]string, error) {
	game, err := ledger.NormalizeName("game", game)
	if err != nil {
		return nil, err
	}
	return s.store.ListPlayers(ctx, scope, game)
}

// CreatePlayer starts a ledger. A zero rating uses the configured start
// rating; an empty timestamp uses "beginning of time".
func (s *Service) CreatePlayer(ctx context.Context, scope ledger.Scope, game, player string, rating float64, timestamp string) (ledger.RatingEntry, error) {
	game, player, err := names(game, player)
	if err != nil {
		return ledger.RatingEntry{}, err
	}
	if rating <= 0 {
		rating = s.start
	}
	entry := ledger.Bootstrap(rating, timestamp)
	err = s.locked(ctx, scope, func(ctx context.Context, emit emitFunc) error {
		if err := s.store.CreatePlayer(ctx, scope, game, player, entry); err != nil {
			return err
		}
		s.logger(scope).Info("player created", "game", game, "player", player, "rating", rating)
		emit(game, EventPlayersChanged)
		return nil
	})
	return entry, err
}

// DeletePlayer removes a ledger. Results that name the player stay in the
// log.
func (s *Service) DeletePlayer(ctx context.Context, scope ledger.Scope, game, player string) error {
	game, player, err := names(game, player)
	if err != nil {
		return err
	}
	return s.locked(ctx, scope, func(ctx context.Context, emit emitFunc) error {
		if err := s.store.DeletePlayer(ctx, scope, game, player); err != nil {
			return err
		}
		s.logger(scope).Info("player deleted", "game", game, "player", player)
		emit(game, EventPlayersChanged)
		return nil
	})
}

// Standing is one leaderboard row.
type Standing struct {
	Rank   int        `json:"rank"`
	Player string     `json:"player"`
	Rating float64    `json:"rating"`
	Games  int        `json:"games"`
	Record elo.Record `json:"record"`
	CILow  float64    `json:"ci_low"`
	CIHigh float64    `json:"ci_high"`
}

// Leaderboard ranks a game's players: anyone who has played sorts ahead of
// anyone who has not, then by rating, highest first.
func (s *Service) Leaderboard(ctx context.Context, scope ledger.Scope, game string, exclude []string) ([]Standing, error) {
	game, err := ledger.NormalizeName("game", game)
	if err != nil {
		return nil, err
	}
	players, err := s.store.ListPlayers(ctx, scope, game)
	if err != nil {
		return nil, err
	}
	results, err := s.store.Results(ctx, scope)
	if err != nil {
		return nil, err
	}
	records := map[string]*elo.Record{}
	for _, r := range results {
		if r.Game != game {
			continue
		}
		score := r.Result.Score()
		for player, sc := range map[string]float64{r.Player1: score, r.Player2: 1 - score} {
			rec, ok := records[player]
			if !ok {
				rec = &elo.Record{}
				records[player] = rec
			}
			rec.Add(sc)
		}
	}

	skip := map[string]bool{}
	for _, p := range exclude {
		skip[strings.ToLower(strings.TrimSpace(p))] = true
	}
	out := []Standing{}
	for _, p := range players {
		if skip[p] {
			continue
		}
		latest, err := s.store.LatestRating(ctx, scope, game, p)
		if err != nil {
			return nil, err
		}
		n, err := s.store.CountGames(ctx, scope, game, p)
		if err != nil {
			return nil, err
		}
		st := Standing{Player: p, Rating: latest.Rating, Games: n}
		if rec, ok := records[p]; ok {
			st.Record = *rec
		}
		st.CILow, st.CIHigh = st.Record.CI95()
		out = append(out, st)
	}
	slices.SortStableFunc(out, func(a, b Standing) int {
		switch {
		case (a.Games > 0) != (b.Games > 0):
			if a.Games > 0 {
				return -1
			}
			return 1
		case a.Rating != b.Rating:
			if a.Rating > b.Rating {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Player, b.Player)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func names(game, player string) (string, string, error) {
	g, err := ledger.NormalizeName("game", game)
	if err != nil {
		return "", "", err
	}
	p, err := ledger.NormalizeName("player", player)
	if err != nil {
		return "", "", err
	}
	return g, p, nil
}
