package ledger

import (
	"fmt"
	"strings"
)

// Scope partitions every ledger and log. The zero value is the default pool.
type Scope string

const DefaultScope Scope = ""

func (s Scope) IsDefault() bool { return s == DefaultScope }

// String returns "default" for the default pool so logs stay readable.
func (s Scope) String() string {
	if s.IsDefault() {
		return "default"
	}
	return string(s)
}

type Side string

const (
	White  Side = "white"
	Black  Side = "black"
	NoSide Side = "none"
)

const (
	DefaultStartRating = 1200.0
	BeginningOfTime    = "beginning of time"
	NoOpponent         = "no opponent"
)

// RatingEntry is one row of a player's ledger.
type RatingEntry struct {
	Rating    float64 `json:"rating"`
	Opponent  string  `json:"opponent"`
	Result    float64 `json:"result"`
	Side      Side    `json:"side"`
	Timestamp string  `json:"timestamp"`
}

// Bootstrap builds the synthetic first entry of a ledger. Zero rating or
// empty timestamp fall back to 1200 and "beginning of time".
func Bootstrap(rating float64, timestamp string) RatingEntry {
	if rating == 0 {
		rating = DefaultStartRating
	}
	if strings.TrimSpace(timestamp) == "" {
		timestamp = BeginningOfTime
	}
	return RatingEntry{Rating: rating, Opponent: NoOpponent, Result: 0, Side: NoSide, Timestamp: timestamp}
}

func (e RatingEntry) IsBootstrap() bool { return e.Opponent == NoOpponent }

// Result is the outcome of a two-player game from player1's point of view.
type Result string

const (
	Player1Wins Result = "1-0"
	Player2Wins Result = "0-1"
	Draw        Result = "1/2-1/2"
)

func ParseResult(s string) (Result, error) {
	switch r := Result(strings.TrimSpace(s)); r {
	case Player1Wins, Player2Wins, Draw:
		return r, nil
	}
	return "", New(CodeInvalidResultFormat, fmt.Sprintf("result %q must be one of 1-0, 0-1, 1/2-1/2", s))
}

// ResultFromScore maps player1's score onto the result enum.
func ResultFromScore(score float64) (Result, error) {
	switch score {
	case 1:
		return Player1Wins, nil
	case 0:
		return Player2Wins, nil
	case 0.5:
		return Draw, nil
	}
	return "", New(CodeInvalidScore, fmt.Sprintf("score %v must be 0, 0.5 or 1", score))
}

// Score is player1's actual score.
func (r Result) Score() float64 {
	switch r {
	case Player1Wins:
		return 1
	case Player2Wins:
		return 0
	default:
		return 0.5
	}
}

// ResultRecord is one finalized game in a scope's result log.
type ResultRecord struct {
	Timestamp     string   `json:"timestamp"`
	Game          string   `json:"game"`
	Player1       string   `json:"player1"`
	Player2       string   `json:"player2"`
	Result        Result   `json:"result"`
	Probability   float64  `json:"probability"`
	Player1Change *int     `json:"player1_change"`
	Player2Change *int     `json:"player2_change"`
	Comments      []string `json:"comments"`
}

func (r ResultRecord) Involves(player string) bool {
	return r.Player1 == player || r.Player2 == player
}

// PendingResultRecord waits in the pending queue for admin approval.
type PendingResultRecord struct {
	ID                  string   `json:"id"`
	Timestamp           string   `json:"timestamp"`
	Game                string   `json:"game"`
	Player1             string   `json:"player1"`
	Player2             string   `json:"player2"`
	Result              Result   `json:"result"`
	Probability         float64  `json:"probability"`
	Comments            []string `json:"comments"`
	SubmissionTimestamp string   `json:"submission_timestamp"`
	NotesToAdmin        string   `json:"notes_to_admin"`
}

// DeletedResultRecord archives a result removed by undo. Never mutated.
type DeletedResultRecord struct {
	OriginalTimestamp string  `json:"original_timestamp"`
	DeletionTimestamp string  `json:"deletion_timestamp"`
	Game              string  `json:"game"`
	Player1           string  `json:"player1"`
	Player2           string  `json:"player2"`
	Result            Result  `json:"result"`
	Probability       float64 `json:"probability"`
}

// FormatComment renders an annotation the way it is stored in the log.
func FormatComment(comment, author string) string {
	return `"` + comment + `" - ` + author
}
