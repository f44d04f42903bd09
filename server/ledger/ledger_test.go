package ledger

import (
	"errors"
	"fmt"
	"slices"
	"testing"
)

func TestParseResult(t *testing.T) {
	for _, s := range []string{"1-0", "0-1", "1/2-1/2", " 1-0 "} {
		if _, err := ParseResult(s); err != nil {
			t.Fatalf("ParseResult(%q): %v", s, err)
		}
	}
	for _, s := range []string{"", "2-0", "draw", "½-½"} {
		_, err := ParseResult(s)
		if !errors.Is(err, ErrInvalidResultFormat) {
			t.Fatalf("ParseResult(%q) = %v, want invalid format", s, err)
		}
	}
}

func TestResultFromScore(t *testing.T) {
	cases := map[float64]Result{1: Player1Wins, 0: Player2Wins, 0.5: Draw}
	for score, want := range cases {
		got, err := ResultFromScore(score)
		if err != nil || got != want {
			t.Fatalf("ResultFromScore(%v) = %q, %v", score, got, err)
		}
		if got.Score() != score {
			t.Fatalf("%q.Score() = %v", got, got.Score())
		}
	}
	if _, err := ResultFromScore(0.7); CodeOf(err) != CodeInvalidScore {
		t.Fatalf("0.7: got %v", err)
	}
}

func TestBootstrap(t *testing.T) {
	b := Bootstrap(0, "")
	if b.Rating != 1200 || b.Timestamp != BeginningOfTime || !b.IsBootstrap() || b.Side != NoSide {
		t.Fatalf("Bootstrap = %+v", b)
	}
	if b := Bootstrap(1500, "2025-01-01 00:00:00.000000"); b.Rating != 1500 || b.Timestamp == BeginningOfTime {
		t.Fatalf("override = %+v", b)
	}
}

func TestNormalizeName(t *testing.T) {
	got, err := NormalizeName("player", "  Alice_1 ")
	if err != nil || got != "alice_1" {
		t.Fatalf("NormalizeName = %q, %v", got, err)
	}
	for _, bad := range []string{"", "a b", "../etc", "bob!"} {
		if _, err := NormalizeName("player", bad); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("NormalizeName(%q) = %v", bad, err)
		}
	}
}

func TestParseScope(t *testing.T) {
	for _, s := range []string{"", "default", "DEFAULT"} {
		sc, err := ParseScope(s)
		if err != nil || !sc.IsDefault() {
			t.Fatalf("ParseScope(%q) = %q, %v", s, sc, err)
		}
	}
	sc, err := ParseScope("Team-A")
	if err != nil || sc != "team-a" {
		t.Fatalf("ParseScope(Team-A) = %q, %v", sc, err)
	}
	if sc.String() != "team-a" || DefaultScope.String() != "default" {
		t.Fatalf("String: %q %q", sc.String(), DefaultScope.String())
	}
	if _, err := ParseScope("a/b"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("a/b: %v", err)
	}
}

func TestSameMinute(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"2025-03-01 10:15:59.999999", "2025-03-01 10:15", true},
		{"2025-03-01 10:15:00.000000", "2025-03-01T10:15:30", true},
		{"2025-03-01 10:15:00.000000", "2025-03-01 10:16:00.000000", false},
		{"beginning of time", "beginning of time", true},
		{"garbage", "2025-03-01 10:15", false},
	}
	for _, c := range cases {
		if got := SameMinute(c.a, c.b); got != c.want {
			t.Fatalf("SameMinute(%q, %q) = %v", c.a, c.b, got)
		}
	}
}

func TestCompareTimestamps(t *testing.T) {
	if CompareTimestamps("2025-03-01 09:00:00.000000", "2025-03-01T10:00:00") >= 0 {
		t.Fatal("expected earlier < later")
	}
	if CompareTimestamps("2025-03-01 10:00:00.000000", "2025-03-01 10:00:00") != 0 {
		t.Fatal("expected equal")
	}
	if CompareTimestamps("b", "a") <= 0 {
		t.Fatal("text fallback")
	}
	if CompareTimestamps("2099-01-01 00:00", "0 garbage") >= 0 || CompareTimestamps("0 garbage", "2000-01-01 00:00") <= 0 {
		t.Fatal("unparseable values should sort after parseable ones")
	}
	// "1" < "2025..." < "3" by text, so a mixed fallback would not be transitive
	vals := []string{"3 junk", "2025-03-01 10:00:00.000000", "1 junk", "2024-01-01 10:00", "2 junk"}
	slices.SortFunc(vals, CompareTimestamps)
	want := []string{"2024-01-01 10:00", "2025-03-01 10:00:00.000000", "1 junk", "2 junk", "3 junk"}
	if !slices.Equal(vals, want) {
		t.Fatalf("sorted = %q", vals)
	}
}

func TestErrorCodes(t *testing.T) {
	base := New(CodeEmptyLog, "nothing to undo")
	wrapped := fmt.Errorf("undo: %w", base)
	if !errors.Is(wrapped, ErrEmptyLog) {
		t.Fatal("errors.Is by code")
	}
	if errors.Is(wrapped, ErrPlayerNotFound) {
		t.Fatal("different code matched")
	}
	if CodeOf(wrapped) != CodeEmptyLog {
		t.Fatalf("CodeOf = %s", CodeOf(wrapped))
	}
	if CodeOf(errors.New("x")) != CodeUnknown || CodeOf(nil) != "" {
		t.Fatal("CodeOf fallback")
	}
	cause := errors.New("disk full")
	w := Wrap(CodeInconsistentLedgerState, "ledger write failed", cause)
	if !errors.Is(w, cause) || w.Error() != "ledger write failed: disk full" {
		t.Fatalf("Wrap: %v", w)
	}
}

func TestFormatComment(t *testing.T) {
	if got := FormatComment("good game", "ann"); got != `"good game" - ann` {
		t.Fatalf("FormatComment = %s", got)
	}
}
