package batch

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	s, err := Parse("0 2 * * *")
	if err != nil {
		t.Fatal(err)
	}

	from := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	next := s.Next(from)
	want := time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, expr := range []string{"", "not a cron", "* * * *"} {
		if _, err := Parse(expr); err == nil {
			t.Errorf("Parse(%q) accepted", expr)
		}
	}
}
