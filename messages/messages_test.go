package messages

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCorpusIsComplete(t *testing.T) {
	table := Default()
	if err := table.Validate(5); err != nil {
		t.Fatalf("default corpus should validate: %v", err)
	}
	for _, c := range Categories {
		if table.Len(c) == 0 {
			t.Fatalf("default corpus has empty category %s", c)
		}
	}
}

func TestParseRejectsUnknownCategory(t *testing.T) {
	_, err := Parse([]byte("greeting: [hi]\nfarewell: [bye]\n"))
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestParseDropsBlankEntries(t *testing.T) {
	table, err := Parse([]byte("bad:\n  - one\n  - '   '\n  - two\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := table.Len(Bad); got != 2 {
		t.Fatalf("bad len = %d, want 2", got)
	}
}

func TestPick(t *testing.T) {
	table := New(map[Category][]string{Good: {"a", "b", "c"}})

	got, err := table.Pick(Good, func(n int) int { return n - 1 })
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if got != "c" {
		t.Fatalf("pick = %q, want %q", got, "c")
	}

	if _, err := table.Pick(BadFinal, func(int) int { return 0 }); !errors.Is(err, ErrNoMessage) {
		t.Fatalf("expected ErrNoMessage for empty category, got %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	table := New(map[Category][]string{Bad: {"x", "y"}})
	list := table.Get(Bad)
	list[0] = "mutated"
	if table.Get(Bad)[0] != "x" {
		t.Fatalf("Get must not expose internal storage")
	}
}

func TestValidate(t *testing.T) {
	full := map[Category][]string{
		Greeting:      {"g"},
		Good:          {"ok"},
		QuestionReply: {"q"},
		Bad:           {"b1", "b2"},
		BadFinal:      {"f"},
	}

	tests := []struct {
		name    string
		entries map[Category][]string
		maxBad  int
		want    error
	}{
		{name: "complete", entries: full, maxBad: 3},
		{name: "short bad pool", entries: full, maxBad: 4, want: ErrShortBadPool},
		{name: "single escalation needs no bad", entries: map[Category][]string{
			Greeting: {"g"}, Good: {"ok"}, QuestionReply: {"q"}, Bad: {"b"}, BadFinal: {"f"},
		}, maxBad: 1},
		{name: "missing category", entries: map[Category][]string{Greeting: {"g"}}, maxBad: 1, want: ErrMissingCategory},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := New(tc.entries).Validate(tc.maxBad)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	if err := os.WriteFile(path, DefaultYAML(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	table, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table.Len(Bad) != Default().Len(Bad) {
		t.Fatalf("loaded corpus differs from default")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
