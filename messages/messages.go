// Package messages holds the canned message corpus used by the waiting agent.
package messages

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category names one list of messages in a Table.
type Category string

const (
	Greeting      Category = "greeting"
	Good          Category = "good"
	QuestionReply Category = "questionReply"
	Bad           Category = "bad"
	BadFinal      Category = "badFinal"
)

// Categories lists every category the agent draws from.
var Categories = []Category{Greeting, Good, QuestionReply, Bad, BadFinal}

var (
	// ErrNoMessage is returned when a category has nothing to pick from.
	ErrNoMessage = errors.New("no message available")
	// ErrMissingCategory is returned by Validate for an empty required category.
	ErrMissingCategory = errors.New("missing message category")
	// ErrShortBadPool is returned by Validate when the bad category cannot
	// cover one escalation streak without running dry.
	ErrShortBadPool = errors.New("not enough bad messages")
	// ErrUnknownCategory is returned when a corpus file names a category the
	// agent does not know.
	ErrUnknownCategory = errors.New("unknown message category")
)

//go:embed default.yaml
var defaultCorpus []byte

// Table is a read-only mapping from category to an ordered list of messages.
type Table struct {
	entries map[Category][]string
}

// New builds a table from the given entries. The input is copied.
func New(entries map[Category][]string) *Table {
	t := &Table{entries: make(map[Category][]string, len(entries))}
	for c, list := range entries {
		t.entries[c] = append([]string(nil), list...)
	}
	return t
}

// Default returns the built-in corpus.
func Default() *Table {
	t, err := Parse(defaultCorpus)
	if err != nil {
		panic(fmt.Sprintf("messages: embedded corpus is invalid: %v", err))
	}
	return t
}

// Load reads a YAML corpus file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("messages: read %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("messages: parse %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a YAML corpus. Keys are category names, values are lists of
// strings. Blank entries are dropped.
func Parse(data []byte) (*Table, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	known := make(map[Category]bool, len(Categories))
	for _, c := range Categories {
		known[c] = true
	}

	entries := make(map[Category][]string, len(raw))
	for name, list := range raw {
		c := Category(strings.TrimSpace(name))
		if !known[c] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
		}
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				entries[c] = append(entries[c], s)
			}
		}
	}
	return &Table{entries: entries}, nil
}

// Get returns a copy of the messages in a category.
func (t *Table) Get(c Category) []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.entries[c]...)
}

// Len returns the number of messages in a category.
func (t *Table) Len(c Category) int {
	if t == nil {
		return 0
	}
	return len(t.entries[c])
}

// Pick returns a message from c chosen by randIndex, which must return a
// value in [0, n).
func (t *Table) Pick(c Category, randIndex func(n int) int) (string, error) {
	n := t.Len(c)
	if n == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoMessage, c)
	}
	return t.entries[c][randIndex(n)], nil
}

// Counts returns the size of every known category.
func (t *Table) Counts() map[Category]int {
	out := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		out[c] = t.Len(c)
	}
	return out
}

// Validate checks that every category is populated and that the bad pool
// covers maxBad-1 escalation messages. All problems are joined.
func (t *Table) Validate(maxBad int) error {
	var errs []error
	for _, c := range Categories {
		if t.Len(c) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingCategory, c))
		}
	}
	if need := maxBad - 1; need > 0 && t.Len(Bad) < need {
		errs = append(errs, fmt.Errorf("%w: have %d, need %d", ErrShortBadPool, t.Len(Bad), need))
	}
	return errors.Join(errs...)
}

// DefaultYAML returns the raw built-in corpus.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultCorpus...)
}
