// Package matcher suggests a service from a customer's free-text description
// of the cut they want. Suggestions only pre-fill the booking form; they are
// never used to decide whether a slot is free.
package matcher

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	SourceHeuristic = "heuristic"
	SourceGemini    = "gemini"

	defaultMinutes = 45
	defaultSummary = "Recommended based on your description."
	emptyNotes     = "—"
)

var ErrNoServices = errors.New("no services provided")

type Candidate struct {
	ID         string
	Name       string
	Minutes    int
	PriceCents int64
}

type Suggestion struct {
	Source    string `json:"source"`
	ServiceID string `json:"service_id,omitempty"`
	Minutes   int    `json:"minutes"`
	Notes     string `json:"notes"`
	Summary   string `json:"summary"`
}

// Classifier asks a remote model about the description and returns its reply.
type Classifier interface {
	Classify(ctx context.Context, description string, candidates []Candidate) (string, error)
}

type Matcher struct {
	remote Classifier
	logger *slog.Logger
}

// New returns a matcher. remote may be nil, in which case only the keyword
// heuristic is used.
func New(remote Classifier, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{remote: remote, logger: logger}
}

func (m *Matcher) Match(ctx context.Context, description string, candidates []Candidate) (Suggestion, error) {
	if len(candidates) == 0 {
		return Suggestion{}, ErrNoServices
	}
	if m.remote == nil {
		return Heuristic(description, candidates), nil
	}
	reply, err := m.remote.Classify(ctx, description, candidates)
	if err != nil {
		m.logger.Warn("remote style classifier failed; using heuristic", "err", err)
		return Heuristic(description, candidates), nil
	}
	return fromReply(reply, candidates), nil
}

type rule struct {
	trigger *regexp.Regexp
	prefer  []string
}

var rules = []rule{
	{trigger: regexp.MustCompile(`fade|taper|skin`), prefer: []string{"fade", "taper"}},
	{trigger: regexp.MustCompile(`beard|line`), prefer: []string{"beard", "line"}},
	{trigger: regexp.MustCompile(`kid|child`), prefer: []string{"kid", "child"}},
}

// Heuristic picks the first service whose name matches a keyword family
// mentioned in the description, or the shortest service otherwise.
func Heuristic(description string, candidates []Candidate) Suggestion {
	text := strings.ToLower(description)

	var pick *Candidate
	for _, r := range rules {
		if !r.trigger.MatchString(text) {
			continue
		}
		if c := preferByName(candidates, r.prefer); c != nil {
			pick = c
			break
		}
	}
	if pick == nil {
		pick = shortest(candidates)
	}

	s := Suggestion{
		Source:  SourceHeuristic,
		Minutes: defaultMinutes,
		Notes:   emptyNotes,
		Summary: defaultSummary,
	}
	if pick != nil {
		s.ServiceID = pick.ID
		if pick.Minutes > 0 {
			s.Minutes = pick.Minutes
		}
	}
	if trimmed := strings.TrimSpace(description); trimmed != "" {
		s.Notes = trimmed
	}
	return s
}

func preferByName(candidates []Candidate, keywords []string) *Candidate {
	for i := range candidates {
		name := strings.ToLower(candidates[i].Name)
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return &candidates[i]
			}
		}
	}
	return nil
}

func shortest(candidates []Candidate) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	sorted := append([]Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Minutes < sorted[j].Minutes })
	return &sorted[0]
}

var minutesPattern = regexp.MustCompile(`(?i)(\d{2,3})\s?m(in)?`)

// fromReply reads a service and duration out of a free-form model reply.
func fromReply(reply string, candidates []Candidate) Suggestion {
	lower := strings.ToLower(reply)
	s := Suggestion{Source: SourceGemini, Minutes: defaultMinutes}

	var found *Candidate
	for i := range candidates {
		name := strings.ToLower(candidates[i].Name)
		if name != "" && strings.Contains(lower, name) {
			found = &candidates[i]
			break
		}
	}
	if found != nil {
		s.ServiceID = found.ID
		if found.Minutes > 0 {
			s.Minutes = found.Minutes
		}
	}
	if m := minutesPattern.FindStringSubmatch(reply); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			s.Minutes = n
		}
	}
	s.Notes = truncate(reply, 180)
	s.Summary = truncate(reply, 120)
	return s
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
