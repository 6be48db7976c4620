// Package grading scores one response against the answer key of one item.
package grading

import (
	"context"
	"fmt"
	"strings"
)

// Kind selects the scorer of an item.
type Kind string

const (
	SingleChoice Kind = "mcq_single"
	TrueFalse    Kind = "true_false"
	LongAnswer   Kind = "long_answer"
)

// Item is what a scorer needs to know about a question.
type Item struct {
	Kind   Kind
	Points float64
	// Accepted holds the correct responses.
	Accepted []string
	// Allowed is the closed set of responses; empty means any response.
	Allowed []string
	// MaxWords limits long answers; zero means no limit.
	MaxWords int
}

type Verdict struct {
	Correct bool
	Score   float64
	Max     float64
	// Invalid marks a response outside Item.Allowed or over the word limit.
	Invalid bool
	// Pending means a person still has to grade the response.
	Pending bool
	Words   int
	Notes   []string
}

type Scorer interface {
	Score(ctx context.Context, it Item, response string) (Verdict, error)
}

type ScorerFunc func(ctx context.Context, it Item, response string) (Verdict, error)

func (f ScorerFunc) Score(ctx context.Context, it Item, response string) (Verdict, error) {
	return f(ctx, it, response)
}

// Router dispatches to the scorer registered for an item's kind. Items of an
// unregistered kind come back pending.
type Router struct {
	scorers map[Kind]Scorer
}

type Option func(*options)

type options struct {
	foldCase bool
	custom   map[Kind]Scorer
}

// WithFoldCase matches choice ids without regard to case.
func WithFoldCase(b bool) Option { return func(o *options) { o.foldCase = b } }

// WithScorer registers s for kind, replacing a built-in one.
func WithScorer(kind Kind, s Scorer) Option {
	return func(o *options) {
		if o.custom == nil {
			o.custom = map[Kind]Scorer{}
		}
		o.custom[kind] = s
	}
}

func NewRouter(opts ...Option) *Router {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	choice := choiceScorer{foldCase: o.foldCase}
	r := &Router{scorers: map[Kind]Scorer{
		SingleChoice: choice,
		TrueFalse:    choice,
		LongAnswer:   ScorerFunc(scoreLongAnswer),
	}}
	for k, s := range o.custom {
		r.scorers[k] = s
	}
	return r
}

func (r *Router) Score(ctx context.Context, it Item, response string) (Verdict, error) {
	s, ok := r.scorers[it.Kind]
	if !ok {
		return Verdict{Max: it.Points, Pending: true, Notes: []string{fmt.Sprintf("no scorer for %q", it.Kind)}}, nil
	}
	return s.Score(ctx, it, response)
}

type choiceScorer struct{ foldCase bool }

func (s choiceScorer) Score(_ context.Context, it Item, response string) (Verdict, error) {
	v := Verdict{Max: it.Points}
	response = strings.TrimSpace(response)
	if len(it.Allowed) > 0 && !s.in(it.Allowed, response) {
		v.Invalid = true
		return v, nil
	}
	if s.in(it.Accepted, response) {
		v.Correct, v.Score = true, it.Points
	}
	return v, nil
}

func (s choiceScorer) in(set []string, v string) bool {
	for _, k := range set {
		if k == v || (s.foldCase && strings.EqualFold(k, v)) {
			return true
		}
	}
	return false
}

// scoreLongAnswer only enforces the word limit; the score itself is left to staff.
func scoreLongAnswer(_ context.Context, it Item, response string) (Verdict, error) {
	v := Verdict{Max: it.Points, Words: WordCount(response)}
	if it.MaxWords > 0 && v.Words > it.MaxWords {
		v.Invalid = true
		v.Notes = []string{fmt.Sprintf("%d words over the limit of %d", v.Words-it.MaxWords, it.MaxWords)}
		return v, nil
	}
	v.Pending = true
	return v, nil
}

// WordCount counts whitespace separated words.
func WordCount(s string) int { return len(strings.Fields(s)) }
