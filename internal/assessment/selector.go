package assessment

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// Randomizer is the subset of *rand.Rand the selector needs.
type Randomizer interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

type globalRand struct{}

func (globalRand) IntN(n int) int                     { return rand.IntN(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

type Selector struct {
	rnd Randomizer
}

// NewSelector uses the process-wide generator when rnd is nil.
func NewSelector(rnd Randomizer) Selector {
	if rnd == nil {
		rnd = globalRand{}
	}
	return Selector{rnd: rnd}
}

type SelectOptions struct {
	Difficulty string
	Tags       []string
	UsedIDs    []string
}

// Selected is a copy of the chosen question. Index is its position in the
// pool and ID its anti-repeat identity.
type Selected struct {
	Question QuestionRecord
	Index    int
	ID       string
	// Reset is set when every candidate had been used and the used set was
	// discarded.
	Reset bool
}

// QuestionID is the stable identity of a pool entry.
func QuestionID(index int, q QuestionRecord) string {
	if q.ID != "" {
		return q.ID
	}
	return strconv.Itoa(index)
}

// Select narrows the pool by difficulty, then tags, then used questions. A
// step that would leave no candidates is skipped.
func (s Selector) Select(pool PoolConfig, opts SelectOptions) (Selected, error) {
	if len(pool.Questions) == 0 {
		return Selected{}, &EmptyPoolError{}
	}
	candidates := make([]int, len(pool.Questions))
	for i := range candidates {
		candidates[i] = i
	}

	difficulty := opts.Difficulty
	if difficulty == "" {
		difficulty = pool.DifficultyFilter
	}
	if difficulty != "" {
		candidates = narrow(candidates, func(i int) bool {
			return strings.EqualFold(pool.Questions[i].Difficulty, difficulty)
		})
	}

	if tags := mergeTags(pool.TagFilter, opts.Tags); len(tags) > 0 {
		candidates = narrow(candidates, func(i int) bool {
			return sharesTag(pool.Questions[i].Tags, tags)
		})
	}

	reset := false
	if !pool.AllowSameQuestion && len(opts.UsedIDs) > 0 {
		used := make(map[string]struct{}, len(opts.UsedIDs))
		for _, id := range opts.UsedIDs {
			used[id] = struct{}{}
		}
		unused := filter(candidates, func(i int) bool {
			_, seen := used[QuestionID(i, pool.Questions[i])]
			return !seen
		})
		if len(unused) > 0 {
			candidates = unused
		} else {
			reset = true
			// avoid handing back the question just answered
			last := opts.UsedIDs[len(opts.UsedIDs)-1]
			candidates = narrow(candidates, func(i int) bool {
				return QuestionID(i, pool.Questions[i]) != last
			})
		}
	}

	pick := candidates[0]
	if pool.RandomizeQuestions && len(candidates) > 1 {
		pick = candidates[s.rnd.IntN(len(candidates))]
	}

	q := cloneQuestion(pool.Questions[pick])
	if pool.RandomizeOptions {
		s.rnd.Shuffle(len(q.Options), func(i, j int) { q.Options[i], q.Options[j] = q.Options[j], q.Options[i] })
	}
	return Selected{Question: q, Index: pick, ID: QuestionID(pick, q), Reset: reset}, nil
}

func filter(in []int, keep func(int) bool) []int {
	out := make([]int, 0, len(in))
	for _, i := range in {
		if keep(i) {
			out = append(out, i)
		}
	}
	return out
}

// narrow filters but falls back to the input when nothing matches.
func narrow(in []int, keep func(int) bool) []int {
	if out := filter(in, keep); len(out) > 0 {
		return out
	}
	return in
}

func mergeTags(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, t := range append(append([]string(nil), a...), b...) {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func sharesTag(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

func cloneQuestion(q QuestionRecord) QuestionRecord {
	q.Options = append([]Option(nil), q.Options...)
	q.Tags = append([]string(nil), q.Tags...)
	return q
}
