package match

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Strategy selects how extracted text is accepted.
type Strategy string

const (
	// StrategyThreshold accepts on the first keyword whose longest common
	// run ratio clears the threshold.
	StrategyThreshold Strategy = "threshold"
	// StrategyPattern accepts when the keyword pattern occurs in the text and
	// reports the best whole-sequence ratio for information only.
	StrategyPattern Strategy = "pattern"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyThreshold, "":
		return StrategyThreshold, nil
	case StrategyPattern:
		return StrategyPattern, nil
	default:
		return "", fmt.Errorf("unknown match strategy %q", s)
	}
}

// Decision is the outcome of scoring one extracted text.
type Decision struct {
	Matched bool
	Keyword string
	// Score is NaN when no keywords were configured.
	Score float64
}

func (d Decision) Applicable() bool {
	return !math.IsNaN(d.Score)
}

type Matcher struct {
	strategy  Strategy
	keywords  []string
	threshold float64
	pattern   *regexp.Regexp
}

func NewMatcher(strategy Strategy, keywords []string, threshold float64) (*Matcher, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity threshold %v outside [0,1]", threshold)
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = StrategyThreshold
	}
	kw := CleanKeywords(keywords)
	return &Matcher{
		strategy:  strategy,
		keywords:  kw,
		threshold: threshold,
		pattern:   CompilePattern(kw),
	}, nil
}

func (m *Matcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

// Decide scores text against the keyword set. Empty text never matches;
// an empty keyword set matches any non-empty text.
func (m *Matcher) Decide(text string) Decision {
	if strings.TrimSpace(text) == "" {
		return Decision{}
	}
	if len(m.keywords) == 0 {
		return Decision{Matched: true, Score: math.NaN()}
	}

	switch m.strategy {
	case StrategyPattern:
		found := m.pattern.FindString(text)
		if found == "" {
			return Decision{}
		}
		keyword, score := BestSequenceRatio(text, m.keywords)
		return Decision{Matched: true, Keyword: keyword, Score: score}
	default:
		keyword, score, ok := FirstAboveThreshold(text, m.keywords, m.threshold)
		if !ok {
			return Decision{}
		}
		return Decision{Matched: true, Keyword: keyword, Score: score}
	}
}

// FirstAboveThreshold returns the first keyword whose longest common run
// ratio is at least threshold.
func FirstAboveThreshold(text string, keywords []string, threshold float64) (string, float64, bool) {
	for _, keyword := range keywords {
		ratio := LongestCommonRatio(text, keyword)
		if ratio > 0 && ratio >= threshold {
			return keyword, ratio, true
		}
	}
	return "", 0, false
}

// BestSequenceRatio returns the keyword with the highest whole-sequence
// ratio against text.
func BestSequenceRatio(text string, keywords []string) (string, float64) {
	best, bestScore := "", 0.0
	for _, keyword := range keywords {
		if score := SequenceRatio(text, keyword); score > bestScore || best == "" {
			best, bestScore = keyword, score
		}
	}
	return best, bestScore
}

// CleanKeywords trims keywords and drops empty ones, keeping order.
func CleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// SplitKeywords splits a comma separated keyword list.
func SplitKeywords(s string) []string {
	return CleanKeywords(strings.Split(s, ","))
}

// CompilePattern builds a case-insensitive alternation of the literal
// keywords, or nil for an empty set.
func CompilePattern(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		return nil
	}
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
}
