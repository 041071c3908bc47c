package answer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Outcome classifies a validation attempt. Degenerate submissions are
// rejected before any fuzzy comparison so they never count as a wrong
// answer against the player.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeInvalid   Outcome = "invalid"
)

// Result carries the outcome of validating a free-text submission along
// with a confidence in [0,1]. Confidence is 1.0 on an exact normalized
// match and 1 - distance/maxLen on a fuzzy one.
type Result struct {
	Outcome    Outcome `json:"outcome"`
	Confidence float64 `json:"confidence"`
}

const (
	minSubmissionLen = 2
	maxSubmissionLen = 200

	// Answers shorter than shortAnswerLen get the tight edit-distance
	// threshold; everything else the loose one.
	shortAnswerLen     = 6
	shortDistanceLimit = 1
	longDistanceLimit  = 2

	minConfidence = 0.6
)

// Interrogative lead-ins players habitually type in Jeopardy style. Longer
// prefixes first so "what is the" wins over "what is".
var questionPrefixes = []string{
	"what is the", "what are the", "who is the", "who are the",
	"what is", "what are", "what was", "what were",
	"who is", "who are", "who was", "who were",
	"where is", "where was", "when is", "when was",
}

var leadingArticles = []string{"the ", "a ", "an "}

// Validate checks a free-text submission against the canonical answer and
// every accepted variant; any single match suffices.
func Validate(submitted, correct string, variants []string) Result {
	trimmed := strings.TrimSpace(submitted)
	if n := utf8.RuneCountInString(trimmed); n < minSubmissionLen || n > maxSubmissionLen {
		return Result{Outcome: OutcomeInvalid}
	}

	sub := Normalize(trimmed)
	if sub == "" {
		return Result{Outcome: OutcomeInvalid}
	}

	targets := make([]string, 0, len(variants)+1)
	targets = append(targets, correct)
	targets = append(targets, variants...)

	best := Result{Outcome: OutcomeIncorrect}
	for _, target := range targets {
		tgt := Normalize(target)
		if tgt == "" {
			continue
		}
		r := compare(sub, tgt)
		if r.Outcome == OutcomeCorrect && r.Confidence == 1.0 {
			return r
		}
		if r.Confidence > best.Confidence || (r.Outcome == OutcomeCorrect && best.Outcome != OutcomeCorrect) {
			best = r
		}
	}
	return best
}

func compare(sub, tgt string) Result {
	if sub == tgt {
		return Result{Outcome: OutcomeCorrect, Confidence: 1.0}
	}

	// Lengths and edits count runes, not bytes; Normalize keeps accented
	// letters and a single multi-byte rune is still one character.
	dist := Levenshtein(sub, tgt)
	subLen := utf8.RuneCountInString(sub)
	tgtLen := utf8.RuneCountInString(tgt)
	maxLen := subLen
	if tgtLen > maxLen {
		maxLen = tgtLen
	}
	confidence := 1.0 - float64(dist)/float64(maxLen)

	limit := longDistanceLimit
	if tgtLen < shortAnswerLen {
		limit = shortDistanceLimit
	}

	if dist <= limit && confidence > minConfidence {
		return Result{Outcome: OutcomeCorrect, Confidence: confidence}
	}
	return Result{Outcome: OutcomeIncorrect, Confidence: confidence}
}

// Normalize lowercases, strips interrogative prefixes and leading
// articles, drops punctuation, and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(s, prefix+" ") {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}

	for _, article := range leadingArticles {
		if strings.HasPrefix(s, article) {
			s = s[len(article):]
			break
		}
	}

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Levenshtein returns the edit distance between a and b in runes, using
// the two-row dynamic programming form.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
