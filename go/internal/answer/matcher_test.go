package answer

import "testing"

func TestValidateExactAfterNormalization(t *testing.T) {
	tests := []struct {
		name      string
		submitted string
		correct   string
	}{
		{"interrogative prefix", "What is Paris", "Paris"},
		{"who was prefix", "Who was Napoleon", "Napoleon"},
		{"leading article", "The Eiffel Tower", "Eiffel Tower"},
		{"punctuation and case", "  MOUNT everest!! ", "Mount Everest"},
		{"collapsed whitespace", "new    york", "New York"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.submitted, tt.correct, nil)
			if got.Outcome != OutcomeCorrect {
				t.Fatalf("Validate(%q, %q) outcome = %s, want correct", tt.submitted, tt.correct, got.Outcome)
			}
			if got.Confidence != 1.0 {
				t.Errorf("confidence = %v, want 1.0", got.Confidence)
			}
		})
	}
}

func TestValidateFuzzyShortAnswer(t *testing.T) {
	got := Validate("Pari", "Paris", nil)
	if got.Outcome != OutcomeCorrect {
		t.Fatalf("Validate(Pari, Paris) outcome = %s, want correct", got.Outcome)
	}
	if got.Confidence >= 1.0 || got.Confidence <= minConfidence {
		t.Errorf("confidence = %v, want in (%v, 1.0)", got.Confidence, minConfidence)
	}
}

func TestValidateShortAnswerTightThreshold(t *testing.T) {
	// Distance 2 on a short answer must fail even though it would pass the
	// loose threshold.
	got := Validate("Pair", "Paris", nil)
	if got.Outcome != OutcomeIncorrect {
		t.Errorf("Validate(Pair, Paris) outcome = %s, want incorrect", got.Outcome)
	}
}

func TestValidateLongAnswerLooseThreshold(t *testing.T) {
	got := Validate("Mississipi River", "Mississippi River", nil)
	if got.Outcome != OutcomeCorrect {
		t.Errorf("outcome = %s, want correct under loose threshold", got.Outcome)
	}
}

func TestValidateAccentedAnswer(t *testing.T) {
	// Dropping the accent is a single rune edit on a 4-character answer, so
	// the tight short-answer threshold still accepts it.
	got := Validate("cafe", "café", nil)
	if got.Outcome != OutcomeCorrect {
		t.Fatalf("Validate(cafe, café) outcome = %s, want correct", got.Outcome)
	}
	if got.Confidence <= minConfidence {
		t.Errorf("confidence = %v, want above %v", got.Confidence, minConfidence)
	}
}

func TestValidateDegenerateInput(t *testing.T) {
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name      string
		submitted string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"single char", "x"},
		{"over max length", string(long)},
		{"punctuation only", "?!."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.submitted, "Paris", nil)
			if got.Outcome != OutcomeInvalid {
				t.Errorf("Validate(%q) outcome = %s, want invalid", tt.submitted, got.Outcome)
			}
		})
	}
}

func TestValidateAcceptedVariants(t *testing.T) {
	variants := []string{"JFK", "John Fitzgerald Kennedy"}

	got := Validate("jfk", "John F. Kennedy", variants)
	if got.Outcome != OutcomeCorrect {
		t.Fatalf("variant match outcome = %s, want correct", got.Outcome)
	}
	if got.Confidence != 1.0 {
		t.Errorf("variant exact match confidence = %v, want 1.0", got.Confidence)
	}

	got = Validate("Lincoln", "John F. Kennedy", variants)
	if got.Outcome != OutcomeIncorrect {
		t.Errorf("non-match outcome = %s, want incorrect", got.Outcome)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"paris", "pari", 1},
		{"flaw", "lawn", 2},
		{"cafe", "café", 1},
		{"uber", "über", 1},
	}

	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What is the Great Wall?", "great wall"},
		{"AN APPLE", "apple"},
		{"  spaced   out  ", "spaced out"},
		{"who was  Marie Curie", "marie curie"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
