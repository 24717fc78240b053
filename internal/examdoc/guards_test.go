package examdoc

import (
	"errors"
	"strings"
	"testing"
)

func questionBlock(fields string) string {
	return "```json\n{" + fields + "}\n```\n\n"
}

func TestIntegerPointsGuard(t *testing.T) {
	doc := questionBlock(`"problem_id": "1", "points": 5, "tags": ["t"], "answer": "a"`) +
		questionBlock(`"problem_id": "8a", "points": 2.5, "tags": ["t"], "answer": "a"`) +
		questionBlock(`"problem_id": "9", "points": 1.25, "tags": ["t"], "answer": "a"`)

	_, err := Normalize(doc)
	if err == nil {
		t.Fatal("expected an error for fractional points")
	}
	if !errors.Is(err, ErrNonIntegerPoints) {
		t.Errorf("expected ErrNonIntegerPoints, got %v", err)
	}
	// First offender in document order, with its value.
	if !strings.Contains(err.Error(), "8a") {
		t.Errorf("error should name question 8a: %v", err)
	}
	if !strings.Contains(err.Error(), "2.5") {
		t.Errorf("error should include the value 2.5: %v", err)
	}
}

func TestIntegerPointsGuardTolerance(t *testing.T) {
	tests := []struct {
		name   string
		fields string
		wantOK bool
	}{
		{"integer", `"problem_id": "1", "points": 3, "tags": ["t"], "answer": "a"`, true},
		{"fractional", `"problem_id": "1", "points": 0.5, "tags": ["t"], "answer": "a"`, false},
		{"exponent integer", `"problem_id": "1", "points": 1e2, "tags": ["t"], "answer": "a"`, true},
		{"missing points", `"problem_id": "1", "tags": ["t"], "answer": "a"`, true},
		{"string points not a guard concern", `"problem_id": "1", "points": "5", "tags": ["t"], "answer": "a"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(questionBlock(tt.fields))
			if tt.wantOK && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.wantOK && !errors.Is(err, ErrNonIntegerPoints) {
				t.Errorf("expected ErrNonIntegerPoints, got %v", err)
			}
		})
	}
}

func TestAnswersGuardAggregates(t *testing.T) {
	doc := questionBlock(`"problem_id": "1", "points": 1, "tags": ["t"], "answer": ""`) +
		questionBlock(`"problem_id": "2", "points": 1, "tags": ["t"], "answer": "fine"`) +
		questionBlock(`"problem_id": "3", "points": 1, "tags": ["t"]`) +
		questionBlock(`"problem_id": "4", "points": 1, "tags": ["t"], "answer": "  "`)

	_, err := Normalize(doc)
	if err == nil {
		t.Fatal("expected an error for empty answers")
	}
	if !errors.Is(err, ErrEmptyAnswer) {
		t.Errorf("expected ErrEmptyAnswer, got %v", err)
	}
	// Every offender appears in the one error, the sound question does not.
	for _, id := range []string{"1", "3", "4"} {
		if !strings.Contains(err.Error(), id) {
			t.Errorf("error should list question %s: %v", id, err)
		}
	}
	if strings.Contains(err.Error(), "2") {
		t.Errorf("error should not implicate question 2: %v", err)
	}
}

func TestAnswersGuardNonString(t *testing.T) {
	_, err := Normalize(questionBlock(`"problem_id": "1", "points": 1, "tags": ["t"], "answer": 42`))
	if !errors.Is(err, ErrEmptyAnswer) {
		t.Errorf("non-string answer should fail the guard, got %v", err)
	}
}

func TestBothGuardsReported(t *testing.T) {
	doc := questionBlock(`"problem_id": "1", "points": 2.5, "tags": ["t"], "answer": "a"`) +
		questionBlock(`"problem_id": "2", "points": 1, "tags": ["t"], "answer": ""`)

	_, err := Normalize(doc)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrNonIntegerPoints) {
		t.Errorf("expected ErrNonIntegerPoints in %v", err)
	}
	if !errors.Is(err, ErrEmptyAnswer) {
		t.Errorf("expected ErrEmptyAnswer in %v", err)
	}
}

func TestGuardsRunAfterNormalization(t *testing.T) {
	// Tags are still repaired before the guard rejects the document, so
	// the failure really is about points, not a side effect of dirty tags.
	doc := questionBlock(`"problem_id": "1", "points": 2.5, "tags": ["Dirty Tag"], "answer": "a"`)
	_, err := Normalize(doc)
	if !errors.Is(err, ErrNonIntegerPoints) {
		t.Fatalf("expected ErrNonIntegerPoints, got %v", err)
	}
}
