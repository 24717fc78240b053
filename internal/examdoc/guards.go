package examdoc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrNonIntegerPoints marks a document rejected for fractional points.
var ErrNonIntegerPoints = errors.New("non-integer points")

// ErrEmptyAnswer marks a document rejected for missing or empty answers.
var ErrEmptyAnswer = errors.New("missing or empty answer")

// CheckIntegerPoints fails if any question carries a numeric points
// value that is not a mathematical integer. The first offender in
// document order is reported; fractional points have to be rescaled by
// whatever produced the document, never coerced here.
func (d *Document) CheckIntegerPoints() error {
	for _, q := range d.Questions {
		v, ok := q.Obj.Get("points")
		if !ok {
			continue
		}
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		f, err := n.Float64()
		if err != nil {
			continue
		}
		if f != math.Trunc(f) {
			return fmt.Errorf("%w: question %q has points %s", ErrNonIntegerPoints, q.ProblemID(), n.String())
		}
	}
	return nil
}

// CheckAnswers fails if any question is missing an answer, or its
// answer is not a string, or it trims to nothing. Unlike the points
// guard this one scans the whole document and reports every offender
// in a single error.
func (d *Document) CheckAnswers() error {
	var bad []string
	for _, q := range d.Questions {
		v, ok := q.Obj.Get("answer")
		if !ok {
			bad = append(bad, q.ProblemID())
			continue
		}
		s, isStr := v.(string)
		if !isStr || strings.TrimSpace(s) == "" {
			bad = append(bad, q.ProblemID())
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: questions %s", ErrEmptyAnswer, strings.Join(bad, ", "))
	}
	return nil
}
