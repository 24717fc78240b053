package store

import (
	"encoding/json"
	"fmt"

	"github.com/exambench/exambench/internal/examdoc"
	"github.com/exambench/exambench/internal/model"
)

// ExportValidated builds export-ready exam records from every
// validated submission. Each stored document is re-parsed so the
// export carries typed metadata and questions alongside the raw text.
func (s *Store) ExportValidated() ([]model.ExamRecord, error) {
	subs, err := s.ListSubmissions(model.StatusValidated, "")
	if err != nil {
		return nil, fmt.Errorf("list validated submissions: %w", err)
	}

	var records []model.ExamRecord
	for _, sub := range subs {
		full, err := s.GetSubmission(sub.ID)
		if err != nil {
			return nil, fmt.Errorf("get submission %s: %w", sub.ID, err)
		}

		rec, err := recordFromDocument(full)
		if err != nil {
			return nil, fmt.Errorf("submission %s: %w", sub.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// recordFromDocument decodes a validated document back into typed exam
// data. Validated documents have been through the examdoc guards, so a
// decode failure here means the stored text was tampered with.
func recordFromDocument(sub model.Submission) (model.ExamRecord, error) {
	d := examdoc.Parse(sub.Document)
	if d.Meta == nil {
		return model.ExamRecord{}, fmt.Errorf("document has no metadata block")
	}

	var meta model.ExamMeta
	if err := json.Unmarshal([]byte(d.Meta.Raw), &meta); err != nil {
		return model.ExamRecord{}, fmt.Errorf("decode metadata: %w", err)
	}

	questions := make([]model.Question, 0, len(d.Questions))
	for _, qb := range d.Questions {
		var q model.Question
		if err := json.Unmarshal([]byte(qb.Raw), &q); err != nil {
			return model.ExamRecord{}, fmt.Errorf("decode question %s: %w", qb.ProblemID(), err)
		}
		questions = append(questions, q)
	}

	return model.ExamRecord{
		SubmissionID: sub.ID,
		Meta:         meta,
		Questions:    questions,
		Document:     sub.Document,
		CreatedAt:    sub.CreatedAt,
	}, nil
}
