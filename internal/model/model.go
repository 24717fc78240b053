package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QuestionType represents how a question is graded downstream.
type QuestionType string

const (
	// TypeExactMatch questions are graded by comparison against a fixed
	// choice list.
	TypeExactMatch QuestionType = "ExactMatch"
	// TypeFreeform questions are graded by an LLM judge.
	TypeFreeform QuestionType = "Freeform"
)

// SubmissionStatus represents where a contribution sits in the flow.
type SubmissionStatus string

const (
	StatusPending   SubmissionStatus = "pending"
	StatusValidated SubmissionStatus = "validated"
	StatusRejected  SubmissionStatus = "rejected"
)

// ExamMeta is the exam-level JSON object embedded at the top of a
// benchmark document.
type ExamMeta struct {
	ExamID        string `json:"exam_id"`
	TestPaperName string `json:"test_paper_name"`
	Course        string `json:"course"`
	Institution   string `json:"institution"`
	Year          int    `json:"year"`
	ScoreTotal    int    `json:"score_total"`
	NumQuestions  int    `json:"num_questions"`
}

// Question is the per-question JSON object embedded in a benchmark
// document. ProblemID may carry sub-part suffixes ("8a").
type Question struct {
	ProblemID            string       `json:"problem_id"`
	Points               int          `json:"points"`
	Type                 QuestionType `json:"type"`
	Tags                 []string     `json:"tags"`
	Answer               string       `json:"answer"`
	Choices              []string     `json:"choices,omitempty"`
	LLMJudgeInstructions string       `json:"llm_judge_instructions,omitempty"`
	// Text is the question prose preceding the JSON block. It lives in
	// the markdown body, not inside the JSON object.
	Text string `json:"-"`
}

// Submission is one contributed exam tracked by the store.
type Submission struct {
	ID           string           `json:"id"`
	ExamID       string           `json:"exam_id"`
	Course       string           `json:"course"`
	Institution  string           `json:"institution"`
	Status       SubmissionStatus `json:"status"`
	ScoreTotal   int              `json:"score_total"`
	NumQuestions int              `json:"num_questions"`
	Document     string           `json:"-"`
	Note         string           `json:"note,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ServerConfig holds runtime parameters for the submission server set
// via CLI flags.
type ServerConfig struct {
	BasePath      string // URL prefix for sub-path deployments (e.g. "/contrib")
	JudgeVariant  string // Judge prompt variant (strict, standard, lenient)
	MaxUploadSize int64  // Request body limit in bytes
}

// BuildDocument renders metadata and questions into the canonical
// benchmark markdown layout: title, fenced metadata JSON, then
// per-question prose and fenced JSON behind "---" separators. Output
// is meant to go through the examdoc pipeline before anything
// downstream sees it.
func BuildDocument(meta ExamMeta, questions []Question) (string, error) {
	var sb strings.Builder
	if meta.TestPaperName != "" {
		sb.WriteString("# " + meta.TestPaperName + "\n\n")
	}

	mb, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal exam metadata: %w", err)
	}
	sb.WriteString("```json\n")
	sb.Write(mb)
	sb.WriteString("\n```\n")

	for _, q := range questions {
		sb.WriteString("\n")
		if q.Text != "" {
			sb.WriteString(q.Text + "\n\n")
		}
		sb.WriteString("---\n\n")
		qb, err := json.MarshalIndent(q, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal question %s: %w", q.ProblemID, err)
		}
		sb.WriteString("```json\n")
		sb.Write(qb)
		sb.WriteString("\n```\n")
	}
	return sb.String(), nil
}
