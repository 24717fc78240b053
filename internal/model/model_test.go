package model

import (
	"strings"
	"testing"

	"github.com/exambench/exambench/internal/examdoc"
)

func sampleExam() (ExamMeta, []Question) {
	meta := ExamMeta{
		ExamID:        "os161-final-2022",
		TestPaperName: "OS 161 Final",
		Course:        "OS 161",
		Institution:   "Example University",
		Year:          2022,
		ScoreTotal:    15,
		NumQuestions:  2,
	}
	questions := []Question{
		{
			ProblemID:            "1",
			Points:               10,
			Type:                 TypeFreeform,
			Tags:                 []string{"scheduling"},
			Answer:               "Round robin with a fixed quantum.",
			LLMJudgeInstructions: "Accept any mention of round robin.",
			Text:                 "Describe the default scheduling policy.",
		},
		{
			ProblemID: "2a",
			Points:    5,
			Type:      TypeExactMatch,
			Tags:      []string{"syscalls"},
			Answer:    "fork",
			Choices:   []string{"fork", "exec", "wait"},
			Text:      "Which syscall creates a process?",
		},
	}
	return meta, questions
}

func TestBuildDocumentParses(t *testing.T) {
	meta, questions := sampleExam()
	doc, err := BuildDocument(meta, questions)
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}

	d := examdoc.Parse(doc)
	if d.Meta == nil {
		t.Fatal("built document has no metadata block")
	}
	if len(d.Questions) != len(questions) {
		t.Fatalf("parsed %d questions, want %d", len(d.Questions), len(questions))
	}
	if got := d.Questions[1].ProblemID(); got != "2a" {
		t.Errorf("second problem_id = %q, want 2a", got)
	}
	for _, q := range questions {
		if !strings.Contains(doc, q.Text) {
			t.Errorf("document lost question text %q", q.Text)
		}
	}
}

func TestBuildDocumentIsAlreadyNormalized(t *testing.T) {
	meta, questions := sampleExam()
	doc, err := BuildDocument(meta, questions)
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}

	out, err := examdoc.Normalize(doc)
	if err != nil {
		t.Fatalf("Normalize rejected a built document: %v", err)
	}
	if out != doc {
		t.Error("Normalize modified a document built from consistent data")
	}
}

func TestBuildDocumentStaleCounters(t *testing.T) {
	meta, questions := sampleExam()
	meta.ScoreTotal = 100
	meta.NumQuestions = 9
	doc, err := BuildDocument(meta, questions)
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}

	out, err := examdoc.Normalize(doc)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out == doc {
		t.Error("Normalize should have repaired stale counters")
	}
	if !strings.Contains(out, "\"score_total\": 15") {
		t.Errorf("score_total not repaired:\n%s", out)
	}
	if !strings.Contains(out, "\"num_questions\": 2") {
		t.Errorf("num_questions not repaired:\n%s", out)
	}
}
