package model

import "time"

// DatasetExport is the top-level JSON structure for benchmark dataset
// export.
type DatasetExport struct {
	Dataset     string       `json:"dataset"`
	GeneratedAt time.Time    `json:"generated_at"`
	NumExams    int          `json:"num_exams"`
	Exams       []ExamRecord `json:"exams"`
}

// ExamRecord holds one validated exam for export.
type ExamRecord struct {
	SubmissionID string     `json:"submission_id"`
	Meta         ExamMeta   `json:"meta"`
	Questions    []Question `json:"questions"`
	Document     string     `json:"document"`
	CreatedAt    time.Time  `json:"created_at"`
}
