package examdoc

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestCleanTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"scheduling", "scheduling"},
		{"OS_161/scheduling ", "os-161-scheduling"},
		{"Virtual Memory", "virtual-memory"},
		{"page\ttables", "page-tables"},
		{"a//b__c  d", "a-b-c-d"},
		{"C++ (advanced)", "c-advanced"},
		{"--edge--", "edge"},
		{"foo---bar", "foo-bar"},
		{"!!!", ""},
		{"", ""},
		{"already-clean-42", "already-clean-42"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := CleanTag(tt.in)
			if got != tt.want {
				t.Errorf("CleanTag(%q) = %q, want %q", tt.in, got, tt.want)
			}
			// Cleaning is idempotent.
			if again := CleanTag(got); again != got {
				t.Errorf("CleanTag not idempotent: %q -> %q", got, again)
			}
			if got != "" && !TagValid(got) {
				t.Errorf("CleanTag(%q) = %q does not match the tag pattern", tt.in, got)
			}
		})
	}
}

func TestCleanTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"passthrough", []string{"a", "b"}, []string{"a", "b"}},
		{"dedupe keeps first-seen order", []string{"B", "a", "b", "A"}, []string{"b", "a"}},
		{"drops empties", []string{"!!!", "ok"}, []string{"ok"}},
		{"all empty falls back to misc", []string{"???", "   "}, []string{"misc"}},
		{"nil falls back to misc", nil, []string{"misc"}},
		{"collapse to same tag", []string{"OS 161", "os_161", "os-161"}, []string{"os-161"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanTags(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CleanTags(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if again := CleanTags(got); !reflect.DeepEqual(again, got) {
				t.Errorf("CleanTags not idempotent: %v -> %v", got, again)
			}
		})
	}
}

func TestNormalizeValidDocUnchanged(t *testing.T) {
	out, err := Normalize(sampleDoc)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out != sampleDoc {
		t.Error("already-valid document was modified")
	}
}

func TestNormalizeRepairsTagsAndMetadata(t *testing.T) {
	doc := "# Exam\n" +
		"\n" +
		"```json\n" +
		"{\n" +
		"  \"exam_id\": \"demo\",\n" +
		"  \"score_total\": 100,\n" +
		"  \"num_questions\": 7\n" +
		"}\n" +
		"```\n" +
		"\n" +
		"First question prose stays put.\n" +
		"\n" +
		"---\n" +
		"\n" +
		"```json\n" +
		"{\n" +
		"  \"problem_id\": \"1\",\n" +
		"  \"points\": 5,\n" +
		"  \"type\": \"Freeform\",\n" +
		"  \"tags\": [\"OS_161/scheduling \", \"Virtual Memory\"],\n" +
		"  \"answer\": \"yes\"\n" +
		"}\n" +
		"```\n" +
		"\n" +
		"Second question prose also stays put.\n" +
		"\n" +
		"---\n" +
		"\n" +
		"```json\n" +
		"{\n" +
		"  \"problem_id\": \"2\",\n" +
		"  \"points\": 3,\n" +
		"  \"type\": \"Freeform\",\n" +
		"  \"tags\": [\n" +
		"    \"clean\"\n" +
		"  ],\n" +
		"  \"answer\": \"no\"\n" +
		"}\n" +
		"```\n"

	out, err := Normalize(doc)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	d := Parse(out)
	if d.Meta == nil || len(d.Questions) != 2 {
		t.Fatalf("reparse: meta=%v questions=%d", d.Meta != nil, len(d.Questions))
	}

	if v, _ := d.Meta.Obj.Get("score_total"); v != json.Number("8") {
		t.Errorf("score_total = %v, want 8", v)
	}
	if v, _ := d.Meta.Obj.Get("num_questions"); v != json.Number("2") {
		t.Errorf("num_questions = %v, want 2", v)
	}

	wantTags := []any{"os-161-scheduling", "virtual-memory"}
	if v, _ := d.Questions[0].Obj.Get("tags"); !reflect.DeepEqual(v, wantTags) {
		t.Errorf("tags = %v, want %v", v, wantTags)
	}

	// Prose outside the fences is untouched.
	for _, prose := range []string{
		"# Exam\n",
		"First question prose stays put.",
		"Second question prose also stays put.",
	} {
		if !strings.Contains(out, prose) {
			t.Errorf("output lost prose %q", prose)
		}
	}

	// The already-clean block keeps its exact bytes.
	cleanBlock := "{\n" +
		"  \"problem_id\": \"2\",\n" +
		"  \"points\": 3,\n" +
		"  \"type\": \"Freeform\",\n" +
		"  \"tags\": [\n" +
		"    \"clean\"\n" +
		"  ],\n" +
		"  \"answer\": \"no\"\n" +
		"}\n"
	if !strings.Contains(out, cleanBlock) {
		t.Error("unchanged question block was reformatted")
	}

	// Field order in rewritten blocks is preserved.
	q1 := d.Questions[0].Raw
	if strings.Index(q1, "problem_id") > strings.Index(q1, "points") ||
		strings.Index(q1, "points") > strings.Index(q1, "tags") ||
		strings.Index(q1, "tags") > strings.Index(q1, "answer") {
		t.Errorf("rewritten block reordered fields:\n%s", q1)
	}
}

func TestNormalizeMetadataEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		metaJSON  string
		wantTotal json.Number
	}{
		{
			"string-typed total rewritten to integer",
			`{"exam_id": "x", "score_total": "5", "num_questions": 1}`,
			"5",
		},
		{
			"float literal rewritten to integer",
			`{"exam_id": "x", "score_total": 5.0, "num_questions": 1}`,
			"5",
		},
		{
			"missing counter added",
			`{"exam_id": "x"}`,
			"5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "```json\n" + tt.metaJSON + "\n```\n" +
				"\n```json\n{\"problem_id\": \"1\", \"points\": 5, \"tags\": [\"t\"], \"answer\": \"a\"}\n```\n"
			out, err := Normalize(doc)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			d := Parse(out)
			v, ok := d.Meta.Obj.Get("score_total")
			if !ok {
				t.Fatal("score_total missing after normalization")
			}
			n, isNum := v.(json.Number)
			if !isNum {
				t.Fatalf("score_total is %T, want json.Number", v)
			}
			if n != tt.wantTotal {
				t.Errorf("score_total = %s, want %s", n, tt.wantTotal)
			}
			if nq, _ := d.Meta.Obj.Get("num_questions"); nq != json.Number("1") {
				t.Errorf("num_questions = %v, want 1", nq)
			}
		})
	}
}

func TestNormalizeMissingTagsField(t *testing.T) {
	doc := "```json\n{\"problem_id\": \"1\", \"points\": 2, \"answer\": \"a\"}\n```\n"
	out, err := Normalize(doc)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	d := Parse(out)
	v, ok := d.Questions[0].Obj.Get("tags")
	if !ok {
		t.Fatal("tags not added")
	}
	if !reflect.DeepEqual(v, []any{"misc"}) {
		t.Errorf("tags = %v, want [misc]", v)
	}
}

func TestNormalizeWithoutMetadataBlock(t *testing.T) {
	doc := "Question text.\n\n```json\n{\"problem_id\": \"1\", \"points\": 2, \"tags\": [\"Fix Me\"], \"answer\": \"a\"}\n```\n"
	out, err := Normalize(doc)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	d := Parse(out)
	if d.Meta != nil {
		t.Fatal("unexpected metadata block")
	}
	if v, _ := d.Questions[0].Obj.Get("tags"); !reflect.DeepEqual(v, []any{"fix-me"}) {
		t.Errorf("tags = %v, want [fix-me]", v)
	}
}
