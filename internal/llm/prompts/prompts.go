package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var Files embed.FS

var systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)

// Variant represents a judge prompt variant.
type Variant string

const (
	// VariantStrict rejects documents on any doubt.
	VariantStrict Variant = "strict"
	// VariantStandard is the default judging variant.
	VariantStandard Variant = "standard"
	// VariantLenient flags only clear-cut problems.
	VariantLenient Variant = "lenient"
)

var validVariants = map[Variant]bool{
	VariantStrict:   true,
	VariantStandard: true,
	VariantLenient:  true,
}

var (
	loadOnce       sync.Once
	loadErr        error
	formatTemplate *template.Template
	judgeTemplates map[Variant]*template.Template
)

// IsValidVariant checks if a judge variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[Variant(v)]
}

// FormatData holds template data for the formatting prompt.
type FormatData struct {
	RawText string
}

// JudgeData holds template data for the judge prompts.
type JudgeData struct {
	Document string
}

// Load parses the prompt templates from the given filesystem. It uses
// sync.Once so templates are parsed only once per process.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		content, err := fs.ReadFile(fsys, "templates/format.txt")
		if err != nil {
			loadErr = fmt.Errorf("read prompt file templates/format.txt: %w", err)
			return
		}
		formatTemplate, err = template.New("format").Parse(string(content))
		if err != nil {
			loadErr = fmt.Errorf("parse prompt template templates/format.txt: %w", err)
			return
		}

		judgeTemplates = make(map[Variant]*template.Template)
		for _, v := range []Variant{VariantStrict, VariantStandard, VariantLenient} {
			file := "templates/judge_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New("judge").Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			judgeTemplates[v] = tmpl
		}
	})
	return loadErr
}

// BuildFormatPrompt builds the prompt that turns raw extracted exam
// text into a benchmark markdown document.
func BuildFormatPrompt(raw string) (string, error) {
	if formatTemplate == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	var buf bytes.Buffer
	if err := formatTemplate.Execute(&buf, FormatData{RawText: sanitize(raw)}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildJudgePrompt builds a document-review prompt for the given
// variant.
func BuildJudgePrompt(variant Variant, document string) (string, error) {
	if judgeTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := judgeTemplates[variant]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid judge variant: " + string(variant))
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, JudgeData{Document: sanitize(document)}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitize strips instruction-injection markers from contributor text
// and bounds its length before it goes into a prompt.
func sanitize(text string) string {
	text = systemInstructionsRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text == "" {
		return "[No content provided]"
	}

	const maxRunes = 100000
	if utf8.RuneCountInString(text) > maxRunes {
		runes := []rune(text)
		text = string(runes[:maxRunes]) + "\n\n[Content truncated due to length]"
	}
	return text
}
