// Package examdoc validates and normalizes benchmark exam documents:
// markdown files carrying one fenced JSON metadata block and one fenced
// JSON block per question.
//
// The package is deliberately self-contained. It touches no filesystem,
// network, or process state, keeps no state between calls, and is safe
// to invoke from concurrent callers. Everything is a function of the
// input string.
package examdoc

import "errors"

// Block is one fenced JSON block found in a document. Start and End
// delimit the inner JSON text (between the fence lines) in the source,
// so a rewrite can replace exactly that region and nothing else.
type Block struct {
	Start int
	End   int
	Raw   string
	Obj   *Object
}

// ProblemID returns the block's problem_id rendered as a string, or ""
// when the block has none. Non-string values are formatted verbatim so
// error messages can still point at the offending question.
func (b *Block) ProblemID() string {
	v, ok := b.Obj.Get("problem_id")
	if !ok {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return s
	}
	return formatValue(v)
}

// Document is the parsed view of one exam document. Meta is the first
// decodable JSON block without a problem_id field; Questions are all
// decodable blocks with one, in document order. The source text is kept
// so normalization can copy untouched bytes through verbatim.
type Document struct {
	Source    string
	Meta      *Block
	Questions []*Block
}

// Normalize runs the full pipeline on one document: parse, repair tag
// lists and metadata counters, then apply the fatal guards to the
// repaired text. On success it returns the normalized document, which
// is byte-identical to the input when nothing needed fixing. On guard
// failure it returns an error naming the offending questions; no
// document is returned.
func Normalize(doc string) (string, error) {
	out := Parse(doc).normalize()

	// Guards run against the post-normalization text. Both always run,
	// so a caller sees every failing gate at once.
	nd := Parse(out)
	if err := errors.Join(nd.CheckIntegerPoints(), nd.CheckAnswers()); err != nil {
		return "", err
	}
	return out, nil
}
