package examdoc

import "strings"

// span is the inner region of one fenced JSON block: everything between
// the line that opens the fence and the line that closes it.
type span struct {
	start int
	end   int
}

// Parse scans a document for fenced JSON blocks and classifies the ones
// that decode. The scan is a single tokenizing pass over lines with
// byte offsets tracked throughout, so rewrites can target exact regions
// even when question prose mentions fence markers.
//
// A fence only opens at a line that is exactly "```json" (no leading
// whitespace, trailing whitespace tolerated) whose preceding line is
// blank, a "---" separator, or the start of the document. That keeps a
// code fence quoted mid-paragraph from being mistaken for a block. The
// fence closes at the next line that is exactly "```"; an unclosed
// fence yields no block.
//
// Blocks that fail to decode as a JSON object are skipped silently:
// they are some other layer's problem, not this one's. The first
// decodable object without a problem_id key is the metadata block;
// every decodable object with one is a question block, wherever it
// sits; anything else is ignored.
func Parse(source string) *Document {
	d := &Document{Source: source}

	for _, sp := range scanFences(source) {
		raw := source[sp.start:sp.end]
		obj, err := decodeObject(raw)
		if err != nil {
			continue
		}
		b := &Block{Start: sp.start, End: sp.end, Raw: raw, Obj: obj}
		switch {
		case obj.Has("problem_id"):
			d.Questions = append(d.Questions, b)
		case d.Meta == nil:
			d.Meta = b
		}
	}
	return d
}

// scanFences returns the inner spans of all well-formed JSON fences in
// document order.
func scanFences(source string) []span {
	var (
		spans     []span
		inFence   bool
		innerFrom int
		prevBlank = true // document start counts as a boundary
	)

	offset := 0
	for offset <= len(source) {
		lineEnd := strings.IndexByte(source[offset:], '\n')
		var next int
		var line string
		if lineEnd < 0 {
			line = source[offset:]
			next = len(source) + 1
		} else {
			line = source[offset : offset+lineEnd]
			next = offset + lineEnd + 1
		}
		trimmed := strings.TrimRight(line, " \t")

		switch {
		case inFence && trimmed == "```":
			spans = append(spans, span{start: innerFrom, end: offset})
			inFence = false
			prevBlank = false
		case !inFence && trimmed == "```json" && prevBlank:
			// The inner region starts on the next line. A fence on the
			// final line has no content and never closes.
			inFence = true
			innerFrom = next
		case !inFence:
			t := strings.TrimSpace(line)
			prevBlank = t == "" || t == "---"
		}

		if lineEnd < 0 {
			break
		}
		offset = next
	}
	return spans
}
