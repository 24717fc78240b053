package examdoc

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	tagSeparatorRe = regexp.MustCompile(`[\s_/]+`)
	tagInvalidRe   = regexp.MustCompile(`[^a-z0-9-]`)
	tagHyphenRunRe = regexp.MustCompile(`-{2,}`)
	tagValidRe     = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// CleanTag reduces one tag to lowercase letters, digits, and hyphens:
// separator runs (whitespace, underscore, slash) become a single
// hyphen, everything else invalid is stripped, hyphen runs collapse,
// and edge hyphens are trimmed. The result may be empty. Applying
// CleanTag to its own output changes nothing.
func CleanTag(tag string) string {
	s := strings.ToLower(tag)
	s = tagSeparatorRe.ReplaceAllString(s, "-")
	s = tagInvalidRe.ReplaceAllString(s, "")
	s = tagHyphenRunRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// CleanTags cleans every tag, drops the ones that clean to nothing,
// and de-duplicates the rest keeping first-seen order. An empty result
// falls back to the single tag "misc" so no question is ever untagged.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		c := CleanTag(t)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		out = []string{"misc"}
	}
	return out
}

// TagValid reports whether a tag is already in canonical form.
func TagValid(tag string) bool {
	return tagValidRe.MatchString(tag)
}

// rewrite is one pending block replacement.
type rewrite struct {
	start int
	end   int
	text  string
}

// normalize repairs tag lists and metadata counters and returns the
// rewritten document. Only blocks that actually changed are
// re-serialized; all other bytes, prose included, pass through
// untouched. A document that needs no repair comes back byte-identical.
func (d *Document) normalize() string {
	var rewrites []rewrite

	for _, q := range d.Questions {
		if !q.normalizeTags() {
			continue
		}
		text, err := q.Obj.encode()
		if err != nil {
			continue
		}
		rewrites = append(rewrites, rewrite{start: q.Start, end: q.End, text: text + "\n"})
	}

	if d.Meta != nil && d.normalizeMeta() {
		text, err := d.Meta.Obj.encode()
		if err == nil {
			rewrites = append(rewrites, rewrite{start: d.Meta.Start, end: d.Meta.End, text: text + "\n"})
		}
	}

	if len(rewrites) == 0 {
		return d.Source
	}

	// Rightmost replacement first so earlier offsets stay valid.
	sort.Slice(rewrites, func(i, j int) bool { return rewrites[i].start > rewrites[j].start })
	out := d.Source
	for _, r := range rewrites {
		out = out[:r.start] + r.text + out[r.end:]
	}
	return out
}

// normalizeTags replaces the block's tags field with its cleaned form.
// It reports whether the block changed. A missing or malformed tags
// field counts as empty and becomes ["misc"].
func (b *Block) normalizeTags() bool {
	raw, _ := b.Obj.Get("tags")

	var tags []string
	clean := true
	if arr, ok := raw.([]any); ok {
		for _, e := range arr {
			s, isStr := e.(string)
			if !isStr {
				clean = false
				continue
			}
			tags = append(tags, s)
		}
	} else if raw != nil || !b.Obj.Has("tags") {
		clean = false
	}

	cleaned := CleanTags(tags)
	if clean && equalTags(tags, cleaned) {
		return false
	}

	vals := make([]any, len(cleaned))
	for i, t := range cleaned {
		vals[i] = t
	}
	b.Obj.Set("tags", vals)
	return true
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normalizeMeta overwrites score_total and num_questions when they do
// not already hold the freshly computed integers. A value of the wrong
// type that happens to match numerically is still rewritten to a true
// number. It reports whether the metadata block changed.
func (d *Document) normalizeMeta() bool {
	changed := false
	if d.setCounter("num_questions", float64(len(d.Questions))) {
		changed = true
	}
	if d.setCounter("score_total", d.totalPoints()) {
		changed = true
	}
	return changed
}

// totalPoints sums points across question blocks, counting only values
// that are numbers. Fractional values participate in the sum; the
// integer-points guard rejects the document afterwards anyway.
func (d *Document) totalPoints() float64 {
	var total float64
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
		total += f
	}
	return total
}

func (d *Document) setCounter(key string, computed float64) bool {
	want := formatNumber(computed)
	if v, ok := d.Meta.Obj.Get(key); ok {
		if n, isNum := v.(json.Number); isNum && n.String() == want {
			return false
		}
	}
	d.Meta.Obj.Set(key, json.Number(want))
	return true
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
