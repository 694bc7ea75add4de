// Package sanitize turns free-form model output into a validated screening
// record. Models wrap JSON in prose and code fences, emit smart quotes and
// trailing commas, and scatter references through nested objects; this
// package extracts the first complete JSON object, applies one bounded
// repair pass, and normalizes the result.
package sanitize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies an extraction failure.
type ErrorKind string

const (
	// KindNoPayload means no candidate JSON object was found in the text.
	KindNoPayload ErrorKind = "no_payload_found"
	// KindMalformed means a candidate was found but could not be parsed,
	// even after the repair pass.
	KindMalformed ErrorKind = "malformed_payload"
)

// ExtractionError reports why a model response yielded no record. Raw keeps
// the original text for diagnosis; it is never shown to end users.
type ExtractionError struct {
	Kind ErrorKind
	Raw  string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s)", e.Kind)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Reference is one cited source backing a claim in the record.
type Reference struct {
	Source   string `json:"source"`
	URL      string `json:"url"`
	Quote    string `json:"quote"`
	Verified bool   `json:"verified"`
}

// Record is the sanitized screening output: the top-level fields as parsed,
// every reference found anywhere in the payload (deduplicated by URL,
// first-seen order), and the required fields the model failed to supply.
type Record struct {
	Fields        map[string]json.RawMessage
	References    []Reference
	MissingFields []string
}

// Field unmarshals the named top-level field into out. It returns false when
// the field is absent.
func (r *Record) Field(name string, out any) (bool, error) {
	raw, ok := r.Fields[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("field %q: %w", name, err)
	}
	return true, nil
}

// Sanitizer extracts and validates records. The required field names drive
// MissingFields reporting; extraction itself never fails on a missing field.
type Sanitizer struct {
	required []string
}

// New returns a Sanitizer that reports absence of the given top-level fields.
func New(required ...string) *Sanitizer {
	return &Sanitizer{required: required}
}

// Extract finds the first complete JSON object in raw and parses it into a
// Record. The input may be fenced, surrounded by prose, or lightly broken;
// a single repair pass fixes trailing commas, smart quotes, and stray control
// characters. Any other damage returns an *ExtractionError. Extract is
// idempotent: running it on a serialized Record yields the same Record.
func (s *Sanitizer) Extract(raw string) (*Record, error) {
	candidate, ok := scanObject(stripFences(raw))
	if !ok {
		return nil, &ExtractionError{Kind: KindNoPayload, Raw: raw}
	}

	fields, err := parseObject(candidate)
	if err != nil {
		fields, err = parseObject(repair(candidate))
		if err != nil {
			return nil, &ExtractionError{Kind: KindMalformed, Raw: raw, Err: err}
		}
	}

	rec := &Record{Fields: fields}
	rec.References = collectReferences(fields)
	for _, name := range s.required {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			rec.MissingFields = append(rec.MissingFields, name)
		}
	}
	return rec, nil
}

// VerifyQuotes marks each reference whose quote appears verbatim (modulo
// whitespace and case) in one of the tool outputs gathered during the
// request. Verification is best effort; unmatched quotes stay unverified
// rather than being dropped.
func VerifyQuotes(rec *Record, toolOutputs []string) {
	if len(toolOutputs) == 0 {
		return
	}
	normalized := make([]string, len(toolOutputs))
	for i, out := range toolOutputs {
		normalized[i] = normalizeForMatch(out)
	}
	for i := range rec.References {
		quote := normalizeForMatch(rec.References[i].Quote)
		if quote == "" {
			continue
		}
		for _, out := range normalized {
			if strings.Contains(out, quote) {
				rec.References[i].Verified = true
				break
			}
		}
	}
}

func normalizeForMatch(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// stripFences removes markdown code fences so the brace scan sees only the
// payload. Fence info strings ("json") are dropped with the fence line.
func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// scanObject returns the first balanced top-level JSON object in s. The scan
// is string-aware: braces inside string literals, including escaped quotes,
// do not affect nesting depth.
func scanObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func parseObject(s string) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// repair applies one bounded cleanup pass: smart quotes become ASCII quotes,
// control characters inside strings become spaces, and trailing commas
// before a closing bracket are dropped. It never loops or guesses beyond
// these three fixes.
func repair(s string) string {
	s = strings.NewReplacer(
		"“", `"`,
		"”", `"`,
		"‘", "'",
		"’", "'",
	).Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r < 0x20:
				b.WriteByte(' ')
				continue
			}
			b.WriteRune(r)
			continue
		}
		if r == '"' {
			inString = true
		}
		b.WriteRune(r)
	}
	s = b.String()

	return dropTrailingCommas(s)
}

func dropTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// collectReferences walks the parsed payload and gathers every object that
// looks like a reference (a "url" or "quote" key alongside others), wherever
// it appears. Duplicate URLs keep the first occurrence.
func collectReferences(fields map[string]json.RawMessage) []Reference {
	var refs []Reference
	seen := make(map[string]bool)
	// The canonical "references" field is visited first so its entries win
	// the dedup over copies nested elsewhere.
	if raw, ok := fields["references"]; ok {
		walkForReferences(raw, &refs, seen)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		if name != "references" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		walkForReferences(fields[name], &refs, seen)
	}
	return refs
}

func walkForReferences(raw json.RawMessage, refs *[]Reference, seen map[string]bool) {
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) == 0 {
		return
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return
		}
		for _, item := range items {
			walkForReferences(item, refs, seen)
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return
		}
		if isReference(obj) {
			var ref Reference
			// References without a url are dropped: an uncheckable citation
			// is worse than none.
			if err := json.Unmarshal(raw, &ref); err == nil && ref.URL != "" {
				if !seen[ref.URL] {
					seen[ref.URL] = true
					*refs = append(*refs, ref)
				}
			}
			return
		}
		// Map iteration order is random; sort keys so repeated extraction of
		// the same text yields the same reference order.
		keys := make([]string, 0, len(obj))
		for key := range obj {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			walkForReferences(obj[key], refs, seen)
		}
	}
}

func isReference(obj map[string]json.RawMessage) bool {
	_, hasURL := obj["url"]
	_, hasQuote := obj["quote"]
	_, hasSource := obj["source"]
	return (hasURL || hasQuote) && (hasSource || hasURL)
}
