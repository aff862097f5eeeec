package ingest

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no parseable JSON value can be recovered
// from a model response.
var ErrNoJSON = errors.New("no JSON value found in model response")

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON recovers the JSON payload from a raw model response.
// Models wrap output in markdown fences or prose despite instructions,
// so three strategies are tried in order: the whole response as-is, the
// first fenced code block, and the widest embedded object or array.
func ExtractJSON(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrNoJSON
	}

	if v, ok := tryParse(trimmed); ok {
		return v, nil
	}

	if m := fencedBlockRe.FindStringSubmatch(trimmed); m != nil {
		if v, ok := tryParse(strings.TrimSpace(m[1])); ok {
			return v, nil
		}
	}

	if v, ok := tryParse(embeddedSpan(trimmed)); ok {
		return v, nil
	}

	return nil, ErrNoJSON
}

func tryParse(s string) (json.RawMessage, bool) {
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	if !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}

// embeddedSpan returns the span from the earliest opening brace or
// bracket to its matching closer at the end of the text. Greedy on
// purpose: nested values stay inside the span.
func embeddedSpan(s string) string {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start := objStart
	closer := byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
		closer = ']'
	}
	if start == -1 {
		return ""
	}

	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}
