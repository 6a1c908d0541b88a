// Package jsonrepair recovers structured data from unreliable generative
// model output. Models wrap JSON in markdown fences, leave trailing commas,
// or embed raw newlines inside strings; Repair tries an ordered sequence of
// recovery strategies and returns the first result that both parses and
// validates against the supplied schema.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MandBea-Media-Labs/cost-of-concrete-sub007/internal/schemas"
)

// Strategy names, in the order they are attempted.
const (
	StrategyDirect     = "direct"
	StrategyExtract    = "extract"
	StrategyFix        = "fix"
	StrategyExtractFix = "extract_fix"
)

// Result holds the outcome of a repair attempt.
type Result struct {
	Success  bool
	Data     json.RawMessage
	Strategy string
	Err      error
}

// previewLen bounds how much of the raw text is echoed in diagnostics.
const previewLen = 200

// Repair attempts to parse text as JSON valid against schema, applying each
// recovery strategy in order. If every strategy fails, the returned Result
// carries a diagnostic error with per-strategy failures and a preview of the
// original text. The raw failure is surfaced loudly, never guessed at.
func Repair(text, schema string) Result {
	type attempt struct {
		name      string
		transform func(string) string
	}

	attempts := []attempt{
		{StrategyDirect, func(s string) string { return s }},
		{StrategyExtract, extractJSON},
		{StrategyFix, fixCommonDefects},
		{StrategyExtractFix, func(s string) string { return fixCommonDefects(extractJSON(s)) }},
	}

	var failures []string
	for _, a := range attempts {
		candidate := a.transform(text)
		data, err := parseAndValidate(candidate, schema)
		if err == nil {
			return Result{Success: true, Data: data, Strategy: a.name}
		}
		failures = append(failures, fmt.Sprintf("%s: %v", a.name, err))
	}

	return Result{
		Success: false,
		Err: fmt.Errorf("all repair strategies failed:\n  %s\noriginal text preview: %q",
			strings.Join(failures, "\n  "), preview(text)),
	}
}

// Validate is the strict variant: the text must parse and schema-validate
// as-is, with no extraction and no fixing.
func Validate(text, schema string) error {
	_, err := parseAndValidate(text, schema)
	return err
}

// parseAndValidate parses candidate as JSON and validates it against schema.
// Returns the compacted raw message on success.
func parseAndValidate(candidate, schema string) (json.RawMessage, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, fmt.Errorf("empty input")
	}

	var probe any
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	if schema != "" {
		if err := schemas.ValidateString(schema, candidate); err != nil {
			return nil, err
		}
	}

	return json.RawMessage(candidate), nil
}

// extractJSON pulls a JSON document out of surrounding prose: first from a
// fenced code block, then from the first balanced {...} or [...] span.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if fenced, ok := extractFencedBlock(text); ok {
		return fenced
	}
	if span, ok := extractBalancedSpan(text); ok {
		return span
	}
	return text
}

// extractFencedBlock returns the contents of the first markdown code fence.
func extractFencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	// Skip a language identifier on the fence line.
	if idx := strings.Index(rest, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(rest[:idx])
		if firstLine == "" || (len(firstLine) < 20 && !strings.ContainsAny(firstLine, " {[")) {
			rest = rest[idx+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// extractBalancedSpan returns the first balanced top-level object or array.
// Brace counting ignores brackets inside string literals.
func extractBalancedSpan(text string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if text[i] == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == open:
			depth++
		case !inString && c == close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// fixCommonDefects repairs frequent syntactic mistakes: a stray BOM,
// trailing commas before closing brackets, and raw newlines embedded in
// string literals.
func fixCommonDefects(text string) string {
	text = strings.TrimPrefix(strings.TrimSpace(text), "\ufeff")
	text = removeTrailingCommas(text)
	text = escapeNewlinesInStrings(text)
	return text
}

// removeTrailingCommas strips commas that directly precede a closing brace
// or bracket, outside of string literals.
func removeTrailingCommas(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			sb.WriteByte(c)
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
			sb.WriteByte(c)
		case c == '"':
			inString = !inString
			sb.WriteByte(c)
		case c == ',' && !inString:
			// Look ahead past whitespace; drop the comma if a closer follows.
			j := i + 1
			for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// escapeNewlinesInStrings replaces raw newline and carriage-return characters
// inside string literals with their escaped forms.
func escapeNewlinesInStrings(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			sb.WriteByte(c)
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
			sb.WriteByte(c)
		case c == '"':
			inString = !inString
			sb.WriteByte(c)
		case c == '\n' && inString:
			sb.WriteString(`\n`)
		case c == '\r' && inString:
			sb.WriteString(`\r`)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// preview returns the head of text for diagnostics.
func preview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > previewLen {
		return text[:previewLen] + "..."
	}
	return text
}
