package jsonrepair

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const briefSchema = `{
  "type": "object",
  "required": ["keyword", "subtopics"],
  "properties": {
    "keyword": {"type": "string"},
    "subtopics": {"type": "array", "items": {"type": "string"}}
  }
}`

func TestRepair_DirectParse(t *testing.T) {
	result := Repair(`{"keyword": "concrete driveway cost", "subtopics": ["pricing"]}`, briefSchema)
	require.True(t, result.Success)
	assert.Equal(t, StrategyDirect, result.Strategy)
}

func TestRepair_FencedCodeBlock(t *testing.T) {
	text := "Here is the analysis you asked for:\n```json\n{\"keyword\": \"stamped concrete\", \"subtopics\": [\"patterns\"]}\n```\nLet me know if you need more."

	result := Repair(text, briefSchema)
	require.True(t, result.Success)
	assert.Equal(t, StrategyExtract, result.Strategy)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &parsed))
	assert.Equal(t, "stamped concrete", parsed["keyword"])
}

func TestRepair_BalancedSpan(t *testing.T) {
	text := `Sure! {"keyword": "concrete patio", "subtopics": []} hope that helps`

	result := Repair(text, briefSchema)
	require.True(t, result.Success)
	assert.Equal(t, StrategyExtract, result.Strategy)
}

func TestRepair_TrailingComma(t *testing.T) {
	text := `{"keyword": "concrete slab", "subtopics": ["cost", "thickness",],}`

	result := Repair(text, briefSchema)
	require.True(t, result.Success)
	assert.Equal(t, StrategyFix, result.Strategy)
}

func TestRepair_ByteOrderMark(t *testing.T) {
	text := "\ufeff{\"keyword\": \"concrete steps\", \"subtopics\": [],}"

	result := Repair(text, briefSchema)
	require.True(t, result.Success)
	assert.Equal(t, StrategyFix, result.Strategy)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &parsed))
	assert.Equal(t, "concrete steps", parsed["keyword"])
}

func TestRepair_NewlineInString(t *testing.T) {
	text := "{\"keyword\": \"concrete\nsteps\", \"subtopics\": []}"

	result := Repair(text, briefSchema)
	require.True(t, result.Success)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &parsed))
	assert.Equal(t, "concrete\nsteps", parsed["keyword"])
}

func TestRepair_FencedWithTrailingComma(t *testing.T) {
	text := "```json\n{\"keyword\": \"concrete walkway\", \"subtopics\": [\"width\"],}\n```"

	result := Repair(text, briefSchema)
	require.True(t, result.Success)
	assert.Equal(t, StrategyExtractFix, result.Strategy)
}

// Round-trip property: serializing a valid object, wrapping it in a fenced
// block with an inserted trailing comma, then repairing must reproduce the
// original object exactly.
func TestRepair_RoundTrip(t *testing.T) {
	original := map[string]any{
		"keyword":   "concrete driveway cost",
		"subtopics": []any{"materials", "labor", "permits"},
	}
	serialized, err := json.Marshal(original)
	require.NoError(t, err)

	// Insert a trailing comma before the closing brace and wrap in a fence.
	damaged := strings.TrimSuffix(string(serialized), "}") + ",}"
	wrapped := "```json\n" + damaged + "\n```"

	result := Repair(wrapped, briefSchema)
	require.True(t, result.Success, "repair failed: %v", result.Err)

	var recovered map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &recovered))
	assert.Equal(t, original, recovered)
}

func TestRepair_SchemaRejectsWrongShape(t *testing.T) {
	result := Repair(`{"keyword": 42, "subtopics": []}`, briefSchema)
	require.False(t, result.Success)
	assert.Error(t, result.Err)
}

func TestRepair_AllStrategiesFail(t *testing.T) {
	result := Repair("this is not json at all", briefSchema)
	require.False(t, result.Success)
	require.Error(t, result.Err)
	// Diagnostic must carry a preview of the raw text.
	assert.Contains(t, result.Err.Error(), "this is not json at all")
	assert.Contains(t, result.Err.Error(), StrategyDirect)
	assert.Contains(t, result.Err.Error(), StrategyExtractFix)
}

func TestRepair_LongPreviewTruncated(t *testing.T) {
	result := Repair(strings.Repeat("x", 5000), briefSchema)
	require.False(t, result.Success)
	assert.Contains(t, result.Err.Error(), "...")
	assert.Less(t, len(result.Err.Error()), 1500)
}

func TestValidate_Strict(t *testing.T) {
	valid := `{"keyword": "concrete", "subtopics": []}`
	assert.NoError(t, Validate(valid, briefSchema))

	// Anything needing repair is rejected outright.
	fenced := "```json\n" + valid + "\n```"
	assert.Error(t, Validate(fenced, briefSchema))

	trailing := `{"keyword": "concrete", "subtopics": [],}`
	assert.Error(t, Validate(trailing, briefSchema))
}

func TestExtractBalancedSpan_IgnoresBracesInStrings(t *testing.T) {
	text := `prefix {"keyword": "use {braces} carefully", "subtopics": []} suffix`

	span, ok := extractBalancedSpan(text)
	require.True(t, ok)
	assert.Equal(t, `{"keyword": "use {braces} carefully", "subtopics": []}`, span)
}

func TestExtractBalancedSpan_Array(t *testing.T) {
	span, ok := extractBalancedSpan(`noise [1, 2, 3] trailing`)
	require.True(t, ok)
	assert.Equal(t, `[1, 2, 3]`, span)
}

func TestRemoveTrailingCommas_PreservesCommasInStrings(t *testing.T) {
	in := `{"a": "one, two,", "b": [1, 2,]}`
	out := removeTrailingCommas(in)
	assert.Equal(t, `{"a": "one, two,", "b": [1, 2]}`, out)
}
