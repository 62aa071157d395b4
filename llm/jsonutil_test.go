package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_CodeBlock(t *testing.T) {
	content := "Here is the classification:\n```json\n{\"a\": 1}\n```\nDone."
	assert.Equal(t, `{"a": 1}`, ExtractJSON(content))
}

func TestExtractJSON_BareObject(t *testing.T) {
	content := `The result is {"category": "Invoices", "confidence": 0.9} as requested.`
	got := ExtractJSON(content)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	assert.Equal(t, "Invoices", parsed["category"])
}

func TestExtractJSON_TrailingComma(t *testing.T) {
	content := "```json\n{\"a\": 1, \"b\": 2,}\n```"
	got := ExtractJSON(content)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	assert.Len(t, parsed, 2)
}

func TestExtractJSON_NoJSON(t *testing.T) {
	assert.Equal(t, "", ExtractJSON("no structured output here"))
}
