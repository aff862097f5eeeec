package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONVerbatimObject(t *testing.T) {
	v, err := ExtractJSON(`{"client": "Acme"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"client": "Acme"}`, string(v))
}

func TestExtractJSONVerbatimArray(t *testing.T) {
	v, err := ExtractJSON(`[{"client": "Acme"}, {"client": "Globex"}]`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"client": "Acme"}, {"client": "Globex"}]`, string(v))
}

func TestExtractJSONWhitespacePadding(t *testing.T) {
	v, err := ExtractJSON("\n\t  {\"client\": \"Acme\"}  \n")
	require.NoError(t, err)
	assert.JSONEq(t, `{"client": "Acme"}`, string(v))
}

func TestExtractJSONFencedBlock(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"client\": \"Acme\"}\n```\nHope that helps!"
	v, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"client": "Acme"}`, string(v))
}

func TestExtractJSONFencedBlockNoLanguage(t *testing.T) {
	raw := "```\n[{\"client\": \"Acme\"}]\n```"
	v, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"client": "Acme"}]`, string(v))
}

func TestExtractJSONEmbeddedInProse(t *testing.T) {
	raw := `The extracted transaction is {"client": "Acme", "nested": {"a": 1}} as requested.`
	v, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"client": "Acme", "nested": {"a": 1}}`, string(v))
}

func TestExtractJSONEmbeddedArray(t *testing.T) {
	raw := `Sure! [{"client": "Acme"}] Done.`
	v, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"client": "Acme"}]`, string(v))
}

func TestExtractJSONNoValue(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"whitespace":    "   \n\t",
		"prose":         "I could not find any transactions in this document.",
		"unbalanced":    `{"client": "Acme"`,
		"scalar":        `"just a string"`,
		"number":        "42",
		"brokenInFence": "```json\n{not json}\n```",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractJSON(raw)
			assert.ErrorIs(t, err, ErrNoJSON)
		})
	}
}
