package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checklistReply struct {
	Items []map[string]any `json:"items"`
}

func TestParse_DirectJSON(t *testing.T) {
	result := Parse[checklistReply](`{"items":[{"requisito":"ISO 9001"}]}`)

	require.True(t, result.Success, result.Error)
	require.Len(t, result.Data.Items, 1)
	assert.Equal(t, "ISO 9001", result.Data.Items[0]["requisito"])
}

func TestParse_EmptyInput(t *testing.T) {
	result := Parse[checklistReply]("   ")

	assert.False(t, result.Success)
	assert.Equal(t, "empty input", result.Error)
}

func TestParse_ErrorCarriesContext(t *testing.T) {
	result := Parse[checklistReply]("not json at all", ParseOptions{Context: "checklist reply", LogErrors: boolPtr(false)})

	assert.False(t, result.Success)
	assert.True(t, strings.HasPrefix(result.Error, "checklist reply: "), result.Error)
}

func TestParse_Strategies(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"code fence with language", "```json\n{\"items\":[{\"requisito\":\"A\"}]}\n```"},
		{"bare code fence", "```\n{\"items\":[{\"requisito\":\"A\"}]}\n```"},
		{"fence inside prose", "Here is the checklist:\n```json\n{\"items\":[{\"requisito\":\"A\"}]}\n```\nDone."},
		{"trailing comma", `{"items":[{"requisito":"A",},]}`},
		{"whole line comment", "{\n// generated\n\"items\":[{\"requisito\":\"A\"}]\n}"},
		{"block comment", `{/* rows */"items":[{"requisito":"A"}]}`},
		{"unquoted key", `{items:[{"requisito":"A"}]}`},
		{"surrounding prose", `Sure! {"items":[{"requisito":"A"}]} Let me know.`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse[checklistReply](tt.input, ParseOptions{LogErrors: boolPtr(false)})
			require.True(t, result.Success, result.Error)
			require.Len(t, result.Data.Items, 1)
			assert.Equal(t, "A", result.Data.Items[0]["requisito"])
		})
	}
}

func TestParse_CleanupDisabled(t *testing.T) {
	result := Parse[checklistReply]("```json\n{\"items\":[]}\n```", ParseOptions{EnableCleanup: boolPtr(false)})
	assert.False(t, result.Success)
}

func TestParse_SizeLimit(t *testing.T) {
	result := Parse[checklistReply](`{"items":[]}`, ParseOptions{MaxInputSize: 4})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "size limit")
}

func TestParse_KeepsApostrophes(t *testing.T) {
	input := "```json\n{\"items\":[{\"requisito\":\"Dichiarazione d'impegno\"}]}\n```"
	result := Parse[checklistReply](input)

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "Dichiarazione d'impegno", result.Data.Items[0]["requisito"])
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name string
		text string
		ok   bool
		key  string
	}{
		{"plain object", `{"assistant_reply":"ok"}`, true, "assistant_reply"},
		{"prose around object", `Reply follows {"assistant_reply":"ok"} end`, true, "assistant_reply"},
		{"fenced", "```json\n{\"assistant_reply\":\"ok\"}\n```", true, "assistant_reply"},
		{"trailing comma needs cleanup", `{"assistant_reply":"ok",}`, true, "assistant_reply"},
		{"no braces", "I could not update the tender.", false, ""},
		{"reversed braces", "} nothing {", false, ""},
		{"broken object", `{"assistant_reply": }`, false, ""},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, ok := ExtractObject(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, "ok", obj[tt.key])
			} else {
				assert.Nil(t, obj)
			}
		})
	}
}

func TestExtractObject_NestedBraces(t *testing.T) {
	obj, ok := ExtractObject(`note {"output_json":{"overview":{"status":"x"}},"assistant_reply":"r"} trailing`)
	require.True(t, ok)
	assert.Equal(t, "r", obj["assistant_reply"])
	overview := obj["output_json"].(map[string]any)["overview"].(map[string]any)
	assert.Equal(t, "x", overview["status"])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
