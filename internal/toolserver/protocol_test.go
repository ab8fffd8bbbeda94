package toolserver

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRequestIsSingleLine(t *testing.T) {
	data, err := EncodeRequest(NewRequest("abc", MethodCallTool, map[string]any{
		"name":      "read_file",
		"arguments": map[string]any{"path": "/tmp/x"},
	}))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(string(data), "\n"))
	assert.Equal(t, 1, strings.Count(string(data), "\n"))

	var req Request
	require.NoError(t, json.Unmarshal(data, &req))
	assert.Equal(t, "abc", req.ID)
	assert.Equal(t, MethodCallTool, req.Method)
}

func TestDecodeMessageClassification(t *testing.T) {
	cases := []struct {
		name     string
		line     string
		response bool
		catalog  bool
	}{
		{"result", `{"id":"1","result":"ok"}`, true, false},
		{"error", `{"id":"1","error":"boom"}`, true, false},
		{"catalog", `{"tools":[{"name":"a"}]}`, false, true},
		{"empty catalog", `{"tools":[]}`, false, true},
		{"neither", `{"note":"hi"}`, false, false},
		{"result without id", `{"result":"orphan"}`, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tc.line))
			require.NoError(t, err)
			assert.Equal(t, tc.response, msg.IsResponse())
			assert.Equal(t, tc.catalog, msg.IsCatalog())
		})
	}
}

func TestDecodeMessageRejectsMalformed(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"id":`))
	assert.Error(t, err)

	_, err = DecodeMessage([]byte(`plain text`))
	assert.Error(t, err)
}

func TestResultText(t *testing.T) {
	assert.Equal(t, "hello", ResultText(json.RawMessage(`"hello"`)))
	assert.Equal(t, `{"k":1}`, ResultText(json.RawMessage(`{"k":1}`)))
	assert.Equal(t, "42", ResultText(json.RawMessage(`42`)))
	assert.Equal(t, "", ResultText(nil))
}

func TestDecodeCatalogResult(t *testing.T) {
	tools := DecodeCatalogResult(json.RawMessage(`{"tools":[{"name":"a","description":"d","inputSchema":{"type":"object"}}]}`))
	require.Len(t, tools, 1)
	assert.Equal(t, "a", tools[0].Name)

	assert.Nil(t, DecodeCatalogResult(json.RawMessage(`"not a catalog"`)))
	assert.Nil(t, DecodeCatalogResult(nil))
}
