package providers

import (
	"encoding/json"
	"testing"

	"github.com/magicfolder/brain/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGemini_BuildURL(t *testing.T) {
	g := &GeminiProvider{}

	assert.Equal(t,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-pro:generateContent",
		g.BuildURL("", "gemini-2.5-pro"))
	assert.Equal(t,
		"http://localhost:8080/v1beta/models/m:embedContent",
		g.BuildEmbedURL("http://localhost:8080/v1beta/", "m"))
}

func TestGemini_BuildRequestBody(t *testing.T) {
	g := &GeminiProvider{}
	temp := 0.5

	body, err := g.BuildRequestBody("gemini-2.5-pro", []llm.Message{
		{Role: "system", Content: "you classify files"},
		{Role: "user", Content: "classify this"},
	}, &temp, 2000)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))

	assert.Contains(t, req, "systemInstruction")
	assert.Contains(t, req, "generationConfig")

	contents := req["contents"].([]any)
	require.Len(t, contents, 1)
	first := contents[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
}

func TestGemini_ParseResponse(t *testing.T) {
	g := &GeminiProvider{}

	body := []byte(`{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "{\"a\": "}, {"text": "1}"}]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 3, "totalTokenCount": 8}
	}`)

	resp, err := g.ParseResponse(body, "gemini-2.5-pro")
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, resp.Content)
	assert.Equal(t, "gemini-2.5-pro", resp.Model)
	assert.Equal(t, 8, resp.Usage.TotalTokens)
	assert.Equal(t, "STOP", resp.FinishReason)
}

func TestGemini_ParseResponse_NoCandidates(t *testing.T) {
	g := &GeminiProvider{}

	_, err := g.ParseResponse([]byte(`{"candidates": []}`), "m")
	require.Error(t, err)
}

func TestGemini_ParseEmbedResponse(t *testing.T) {
	g := &GeminiProvider{}

	vec, err := g.ParseEmbedResponse([]byte(`{"embedding": {"values": [0.5, -0.25]}}`))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25}, vec)

	_, err = g.ParseEmbedResponse([]byte(`{"embedding": {"values": []}}`))
	require.Error(t, err)
}
