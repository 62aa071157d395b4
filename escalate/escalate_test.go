package escalate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/magicfolder/brain/classify"
	"github.com/magicfolder/brain/llm"
	_ "github.com/magicfolder/brain/llm/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completionServer returns an OpenAI-compatible endpoint whose assistant
// reply is the given content.
func completionServer(t *testing.T, calls *atomic.Int32, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{
					"message":       map[string]string{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		})
	}))
}

func newTestClassifier(serverURL string) *LLMClassifier {
	client := llm.NewClient(llm.Endpoint{
		Provider: "ollama",
		URL:      serverURL,
		Model:    "test-model",
	})
	return NewLLMClassifier(client)
}

func TestClassifyBatch_ParsesOverrides(t *testing.T) {
	reply := "```json\n" + `{
		"/tmp/a.txt": {"category": "Invoices", "confidence": 0.92, "reason": "billing totals"},
		"/tmp/b.txt": {"category": "Notes", "confidence": 0.7, "reason": "meeting notes"}
	}` + "\n```"

	var calls atomic.Int32
	server := completionServer(t, &calls, reply)
	defer server.Close()

	c := newTestClassifier(server.URL)
	overrides, err := c.ClassifyBatch(context.Background(), []Item{
		{Path: "/tmp/a.txt", Content: "total: 300"},
		{Path: "/tmp/b.txt", Content: "agenda"},
	})

	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, classify.CategoryInvoices, overrides["/tmp/a.txt"].Category)
	assert.InDelta(t, 0.92, overrides["/tmp/a.txt"].Confidence, 1e-9)
	assert.Equal(t, classify.CategoryNotes, overrides["/tmp/b.txt"].Category)
	assert.Equal(t, int32(1), calls.Load(), "whole batch must be one external call")
}

func TestClassifyBatch_EmptyBatchSkipsCall(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, &calls, "{}")
	defer server.Close()

	c := newTestClassifier(server.URL)
	overrides, err := c.ClassifyBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, overrides)
	assert.Equal(t, int32(0), calls.Load())
}

func TestClassifyBatch_GarbageReplyIsError(t *testing.T) {
	server := completionServer(t, nil, "I cannot classify these files.")
	defer server.Close()

	c := newTestClassifier(server.URL)
	_, err := c.ClassifyBatch(context.Background(), []Item{{Path: "/x", Content: "y"}})
	require.Error(t, err)
}

func TestParseOverrides_DropsUnknownCategories(t *testing.T) {
	overrides, err := parseOverrides(`{
		"/a": {"category": "Invoices", "confidence": 0.8, "reason": "r"},
		"/b": {"category": "SomethingElse", "confidence": 0.9, "reason": "r"}
	}`)

	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Contains(t, overrides, "/a")
}

func TestTruncateContent(t *testing.T) {
	assert.Equal(t, "short", truncateContent("short", 100))

	long := "first paragraph\n\nsecond paragraph that runs long"
	got := truncateContent(long, 20)
	assert.Equal(t, "first paragraph", got)

	assert.Len(t, truncateContent("abcdefghij", 4), 4)
}

func TestLLMClassifier_Available(t *testing.T) {
	assert.False(t, (&LLMClassifier{}).Available())

	client := llm.NewClient(llm.Endpoint{Provider: "ollama", Model: "m"})
	assert.True(t, NewLLMClassifier(client).Available())
}
