package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicfolder/brain/llm"
)

type fakeModel struct {
	available   bool
	summary     string
	completeErr error
	vector      []float32
	embedErr    error
	embedded    []string
}

func (f *fakeModel) Available() bool { return f.available }

func (f *fakeModel) Complete(_ context.Context, _ llm.Request) (*llm.Response, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &llm.Response{Content: f.summary}, nil
}

func (f *fakeModel) Embed(_ context.Context, text string) ([]float32, error) {
	f.embedded = append(f.embedded, text)
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.vector, nil
}

type fakeStore struct {
	docs      []Document
	upsertErr error
}

func (f *fakeStore) Upsert(_ context.Context, doc Document) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeStore) Delete(_ context.Context, path string) error {
	for i, d := range f.docs {
		if d.Path == path {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) Query(_ context.Context, _ []float32, _ int) ([]Match, error) {
	return nil, nil
}

func TestVectorRoundTrip(t *testing.T) {
	v := []float32{0.5, -1.25, 0, 3.75}
	decoded, err := DecodeVector(EncodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, decoded)
}

func TestDecodeVector_BadLength(t *testing.T) {
	_, err := DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, Cosine(nil, nil))
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}), "dimension mismatch")
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 2}), "zero vector")
}

func TestIndex_StoresSummaryAndVector(t *testing.T) {
	model := &fakeModel{available: true, summary: "a short summary", vector: []float32{0.1, 0.2}}
	store := &fakeStore{}
	ix := NewIndexer(model, store)

	err := ix.Index(context.Background(), "/drop/report.txt", "quarterly report contents here", "Invoices")
	require.NoError(t, err)

	require.Len(t, store.docs, 1)
	doc := store.docs[0]
	assert.Equal(t, "/drop/report.txt", doc.Path)
	assert.Equal(t, "a short summary", doc.Summary)
	assert.Equal(t, "Invoices", doc.Category)
	assert.Equal(t, []float32{0.1, 0.2}, doc.Vector)

	require.Len(t, model.embedded, 1)
	assert.Equal(t, "a short summary", model.embedded[0], "the summary is what gets embedded")
}

func TestIndex_SkipsShortContent(t *testing.T) {
	model := &fakeModel{available: true}
	store := &fakeStore{}
	ix := NewIndexer(model, store)

	require.NoError(t, ix.Index(context.Background(), "/drop/tiny.txt", "  hi  ", "Misc"))
	assert.Empty(t, store.docs)
	assert.Empty(t, model.embedded)
}

func TestIndex_SummaryFallbackOnModelError(t *testing.T) {
	content := strings.Repeat("x", 600)
	model := &fakeModel{available: true, completeErr: errors.New("model offline"), vector: []float32{1}}
	store := &fakeStore{}
	ix := NewIndexer(model, store)

	require.NoError(t, ix.Index(context.Background(), "/drop/big.txt", content, "Misc"))
	require.Len(t, store.docs, 1)
	assert.Len(t, store.docs[0].Summary, 500, "raw prefix stands in for the summary")
}

func TestIndex_EmbedErrorPropagates(t *testing.T) {
	model := &fakeModel{available: true, summary: "s", embedErr: errors.New("no embed model")}
	ix := NewIndexer(model, &fakeStore{})

	err := ix.Index(context.Background(), "/drop/a.txt", "long enough content", "Misc")
	assert.Error(t, err)
}

func TestIndex_ModelUnavailable(t *testing.T) {
	ix := NewIndexer(&fakeModel{available: false}, &fakeStore{})
	err := ix.Index(context.Background(), "/drop/a.txt", "long enough content", "Misc")
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	store := &fakeStore{docs: []Document{{Path: "/drop/a.txt"}}}
	ix := NewIndexer(&fakeModel{available: true}, store)

	require.NoError(t, ix.Remove(context.Background(), "/drop/a.txt"))
	assert.Empty(t, store.docs)
}
