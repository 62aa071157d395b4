package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/magicfolder/brain/classify"
	"github.com/magicfolder/brain/escalate"
	"github.com/magicfolder/brain/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEscalator scripts the external batch classifier.
type fakeEscalator struct {
	available bool
	overrides map[string]escalate.Override
	err       error
	calls     int
	lastBatch []escalate.Item
}

func (f *fakeEscalator) Available() bool { return f.available }

func (f *fakeEscalator) ClassifyBatch(_ context.Context, items []escalate.Item) (map[string]escalate.Override, error) {
	f.calls++
	f.lastBatch = items
	return f.overrides, f.err
}

func newTestPipeline(esc escalate.Classifier) *Pipeline {
	rules := classify.DefaultRuleSet()
	return New(
		extract.NewExtractor(rules, nil),
		classify.NewClassifier(rules, nil),
		esc,
		nil,
	)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func categories(results []Result) map[string]classify.Category {
	out := make(map[string]classify.Category, len(results))
	for _, r := range results {
		out[r.Path] = r.Category
	}
	return out
}

func TestProcess_OneResultPerPath(t *testing.T) {
	dir := t.TempDir()
	txt := writeFile(t, dir, "b.txt", "TAX INVOICE ... GSTIN ...")

	p := newTestPipeline(nil)
	results := p.Process(context.Background(), []string{"a.mp3", txt, "/nonexistent.xyz"})

	require.Len(t, results, 3)
	got := categories(results)
	assert.Equal(t, classify.CategoryAudio, got["a.mp3"])
	assert.Equal(t, classify.CategoryInvoices, got[txt])
	assert.Equal(t, classify.CategoryMisc, got["/nonexistent.xyz"])
}

func TestProcess_DuplicatePathsFirstWins(t *testing.T) {
	p := newTestPipeline(nil)

	results := p.Process(context.Background(), []string{"a.mp3", "a.mp3", "a.mp3"})
	require.Len(t, results, 1)
	assert.Equal(t, "a.mp3", results[0].Path)
}

func TestProcess_EscalationOnlyForMiscWithContent(t *testing.T) {
	dir := t.TempDir()
	uncertain := writeFile(t, dir, "mystery.txt", "completely unremarkable text")
	blank := writeFile(t, dir, "blank.txt", "   \n ")

	esc := &fakeEscalator{available: true}
	p := newTestPipeline(esc)

	p.Process(context.Background(), []string{"a.mp3", uncertain, blank})

	require.Equal(t, 1, esc.calls, "exactly one escalation call per request")
	require.Len(t, esc.lastBatch, 1)
	assert.Equal(t, uncertain, esc.lastBatch[0].Path)
}

func TestProcess_NoEscalationWhenNothingUncertain(t *testing.T) {
	esc := &fakeEscalator{available: true}
	p := newTestPipeline(esc)

	p.Process(context.Background(), []string{"a.mp3", "b.zip"})
	assert.Zero(t, esc.calls)
}

func TestProcess_EscalatorUnavailableKeepsMisc(t *testing.T) {
	dir := t.TempDir()
	uncertain := writeFile(t, dir, "mystery.txt", "nothing matches this")

	esc := &fakeEscalator{available: false}
	p := newTestPipeline(esc)

	results := p.Process(context.Background(), []string{uncertain})
	assert.Zero(t, esc.calls)
	assert.Equal(t, classify.CategoryMisc, results[0].Category)
	assert.Empty(t, results[0].Err)
}

func TestProcess_EscalatorErrorKeepsMisc(t *testing.T) {
	dir := t.TempDir()
	uncertain := writeFile(t, dir, "mystery.txt", "nothing matches this")

	esc := &fakeEscalator{available: true, err: errors.New("model offline")}
	p := newTestPipeline(esc)

	results := p.Process(context.Background(), []string{uncertain})
	assert.Equal(t, 1, esc.calls)
	assert.Equal(t, classify.CategoryMisc, results[0].Category)
}

func TestProcess_OverridesApplied(t *testing.T) {
	dir := t.TempDir()
	uncertain := writeFile(t, dir, "cv.txt", "ten years of experience shipping software")

	esc := &fakeEscalator{
		available: true,
		overrides: map[string]escalate.Override{
			uncertain:    {Category: classify.CategoryResume, Confidence: 0.9},
			"/not/asked": {Category: classify.CategoryNotes, Confidence: 0.8},
		},
	}
	p := newTestPipeline(esc)

	results := p.Process(context.Background(), []string{uncertain})
	require.Len(t, results, 1, "unknown override paths never create entries")
	assert.Equal(t, classify.CategoryResume, results[0].Category)
}

func TestProcess_HardRuleImmuneToOverride(t *testing.T) {
	dir := t.TempDir()
	uncertain := writeFile(t, dir, "mystery.txt", "nothing matches this")

	esc := &fakeEscalator{
		available: true,
		overrides: map[string]escalate.Override{
			"a.mp3":   {Category: classify.CategoryInvoices, Confidence: 1.0},
			uncertain: {Category: classify.CategoryNotes, Confidence: 0.9},
		},
	}
	p := newTestPipeline(esc)

	results := p.Process(context.Background(), []string{"a.mp3", uncertain})
	got := categories(results)
	assert.Equal(t, classify.CategoryAudio, got["a.mp3"], "hard rules outrank overrides")
	assert.Equal(t, classify.CategoryNotes, got[uncertain])
}

func TestProcess_EmptyInput(t *testing.T) {
	p := newTestPipeline(nil)
	assert.Empty(t, p.Process(context.Background(), nil))
}
