package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/magicfolder/brain/classify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOCR records calls and returns canned text.
type fakeOCR struct {
	available bool
	text      string
	err       error
	calls     []string
}

func (f *fakeOCR) Available() bool { return f.available }

func (f *fakeOCR) ExtractText(_ context.Context, path string) (string, error) {
	f.calls = append(f.calls, path)
	return f.text, f.err
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestExtract_TextFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "invoice.txt", []byte("TAX INVOICE GSTIN 07AAACX"))

	e := NewExtractor(classify.DefaultRuleSet(), nil)
	fc := e.Extract(context.Background(), path)

	assert.Equal(t, path, fc.Path)
	assert.Equal(t, "TAX INVOICE GSTIN 07AAACX", fc.Content)
	assert.NoError(t, fc.Err)
}

func TestExtract_InvalidUTF8Dropped(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mixed.txt", []byte{'o', 'k', 0xff, 0xfe, '!'})

	e := NewExtractor(classify.DefaultRuleSet(), nil)
	fc := e.Extract(context.Background(), path)

	assert.Equal(t, "ok!", fc.Content)
}

func TestExtract_NonexistentPath(t *testing.T) {
	e := NewExtractor(classify.DefaultRuleSet(), nil)

	fc := e.Extract(context.Background(), "/nonexistent/file.txt")
	assert.Empty(t, fc.Content)
	assert.Error(t, fc.Err)

	fc = e.Extract(context.Background(), "/nonexistent/scan.png")
	assert.Empty(t, fc.Content)
	assert.Error(t, fc.Err)
}

func TestExtract_UnknownExtensionIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blob.xyz", []byte("content that is never read"))

	e := NewExtractor(classify.DefaultRuleSet(), nil)
	fc := e.Extract(context.Background(), path)

	assert.Empty(t, fc.Content)
	assert.NoError(t, fc.Err)
}

func TestExtract_HardRuleExtensionIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "song.mp3", []byte("not audio at all"))

	e := NewExtractor(classify.DefaultRuleSet(), nil)
	fc := e.Extract(context.Background(), path)

	assert.Empty(t, fc.Content)
}

func TestExtract_ImageUsesOCR(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scan.png", []byte{0x89, 'P', 'N', 'G'})

	ocr := &fakeOCR{available: true, text: "recognized text"}
	e := NewExtractor(classify.DefaultRuleSet(), ocr)

	fc := e.Extract(context.Background(), path)
	assert.Equal(t, "recognized text", fc.Content)
	assert.Equal(t, []string{path}, ocr.calls)
}

func TestExtract_OCRUnavailableIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scan.png", []byte{0x89, 'P', 'N', 'G'})

	ocr := &fakeOCR{available: false}
	e := NewExtractor(classify.DefaultRuleSet(), ocr)

	fc := e.Extract(context.Background(), path)
	assert.Empty(t, fc.Content)
	assert.NoError(t, fc.Err)
	assert.Empty(t, ocr.calls)
}

func TestExtract_NilOCRIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "photo.jpg", []byte{0xff, 0xd8})

	e := NewExtractor(classify.DefaultRuleSet(), nil)
	fc := e.Extract(context.Background(), path)

	assert.Empty(t, fc.Content)
	assert.NoError(t, fc.Err)
}

func TestExtract_MaxBytes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "big.txt", []byte("0123456789"))

	e := NewExtractor(classify.DefaultRuleSet(), nil, WithMaxBytes(4))
	fc := e.Extract(context.Background(), path)

	assert.Equal(t, "0123", fc.Content)
}

func TestExtract_HTMLStripped(t *testing.T) {
	dir := t.TempDir()
	page := `<html><head><title>t</title><script>var x = 1;</script></head>` +
		`<body><p>TAX INVOICE</p><p>GSTIN 07AAACX</p></body></html>`
	path := writeFile(t, dir, "bill.html", []byte(page))

	e := NewExtractor(classify.DefaultRuleSet(), nil)
	fc := e.Extract(context.Background(), path)

	assert.Contains(t, fc.Content, "TAX INVOICE")
	assert.NotContains(t, fc.Content, "var x = 1")
}

func TestStripHTML(t *testing.T) {
	got := stripHTML(`<div><style>.a{}</style>hello <b>world</b></div>`)
	assert.Contains(t, got, "hello")
	assert.Contains(t, got, "world")
	assert.NotContains(t, got, ".a{}")
}

func TestTesseract_UnavailableWithoutBinary(t *testing.T) {
	tess := NewTesseract(WithTesseractBinary(""))

	assert.False(t, tess.Available())

	text, err := tess.ExtractText(context.Background(), "scan.png")
	assert.NoError(t, err)
	assert.Empty(t, text)
}
