package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_HardRules(t *testing.T) {
	c := NewClassifier(DefaultRuleSet(), nil)

	tests := []struct {
		path string
		want Category
	}{
		{"song.mp3", CategoryAudio},
		{"/tmp/clip.MP4", CategoryVideo},
		{"backup.zip", CategoryArchives},
		{"ledger.xlsx", CategoryFinancials},
		{"main.py", CategoryCode},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(tt.path, ""), tt.path)
	}
}

func TestClassify_HardRuleIgnoresContent(t *testing.T) {
	c := NewClassifier(DefaultRuleSet(), nil)

	// Content that would match a keyword rule must not matter: the
	// extension resolves first and is final.
	got := c.Classify("recording.mp3", "TAX INVOICE GSTIN 12345")
	assert.Equal(t, CategoryAudio, got)
}

func TestClassify_KeywordPrecedence(t *testing.T) {
	c := NewClassifier(DefaultRuleSet(), nil)

	// Contains both a TrainTickets keyword and an Invoices keyword; the
	// higher-priority rule wins.
	got := c.Classify("ticket.txt", "IRCTC e-ticket, invoice attached")
	assert.Equal(t, CategoryTrainTickets, got)
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := NewClassifier(DefaultRuleSet(), nil)

	assert.Equal(t, CategoryInvoices, c.Classify("bill.txt", "TAX INVOICE No. 42 GSTIN 07AAACX"))
	assert.Equal(t, CategoryCredentials, c.Classify("notes.txt", "my PASSWORD is hunter2"))
}

func TestClassify_EmptyContentIsMisc(t *testing.T) {
	c := NewClassifier(DefaultRuleSet(), nil)

	assert.Equal(t, CategoryMisc, c.Classify("unknown.xyz", ""))
	assert.Equal(t, CategoryMisc, c.Classify("readme.txt", ""))
}

func TestClassify_NoMatchIsMisc(t *testing.T) {
	c := NewClassifier(DefaultRuleSet(), nil)

	assert.Equal(t, CategoryMisc, c.Classify("essay.txt", "an essay about nothing in particular"))
}

func TestClassify_AlternateRuleSet(t *testing.T) {
	rules, err := NewRuleSet(
		map[string]Category{".dat": CategoryArchives},
		[]KeywordRule{{Category: CategoryNotes, Keywords: []string{"scratch"}}},
		[]string{".txt"},
		nil,
	)
	require.NoError(t, err)

	c := NewClassifier(rules, nil)
	assert.Equal(t, CategoryArchives, c.Classify("blob.dat", ""))
	assert.Equal(t, CategoryNotes, c.Classify("a.txt", "scratch pad"))
	// Default tables are not in play with an injected rule set.
	assert.Equal(t, CategoryMisc, c.Classify("song.mp3", ""))
}
