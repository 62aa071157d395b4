package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuleSet_RejectsEmptyKeyword(t *testing.T) {
	_, err := NewRuleSet(nil, []KeywordRule{
		{Category: CategoryNotes, Keywords: []string{"todo", "  "}},
	}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty keyword")
}

func TestNewRuleSet_RejectsUnknownCategory(t *testing.T) {
	_, err := NewRuleSet(map[string]Category{".foo": Category("Nonsense")}, nil, nil, nil)
	require.Error(t, err)

	_, err = NewRuleSet(nil, []KeywordRule{
		{Category: Category("Nonsense"), Keywords: []string{"x"}},
	}, nil, nil)
	require.Error(t, err)
}

func TestNewRuleSet_RejectsOverlappingExtensionLists(t *testing.T) {
	_, err := NewRuleSet(nil, nil, []string{".pdf"}, []string{".pdf"})
	require.Error(t, err)
}

func TestNewRuleSet_NormalizesExtensions(t *testing.T) {
	rs, err := NewRuleSet(map[string]Category{"MP3": CategoryAudio}, nil, []string{"TXT"}, nil)
	require.NoError(t, err)

	cat, ok := rs.HardRule("/x/song.mp3")
	require.True(t, ok)
	assert.Equal(t, CategoryAudio, cat)
	assert.Equal(t, ExtText, rs.ExtensionClass("a.TXT"))
}

func TestRuleSet_ExtensionClass(t *testing.T) {
	rs := DefaultRuleSet()

	assert.Equal(t, ExtText, rs.ExtensionClass("notes.md"))
	assert.Equal(t, ExtOCRCandidate, rs.ExtensionClass("scan.PDF"))
	assert.Equal(t, ExtOCRCandidate, rs.ExtensionClass("photo.jpeg"))
	assert.Equal(t, ExtAudioVideoArchive, rs.ExtensionClass("a.zip"))
	assert.Equal(t, ExtOther, rs.ExtensionClass("mystery.xyz"))
	assert.Equal(t, ExtOther, rs.ExtensionClass("no-extension"))
}

func TestDefaultRuleSet_KeywordOrder(t *testing.T) {
	rules := DefaultRuleSet().KeywordRules()
	require.NotEmpty(t, rules)

	var order []Category
	for _, r := range rules {
		order = append(order, r.Category)
		require.NotEmpty(t, r.Keywords, r.Category)
	}

	assert.Equal(t, []Category{
		CategoryTrainTickets,
		CategoryInvoices,
		CategoryMarksheets,
		CategoryIDProofs,
		CategoryCredentials,
		CategoryNotes,
	}, order)
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryInvoices, ParseCategory("Invoices"))
	assert.Equal(t, Category(""), ParseCategory("invoices"))
	assert.Equal(t, Category(""), ParseCategory("Unknown"))
}
