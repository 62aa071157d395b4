package classify

import (
	"fmt"
	"path/filepath"
	"strings"
)

// KeywordRule binds a category to the keywords that select it. Rules are
// evaluated in order; the first rule with any substring match wins, so the
// position of a rule in the list is its precedence.
type KeywordRule struct {
	Category Category
	Keywords []string
}

// RuleSet holds the immutable classification tables: extension hard rules,
// ordered keyword rules, and the extension allow-lists that drive content
// extraction. Build one with NewRuleSet or DefaultRuleSet and share it.
type RuleSet struct {
	hardRules    map[string]Category
	keywordRules []KeywordRule
	textExts     map[string]bool
	ocrExts      map[string]bool
}

// NewRuleSet validates and builds a RuleSet. Extensions are normalized to
// lower case with a leading dot. Empty keywords are rejected: an empty
// string matches any non-empty content and would turn its category into a
// silent catch-all ahead of Misc.
func NewRuleSet(hard map[string]Category, keyword []KeywordRule, textExts, ocrExts []string) (*RuleSet, error) {
	rs := &RuleSet{
		hardRules: make(map[string]Category, len(hard)),
		textExts:  make(map[string]bool, len(textExts)),
		ocrExts:   make(map[string]bool, len(ocrExts)),
	}

	for ext, cat := range hard {
		if !cat.IsValid() {
			return nil, fmt.Errorf("hard rule %q: unknown category %q", ext, cat)
		}
		rs.hardRules[normalizeExt(ext)] = cat
	}

	for _, rule := range keyword {
		if !rule.Category.IsValid() {
			return nil, fmt.Errorf("keyword rule: unknown category %q", rule.Category)
		}
		if len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("keyword rule %s: no keywords", rule.Category)
		}
		normalized := make([]string, len(rule.Keywords))
		for i, kw := range rule.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				return nil, fmt.Errorf("keyword rule %s: empty keyword", rule.Category)
			}
			normalized[i] = kw
		}
		rs.keywordRules = append(rs.keywordRules, KeywordRule{
			Category: rule.Category,
			Keywords: normalized,
		})
	}

	for _, ext := range textExts {
		rs.textExts[normalizeExt(ext)] = true
	}
	for _, ext := range ocrExts {
		ext = normalizeExt(ext)
		if rs.textExts[ext] {
			return nil, fmt.Errorf("extension %q listed as both text and ocr", ext)
		}
		rs.ocrExts[ext] = true
	}

	return rs, nil
}

// Tables is the raw material for a RuleSet, exported so configuration can
// start from the defaults and replace individual sections.
type Tables struct {
	HardRules    map[string]Category
	KeywordRules []KeywordRule
	TextExts     []string
	OCRExts      []string
}

// DefaultTables returns copies of the built-in tables.
func DefaultTables() Tables {
	return Tables{
		HardRules:    defaultHardRules(),
		KeywordRules: defaultKeywordRules(),
		TextExts:     defaultTextExts(),
		OCRExts:      defaultOCRExts(),
	}
}

// DefaultRuleSet returns the built-in classification tables.
func DefaultRuleSet() *RuleSet {
	rs, err := NewRuleSet(defaultHardRules(), defaultKeywordRules(), defaultTextExts(), defaultOCRExts())
	if err != nil {
		// Defaults are validated by tests; a failure here is a programming error.
		panic(fmt.Sprintf("invalid default rule set: %v", err))
	}
	return rs
}

// HardRule returns the category fixed for the path's extension, if any.
// Hard-rule categories are final: they short-circuit the keyword phase and
// are immune to escalation overrides.
func (rs *RuleSet) HardRule(path string) (Category, bool) {
	cat, ok := rs.hardRules[Ext(path)]
	return cat, ok
}

// KeywordRules returns the ordered keyword rules.
func (rs *RuleSet) KeywordRules() []KeywordRule {
	return rs.keywordRules
}

// ExtensionClass reports how content for the path's extension is obtained.
func (rs *RuleSet) ExtensionClass(path string) ExtensionClass {
	ext := Ext(path)
	switch {
	case rs.hardRules[ext] != "":
		return ExtAudioVideoArchive
	case rs.textExts[ext]:
		return ExtText
	case rs.ocrExts[ext]:
		return ExtOCRCandidate
	default:
		return ExtOther
	}
}

// Ext returns the lower-cased extension of path, including the dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func defaultHardRules() map[string]Category {
	return map[string]Category{
		".mp3":  CategoryAudio,
		".wav":  CategoryAudio,
		".flac": CategoryAudio,
		".aac":  CategoryAudio,
		".ogg":  CategoryAudio,
		".m4a":  CategoryAudio,

		".mp4":  CategoryVideo,
		".mov":  CategoryVideo,
		".avi":  CategoryVideo,
		".mkv":  CategoryVideo,
		".webm": CategoryVideo,

		".zip": CategoryArchives,
		".tar": CategoryArchives,
		".gz":  CategoryArchives,
		".bz2": CategoryArchives,
		".xz":  CategoryArchives,
		".rar": CategoryArchives,
		".7z":  CategoryArchives,

		// Binary spreadsheet formats carry no extractable text here, so the
		// extension is the strongest signal available.
		".xls":  CategoryFinancials,
		".xlsx": CategoryFinancials,

		".py":  CategoryCode,
		".c":   CategoryCode,
		".cpp": CategoryCode,
		".h":   CategoryCode,
		".go":  CategoryCode,
		".js":  CategoryCode,
		".ts":  CategoryCode,
		".css": CategoryCode,
	}
}

// defaultKeywordRules returns the ordered keyword tables. Precedence:
// TrainTickets > Invoices > Marksheets > IDProofs > Credentials > Notes.
// Matching is case-insensitive substring containment.
func defaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{
			Category: CategoryTrainTickets,
			Keywords: []string{"irctc", "pnr", "train ticket", "boarding station", "railway reservation"},
		},
		{
			Category: CategoryInvoices,
			Keywords: []string{"invoice", "gstin", "gst", "amount due", "bill to", "billed to", "total payable"},
		},
		{
			Category: CategoryMarksheets,
			Keywords: []string{"marksheet", "mark sheet", "grade sheet", "cgpa", "roll no", "examination result"},
		},
		{
			Category: CategoryIDProofs,
			Keywords: []string{"aadhaar", "aadhar", "passport no", "pan card", "permanent account number", "voter id", "government of india"},
		},
		{
			Category: CategoryCredentials,
			Keywords: []string{"password", "passwd", "api key", "api_key", "secret key", "access token", "private key"},
		},
		{
			Category: CategoryNotes,
			Keywords: []string{"meeting notes", "minutes of meeting", "agenda", "todo", "to-do", "brainstorm"},
		},
	}
}

func defaultTextExts() []string {
	return []string{".txt", ".md", ".csv", ".json", ".log", ".yaml", ".yml", ".xml", ".html", ".htm"}
}

func defaultOCRExts() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp", ".pdf"}
}
