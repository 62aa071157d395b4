// Package classify implements the heuristic file-classification engine:
// extension hard rules that resolve a file unconditionally, followed by an
// ordered keyword scan over extracted content. Rule tables are immutable
// once built, so a Classifier is safe for concurrent use.
package classify

// Category is a semantic file category.
type Category string

const (
	CategoryDocuments    Category = "Documents"
	CategoryImages       Category = "Images"
	CategoryAudio        Category = "Audio"
	CategoryVideo        Category = "Video"
	CategoryArchives     Category = "Archives"
	CategoryCode         Category = "Code"
	CategoryFinancials   Category = "Financials"
	CategoryScreenshots  Category = "Screenshots"
	CategoryInvoices     Category = "Invoices"
	CategoryTrainTickets Category = "TrainTickets"
	CategoryIDProofs     Category = "IDProofs"
	CategoryMarksheets   Category = "Marksheets"
	CategoryCredentials  Category = "Credentials"
	CategoryNotes        Category = "Notes"
	CategoryResume       Category = "Resume"

	// CategoryMisc is the default for files no rule or override resolves.
	CategoryMisc Category = "Misc"
)

// AllCategories lists every known category.
var AllCategories = []Category{
	CategoryDocuments,
	CategoryImages,
	CategoryAudio,
	CategoryVideo,
	CategoryArchives,
	CategoryCode,
	CategoryFinancials,
	CategoryScreenshots,
	CategoryInvoices,
	CategoryTrainTickets,
	CategoryIDProofs,
	CategoryMarksheets,
	CategoryCredentials,
	CategoryNotes,
	CategoryResume,
	CategoryMisc,
}

// IsValid checks if the category is a known category.
func (c Category) IsValid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// ParseCategory converts a string to a Category, returning empty for
// unknown values.
func ParseCategory(s string) Category {
	c := Category(s)
	if c.IsValid() {
		return c
	}
	return ""
}

// ExtensionClass groups file extensions by how their content is obtained.
type ExtensionClass int

const (
	// ExtOther covers unknown extensions; no content is extracted.
	ExtOther ExtensionClass = iota

	// ExtText covers extensions read directly as UTF-8 text.
	ExtText

	// ExtOCRCandidate covers image and PDF extensions routed to OCR.
	ExtOCRCandidate

	// ExtAudioVideoArchive covers extensions resolved by a hard rule;
	// their content is never inspected.
	ExtAudioVideoArchive
)

// String returns a human-readable name for the extension class.
func (e ExtensionClass) String() string {
	switch e {
	case ExtText:
		return "text"
	case ExtOCRCandidate:
		return "ocr-candidate"
	case ExtAudioVideoArchive:
		return "audio-video-archive"
	default:
		return "other"
	}
}
