package domain

import "strings"

// Category is the fixed five-value classification enum. The classifier
// is an open string source; everything it returns is normalized onto
// this set before persisting.
type Category string

const (
	CategoryInterested    Category = "Interested"
	CategoryMeetingBooked Category = "Meeting Booked"
	CategoryNotInterested Category = "Not Interested"
	CategorySpam          Category = "Spam"
	CategoryOutOfOffice   Category = "Out of Office"
)

// DefaultCategory is persisted when the classifier output cannot be
// mapped onto the enum, with low confidence so a re-run can overwrite.
const DefaultCategory = CategoryNotInterested

// Categories lists every valid category value.
func Categories() []Category {
	return []Category{
		CategoryInterested,
		CategoryMeetingBooked,
		CategoryNotInterested,
		CategorySpam,
		CategoryOutOfOffice,
	}
}

// IsValid reports whether c is one of the enum values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryInterested, CategoryMeetingBooked, CategoryNotInterested,
		CategorySpam, CategoryOutOfOffice:
		return true
	}
	return false
}

// ParseCategory maps free-form classifier output onto the enum.
// Matching is case-insensitive and tolerant of underscores/hyphens.
// The second return is false when the label had to fall back.
func ParseCategory(label string) (Category, bool) {
	norm := strings.ToLower(strings.TrimSpace(label))
	norm = strings.ReplaceAll(norm, "_", " ")
	norm = strings.ReplaceAll(norm, "-", " ")
	norm = strings.Join(strings.Fields(norm), " ")

	switch norm {
	case "interested":
		return CategoryInterested, true
	case "meeting booked", "meeting":
		return CategoryMeetingBooked, true
	case "not interested", "uninterested":
		return CategoryNotInterested, true
	case "spam", "junk":
		return CategorySpam, true
	case "out of office", "ooo", "out of the office":
		return CategoryOutOfOffice, true
	}
	return DefaultCategory, false
}

// Classification is one classifier verdict for a message.
type Classification struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning,omitempty"`
}
