package models

import "fmt"

// Category is one of the fixed business labels emails are sorted into.
// The set is closed and ordered; everything else in the system references
// categories by value and rejects unknown ones at the boundary.
type Category string

const (
	CategorySupport    Category = "Support"
	CategorySales      Category = "Sales"
	CategoryComplaints Category = "Complaints"
	CategoryFeedback   Category = "Feedback"
	CategoryGeneral    Category = "General"
)

// categories holds the taxonomy in its fixed order. The order matters:
// prediction ties are broken in favor of the lowest index.
var categories = []Category{
	CategorySupport,
	CategorySales,
	CategoryComplaints,
	CategoryFeedback,
	CategoryGeneral,
}

// Categories returns the full taxonomy in its fixed order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory validates a free-text label against the taxonomy.
func ParseCategory(s string) (Category, error) {
	for _, c := range categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Index returns the position of the category in the taxonomy, or -1 for
// labels outside of it.
func (c Category) Index() int {
	for i, known := range categories {
		if known == c {
			return i
		}
	}
	return -1
}

func (c Category) Valid() bool {
	return c.Index() >= 0
}
