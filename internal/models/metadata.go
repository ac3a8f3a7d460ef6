package models

// Metadata length limits in characters.
const (
	MaxNameLength        = 50
	MaxDescriptionLength = 500
	MaxRulesLength       = 1000
)

// GroupMetadata is optional descriptive text set by the group's creator.
type GroupMetadata struct {
	GroupID     uint64
	Name        string `validate:"max=50"`
	Description string `validate:"max=500"`
	Rules       string `validate:"max=1000"`
	UpdatedAt   int64
}
