package models

import (
	"fmt"
	"strings"
	"time"
)

// EntryFields holds the five free-text answers of a daily reflection.
type EntryFields struct {
	TodayEvent string `bson:"todayEvent" json:"todayEvent"`
	Impression string `bson:"impression" json:"impression"`
	Emotion    string `bson:"emotion" json:"emotion"`
	Insight    string `bson:"insight" json:"insight"`
	NextStep   string `bson:"nextStep" json:"nextStep"`
}

// FieldError reports a required entry field that was left blank.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Validate checks that every field has non-whitespace content.
// Values are never modified; what is stored is exactly what was submitted.
func (f EntryFields) Validate() error {
	for _, field := range []struct {
		name  string
		value string
	}{
		{"todayEvent", f.TodayEvent},
		{"impression", f.Impression},
		{"emotion", f.Emotion},
		{"insight", f.Insight},
		{"nextStep", f.NextStep},
	} {
		if strings.TrimSpace(field.value) == "" {
			return &FieldError{Field: field.name}
		}
	}
	return nil
}

// JournalEntry is one day's reflection as stored under its owner's namespace.
// Entries are write-once.
type JournalEntry struct {
	ID      string `json:"id"`
	OwnerID string `json:"-"`
	EntryFields
	Timestamp time.Time `json:"timestamp"`
}

// Namespace returns the per-identity location of journal entries.
func Namespace(ownerID string) string {
	return "users/" + ownerID + "/records"
}
