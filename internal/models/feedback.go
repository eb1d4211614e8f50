package models

// SubmitResult is returned once an entry has been stored and commented on.
// Feedback is transient and never persisted.
type SubmitResult struct {
	Entry    *JournalEntry `json:"record"`
	Feedback string        `json:"feedback"`
}
