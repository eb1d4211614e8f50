package services

import (
	"context"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"go.uber.org/zap"
)

// Journal handles entry submissions.
type Journal struct {
	store    EntryStore
	feedback *FeedbackGenerator
	log      *zap.Logger
}

func NewJournal(store EntryStore, feedback *FeedbackGenerator, log *zap.Logger) *Journal {
	return &Journal{store: store, feedback: feedback, log: log.Named("journal")}
}

// Submit validates and stores fields for identity, then asks for a comment
// on the new entry. The comment is requested only after the store has
// acknowledged the write.
func (j *Journal) Submit(ctx context.Context, identity *models.Identity, fields models.EntryFields) (*models.SubmitResult, error) {
	if identity == nil || identity.ID == "" {
		return nil, ErrNoIdentity
	}
	if err := fields.Validate(); err != nil {
		SubmissionsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	prior, err := j.store.Recent(ctx, identity.ID, FeedbackContextSize-1)
	if err != nil {
		j.log.Warn("failed to load prior entries", zap.String("user_id", identity.ID), zap.Error(err))
		prior = nil
	}

	entry, err := j.store.Append(ctx, identity.ID, fields)
	if err != nil {
		SubmissionsTotal.WithLabelValues("store_error").Inc()
		j.log.Error("failed to save journal entry", zap.String("user_id", identity.ID), zap.Error(err))
		return nil, &StoreWriteError{Err: err}
	}
	SubmissionsTotal.WithLabelValues("ok").Inc()

	latest := append([]models.JournalEntry{*entry}, prior...)
	comment := j.feedback.Generate(ctx, latest)

	return &models.SubmitResult{Entry: entry, Feedback: comment}, nil
}
