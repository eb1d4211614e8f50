package services

import (
	"context"
	"time"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"go.uber.org/zap"
)

const (
	// FallbackComment is shown whenever no comment could be generated.
	FallbackComment = "could not retrieve AI comment"
	// FeedbackContextSize is the number of entries sent with a request,
	// the new one included.
	FeedbackContextSize = 5

	DefaultFeedbackModel       = "gpt-3.5-turbo"
	DefaultFeedbackTemperature = 0.7
)

// FeedbackGenerator turns the newest entries into one short comment.
type FeedbackGenerator struct {
	client      CompletionClient
	prompt      *PromptTemplate
	model       string
	temperature float64
	log         *zap.Logger
}

func NewFeedbackGenerator(client CompletionClient, prompt *PromptTemplate, model string, temperature float64, log *zap.Logger) *FeedbackGenerator {
	if model == "" {
		model = DefaultFeedbackModel
	}
	return &FeedbackGenerator{
		client:      client,
		prompt:      prompt,
		model:       model,
		temperature: temperature,
		log:         log.Named("feedback"),
	}
}

// Generate returns a comment on entries[0], with up to four older entries
// as context. It never fails: any problem yields FallbackComment.
func (g *FeedbackGenerator) Generate(ctx context.Context, entries []models.JournalEntry) string {
	if len(entries) == 0 {
		FeedbackTotal.WithLabelValues("fallback").Inc()
		return FallbackComment
	}
	if len(entries) > FeedbackContextSize {
		entries = entries[:FeedbackContextSize]
	}

	prompt, err := g.prompt.Render(entries)
	if err != nil {
		g.log.Error("failed to render prompt", zap.Error(err))
		FeedbackTotal.WithLabelValues("fallback").Inc()
		return FallbackComment
	}

	start := time.Now()
	comment, err := g.client.Complete(ctx, CompletionRequest{
		Model:       g.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: g.temperature,
	})
	FeedbackDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		g.log.Warn("completion request failed", zap.String("model", g.model), zap.Error(err))
		FeedbackTotal.WithLabelValues("fallback").Inc()
		return FallbackComment
	}

	FeedbackTotal.WithLabelValues("ok").Inc()
	return comment
}
