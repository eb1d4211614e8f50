package services

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
)

const (
	DefaultTone     = "formality level 5"
	DefaultClosing  = "Thank you for writing today! Well done."
	DefaultMaxChars = 140
)

const defaultPromptText = `You are a kind mental coach.
Below are the journal entries recently written by one user.
The first entry is the newest. Comment on this entry in {{.MaxChars}} characters or fewer.
Use the past entries as reference, and tell this person about their positive points, the things they are working hard on and any signs of change, in a friendly and polite tone ({{.Tone}}).
End with "{{.Closing}}".

[This entry]
{{template "entry" .Latest}}

[Past entries]
{{range .Past}}- {{template "entry" .}}
{{end}}`

const entryPromptText = `{{define "entry"}}Today's event: {{.TodayEvent}}
What left an impression: {{.Impression}}
Emotion: {{.Emotion}}
Insight: {{.Insight}}
Next step: {{.NextStep}}{{end}}`

// PromptData is what a prompt template is rendered with.
type PromptData struct {
	Latest   models.EntryFields
	Past     []models.EntryFields
	Tone     string
	Closing  string
	MaxChars int
}

// PromptTemplate renders the feedback instruction. Field values are
// embedded verbatim.
type PromptTemplate struct {
	tmpl     *template.Template
	tone     string
	closing  string
	maxChars int
}

// NewPromptTemplate parses text, or the built-in coach prompt when text is
// empty. Empty tone or closing fall back to the defaults.
func NewPromptTemplate(text, tone, closing string) (*PromptTemplate, error) {
	if strings.TrimSpace(text) == "" {
		text = defaultPromptText
	}
	tmpl, err := template.New("prompt").Parse(entryPromptText)
	if err != nil {
		return nil, err
	}
	if _, err := tmpl.Parse(text); err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}

	if tone == "" {
		tone = DefaultTone
	}
	if closing == "" {
		closing = DefaultClosing
	}
	return &PromptTemplate{tmpl: tmpl, tone: tone, closing: closing, maxChars: DefaultMaxChars}, nil
}

// LoadPromptTemplate reads the template at path, or uses the built-in one
// when path is empty.
func LoadPromptTemplate(path, tone, closing string) (*PromptTemplate, error) {
	var text string
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompt template: %w", err)
		}
		text = string(data)
	}
	return NewPromptTemplate(text, tone, closing)
}

// Render builds the prompt for entries ordered newest first. entries must
// not be empty.
func (p *PromptTemplate) Render(entries []models.JournalEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("render prompt: no entries")
	}

	data := PromptData{
		Latest:   entries[0].EntryFields,
		Tone:     p.tone,
		Closing:  p.closing,
		MaxChars: p.maxChars,
	}
	for _, e := range entries[1:] {
		data.Past = append(data.Past, e.EntryFields)
	}

	var b strings.Builder
	if err := p.tmpl.ExecuteTemplate(&b, "prompt", data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}
