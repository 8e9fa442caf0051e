package coaching

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// NoteGenerator produces the short motivational coach note attached to a
// report. Implementations must be safe for concurrent use.
type NoteGenerator interface {
	GenerateNote(ctx context.Context, input EvaluationInput, report *CoachingReport) (string, error)
}

// llmNoteGenerator writes the coach note with an OpenAI model.
type llmNoteGenerator struct {
	client openai.Client
	logger *slog.Logger
}

// NewLLMNoteGenerator creates a note generator backed by the OpenAI API.
func NewLLMNoteGenerator(apiKey string, logger *slog.Logger) NoteGenerator {
	return &llmNoteGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
	}
}

const noteSystemPrompt = `Sei un personal trainer empatico e diretto.
Scrivi una breve nota motivazionale in italiano (massimo 60 parole) per il
tuo cliente, basandoti sui dati della valutazione. Non inventare dati,
non dare consigli medici e mantieni un tono incoraggiante.`

func (g *llmNoteGenerator) GenerateNote(ctx context.Context, input EvaluationInput, report *CoachingReport) (string, error) {
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4o,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(noteSystemPrompt),
			openai.UserMessage(noteUserPrompt(input, report)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	note := strings.TrimSpace(completion.Choices[0].Message.Content)
	if note == "" {
		return "", fmt.Errorf("chat completion returned an empty note")
	}
	return note, nil
}

func noteUserPrompt(input EvaluationInput, report *CoachingReport) string {
	var b strings.Builder
	if input.Profile != nil && input.Profile.Name != "" {
		fmt.Fprintf(&b, "Cliente: %s\n", input.Profile.Name)
	}
	fmt.Fprintf(&b, "Prontezza: %d/100 (%s)\n", report.Readiness.Score, report.Readiness.Label)
	fmt.Fprintf(&b, "Prossima sessione: %s (%s)\n", report.Progression.Label, report.Progression.Decision.Reason)
	for _, pattern := range report.AntiPatterns {
		fmt.Fprintf(&b, "Attenzione: %s\n", pattern.Label)
	}
	return b.String()
}

// coachNote returns the generated note, or the deterministic fallback
// when no generator is configured or generation fails. Note generation is
// best effort and never fails the report.
func (s *Service) coachNote(ctx context.Context, input EvaluationInput, report *CoachingReport) string {
	if s.notes != nil {
		note, err := s.notes.GenerateNote(ctx, input, report)
		if err == nil {
			return note
		}
		s.logger.LogAttrs(ctx, slog.LevelWarn, "coach note generation failed, using fallback",
			slog.Any("error", err))
	}
	return fallbackCoachNote(report)
}

// fallbackCoachNote composes a note from the report without any external
// service.
func fallbackCoachNote(report *CoachingReport) string {
	var parts []string
	parts = append(parts, report.Readiness.Summary)
	if report.Progression.Decision.Reason != "" {
		parts = append(parts, report.Progression.Decision.Reason)
	}
	if len(report.AntiPatterns) > 0 {
		parts = append(parts, fmt.Sprintf("Attenzione: %s.", report.AntiPatterns[0].Label))
	}
	return strings.Join(parts, " ")
}
