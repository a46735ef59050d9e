package app

import (
	"context"
	"fmt"
	"strings"

	"juhd/internal/domain"

	"go.uber.org/zap"
)

// Fallback sentences shown instead of a generated briefing.
const (
	BriefingEmptyFallback = "Could not generate briefing. Keep pushing!"
	BriefingErrorFallback = "Error reaching the AI service. Your effort is still seen."
)

// BriefingInput is the progress summary a briefing is written about.
type BriefingInput struct {
	Week            int
	WeeklyScore     float64
	OverallProgress float64
	GoalNames       []string
}

// BriefingService writes a short motivational briefing from progress data.
type BriefingService struct {
	gen domain.TextGenerator
	log *zap.Logger
}

// NewBriefingService creates a BriefingService. gen may be nil, in which
// case every briefing is the error fallback.
func NewBriefingService(gen domain.TextGenerator, log *zap.Logger) *BriefingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &BriefingService{gen: gen, log: log}
}

// Generate returns a briefing. It never fails: empty output and service
// errors degrade to fixed fallback sentences.
func (s *BriefingService) Generate(ctx context.Context, in BriefingInput) string {
	if s.gen == nil {
		return BriefingErrorFallback
	}
	text, err := s.gen.GenerateText(ctx, BriefingPrompt(in))
	if err != nil {
		s.log.Warn("briefing generation failed", zap.Int("week", in.Week), zap.Error(err))
		return BriefingErrorFallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return BriefingEmptyFallback
	}
	return text
}

// BriefingPrompt renders the instruction sent to the text generator.
func BriefingPrompt(in BriefingInput) string {
	goals := "none yet"
	if len(in.GoalNames) > 0 {
		goals = strings.Join(in.GoalNames, ", ")
	}
	var b strings.Builder
	b.WriteString("You are an elite performance coach using the 12 Week Year methodology.\n")
	b.WriteString("Write a short, punchy executive briefing for the user based on their progress.\n\n")
	fmt.Fprintf(&b, "Current week: %d of %d\n", in.Week, domain.CycleWeeks)
	fmt.Fprintf(&b, "Weekly execution score: %.0f%%\n", in.WeeklyScore)
	fmt.Fprintf(&b, "Overall cycle progress: %.0f%%\n", in.OverallProgress)
	fmt.Fprintf(&b, "Goals: %s\n\n", goals)
	b.WriteString("An execution score of 85% or higher is the target. ")
	b.WriteString("Be direct, acknowledge what is working, name one thing to focus on next, ")
	b.WriteString("and keep it under 150 words.")
	return b.String()
}
