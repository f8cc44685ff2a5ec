package prompt

import (
	"fmt"
	"strings"
	"time"
)

// Context carries everything prompt composition needs about the current
// screen session.
type Context struct {
	CurrentText     string
	TextHistory     []string
	ActivityType    ActivityType
	ConfidenceLevel float64
	TimeContext     string
	SessionDuration time.Duration
	ChangeFrequency float64
	Keywords        []string
}

func (c *Context) hasKeyword(words ...string) bool {
	for _, kw := range c.Keywords {
		for _, w := range words {
			if kw == w {
				return true
			}
		}
	}
	return false
}

// BuildContext assembles a Context from the current text, recent history and
// session duration. now supplies the wall clock for the time-of-day bucket.
func BuildContext(currentText string, history []string, sessionDuration time.Duration, now time.Time) *Context {
	if len(history) > 10 {
		history = history[len(history)-10:]
	}

	// Confidence is a length heuristic, not a calibrated probability.
	confidence := float64(len(currentText))/100*0.8 + 0.2
	if confidence > 1.0 {
		confidence = 1.0
	}

	recent := history
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	changeFreq := 0.0
	if len(recent) > 0 {
		unique := make(map[string]struct{}, len(recent))
		for _, text := range recent {
			unique[text] = struct{}{}
		}
		changeFreq = float64(len(unique)) / float64(len(recent))
	}

	return &Context{
		CurrentText:     currentText,
		TextHistory:     history,
		ActivityType:    Classify(currentText, history),
		ConfidenceLevel: confidence,
		TimeContext:     timeOfDay(now),
		SessionDuration: sessionDuration,
		ChangeFrequency: changeFreq,
		Keywords:        ExtractKeywords(currentText),
	}
}

func timeOfDay(now time.Time) string {
	switch hour := now.Hour(); {
	case hour >= 6 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

// Format interpolates a template with the context. The current text is
// truncated to maxTextLength before interpolation so no template can blow
// past the model's practical context size.
func Format(template string, ctx *Context, maxTextLength int) string {
	current := ctx.CurrentText
	if maxTextLength > 0 && len(current) > maxTextLength {
		current = current[:maxTextLength]
	}

	recentActivity := "No recent activity"
	if len(ctx.TextHistory) > 0 {
		recent := ctx.TextHistory
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		recentActivity = strings.Join(recent, " -> ")
	}

	topKeywords := ctx.Keywords
	if len(topKeywords) > 5 {
		topKeywords = topKeywords[:5]
	}
	contextBlock := fmt.Sprintf(
		"{activity: %s, time: %s, session: %.1f minutes, confidence: %.0f%%, keywords: %s}",
		ctx.ActivityType,
		ctx.TimeContext,
		ctx.SessionDuration.Minutes(),
		ctx.ConfidenceLevel*100,
		strings.Join(topKeywords, ", "),
	)

	return fmt.Sprintf(template, current, recentActivity, contextBlock)
}
