package prompt

import (
	"context"
	"log"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"screen-context-bridge/config"
)

// Analysis types.
const (
	TypeAIGenerated = "ai_generated"
	TypePremade     = "premade"
	TypeFallback    = "fallback"
)

// AnalysisResponse is the result of one analysis call. Immutable after
// creation; retained in a bounded history.
type AnalysisResponse struct {
	Type            string    `json:"analysis_type"`
	Confidence      float64   `json:"confidence"`
	MainInsight     string    `json:"main_insight"`
	Suggestions     []string  `json:"suggestions"`
	Questions       []string  `json:"questions"`
	FollowUpPrompts []string  `json:"follow_up_prompts"`
	ContextTags     []string  `json:"context_tags"`
	Timestamp       time.Time `json:"timestamp"`
}

// SessionSummary aggregates the recent analysis history.
type SessionSummary struct {
	TotalAnalyses     int            `json:"total_analyses"`
	RecentAnalyses    int            `json:"recent_analyses"`
	AverageConfidence float64        `json:"average_confidence"`
	TopActivities     []string       `json:"top_activities"`
	AnalysisTypes     []string       `json:"analysis_types"`
	TagCounts         map[string]int `json:"tag_counts"`
}

const responseHistoryCap = 50

// Querier is the LLM dependency of the analyzer; satisfied by *llm.Client.
type Querier interface {
	Query(ctx context.Context, prompt string) (string, error)
}

// Analyzer turns screen context into AnalysisResponses: it classifies the
// activity, composes a prompt, consults the LLM, and degrades to premade or
// fallback responses when the LLM is unavailable.
type Analyzer struct {
	llm              Querier
	maxContextLength int
	minConfidence    float64
	maxSuggestions   int
	maxQuestions     int

	now  func() time.Time
	rand *rand.Rand

	mu      sync.Mutex
	history []AnalysisResponse
}

func NewAnalyzer(querier Querier, llmCfg config.LLMConfig, analysisCfg config.AnalysisConfig) *Analyzer {
	maxSuggestions := analysisCfg.MaxSuggestions
	if maxSuggestions <= 0 {
		maxSuggestions = 3
	}
	maxQuestions := analysisCfg.MaxQuestions
	if maxQuestions <= 0 {
		maxQuestions = 2
	}
	minConfidence := analysisCfg.MinConfidenceThreshold
	if minConfidence <= 0 {
		minConfidence = 0.6
	}
	maxContextLength := llmCfg.MaxContextLength
	if maxContextLength <= 0 {
		maxContextLength = 5000
	}

	return &Analyzer{
		llm:              querier,
		maxContextLength: maxContextLength,
		minConfidence:    minConfidence,
		maxSuggestions:   maxSuggestions,
		maxQuestions:     maxQuestions,
		now:              time.Now,
		rand:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AnalyzeContent runs the full prompt pipeline over the given screen text.
// It never returns an error: LLM failure degrades to a fallback response
// with a premade insight and guided questions.
func (a *Analyzer) AnalyzeContent(ctx context.Context, currentText string, history []string, sessionDuration time.Duration) AnalysisResponse {
	pc := BuildContext(currentText, history, sessionDuration, a.now())

	premade := a.premadeInsight(pc)

	// Low-confidence context is not worth an LLM round trip.
	if premade != "" && pc.ConfidenceLevel < a.minConfidence {
		return a.record(AnalysisResponse{
			Type:        TypePremade,
			Confidence:  0.8,
			MainInsight: premade,
			Questions:   a.guidedQuestions(pc),
			ContextTags: []string{string(pc.ActivityType), pc.TimeContext},
			Timestamp:   a.now(),
		})
	}

	template := SelectTemplate(pc)
	formatted := Format(template, pc, a.maxContextLength)

	aiText, err := a.llm.Query(ctx, formatted)
	if err != nil {
		log.Printf("Analysis falling back to premade response: %v", err)
		insight := premade
		if insight == "" {
			insight = "Unable to analyze content at this time."
		}
		return a.record(AnalysisResponse{
			Type:        TypeFallback,
			Confidence:  0.5,
			MainInsight: insight,
			Questions:   a.guidedQuestions(pc),
			ContextTags: []string{string(pc.ActivityType)},
			Timestamp:   a.now(),
		})
	}

	tags := []string{string(pc.ActivityType), pc.TimeContext}
	if len(pc.Keywords) > 3 {
		tags = append(tags, pc.Keywords[:3]...)
	} else {
		tags = append(tags, pc.Keywords...)
	}

	return a.record(AnalysisResponse{
		Type:            TypeAIGenerated,
		Confidence:      pc.ConfidenceLevel,
		MainInsight:     aiText,
		Suggestions:     a.extractSuggestions(aiText),
		Questions:       a.guidedQuestions(pc),
		FollowUpPrompts: a.followUps(pc),
		ContextTags:     tags,
		Timestamp:       a.now(),
	})
}

// History returns a copy of the bounded response history, oldest first.
func (a *Analyzer) History() []AnalysisResponse {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AnalysisResponse, len(a.history))
	copy(out, a.history)
	return out
}

// Summary reports totals and top tags over the last 10 responses.
func (a *Analyzer) Summary() SessionSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := SessionSummary{
		TotalAnalyses: len(a.history),
		TagCounts:     map[string]int{},
	}
	if len(a.history) == 0 {
		return summary
	}

	recent := a.history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	summary.RecentAnalyses = len(recent)

	var confidenceSum float64
	for _, r := range recent {
		confidenceSum += r.Confidence
		summary.AnalysisTypes = append(summary.AnalysisTypes, r.Type)
		for _, tag := range r.ContextTags {
			summary.TagCounts[tag]++
		}
	}
	summary.AverageConfidence = confidenceSum / float64(len(recent))

	type tagCount struct {
		tag   string
		count int
	}
	counts := make([]tagCount, 0, len(summary.TagCounts))
	for tag, count := range summary.TagCounts {
		counts = append(counts, tagCount{tag, count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count == counts[j].count {
			return counts[i].tag < counts[j].tag
		}
		return counts[i].count > counts[j].count
	})
	if len(counts) > 5 {
		counts = counts[:5]
	}
	for _, tc := range counts {
		summary.TopActivities = append(summary.TopActivities, tc.tag)
	}

	return summary
}

func (a *Analyzer) record(resp AnalysisResponse) AnalysisResponse {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, resp)
	if len(a.history) > responseHistoryCap {
		a.history = a.history[len(a.history)-responseHistoryCap:]
	}
	return resp
}

func (a *Analyzer) premadeInsight(pc *Context) string {
	var pool []string
	switch {
	case pc.ActivityType == ActivityCoding:
		if pc.hasKeyword("error", "bug", "debug") {
			pool = premadeResponses["debugging_help"]
		} else {
			pool = premadeResponses["coding_encouragement"]
		}
	case pc.ActivityType == ActivityResearch:
		pool = premadeResponses["research_insights"]
	case pc.ActivityType == ActivityPresentation:
		pool = premadeResponses["presentation_tips"]
	case pc.ChangeFrequency < 0.3:
		pool = premadeResponses["productivity_boosters"]
	default:
		pool = premadeResponses["learning_support"]
	}
	if len(pool) == 0 {
		return ""
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return pool[a.rand.Intn(len(pool))]
}

// guidedQuestions ranks the activity's question pool by keyword overlap
// with the context and returns the top maxQuestions.
func (a *Analyzer) guidedQuestions(pc *Context) []string {
	pool, ok := guidedQuestions[pc.ActivityType]
	if !ok {
		pool = guidedQuestions[ActivityGeneral]
	}

	keywordSet := make(map[string]struct{}, len(pc.Keywords))
	for _, kw := range pc.Keywords {
		keywordSet[kw] = struct{}{}
	}

	type ranked struct {
		question  string
		relevance int
		index     int
	}
	var candidates []ranked
	for i, question := range pool {
		relevance := 0
		for _, word := range strings.Fields(strings.ToLower(question)) {
			word = strings.Trim(word, "?.,!")
			if _, ok := keywordSet[word]; ok {
				relevance++
			}
		}
		if relevance > 0 || len(candidates) < 2 {
			candidates = append(candidates, ranked{question, relevance, i})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].relevance > candidates[j].relevance
	})
	if len(candidates) > a.maxQuestions {
		candidates = candidates[:a.maxQuestions]
	}

	questions := make([]string, 0, len(candidates))
	for _, c := range candidates {
		questions = append(questions, c.question)
	}
	return questions
}

var (
	numberedLine = regexp.MustCompile(`^\d+\.\s*`)
	bulletLine   = regexp.MustCompile(`^[-•]\s*`)
)

// extractSuggestions pulls actionable lines (numbered, bulleted, or
// recommendation-flavored) out of the model's free text, capped at
// maxSuggestions.
func (a *Analyzer) extractSuggestions(aiText string) []string {
	var suggestions []string
	for _, line := range strings.Split(aiText, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)

		if !numberedLine.MatchString(line) && !bulletLine.MatchString(line) &&
			!strings.Contains(lower, "suggest") &&
			!strings.Contains(lower, "recommend") &&
			!strings.Contains(lower, "consider") {
			continue
		}

		suggestion := numberedLine.ReplaceAllString(line, "")
		suggestion = bulletLine.ReplaceAllString(suggestion, "")
		if len(suggestion) > 10 && len(suggestion) < 200 {
			suggestions = append(suggestions, suggestion)
		}
		if len(suggestions) >= a.maxSuggestions {
			break
		}
	}
	return suggestions
}

func (a *Analyzer) followUps(pc *Context) []string {
	followUps := append([]string{}, followUpPrompts[pc.ActivityType]...)

	if pc.ConfidenceLevel < 0.7 {
		followUps = append(followUps, "Can you provide more details about what you're working on?")
	}
	if pc.ChangeFrequency > 0.7 {
		followUps = append(followUps, "You seem to be switching between tasks - need help prioritizing?")
	}

	if len(followUps) > 3 {
		followUps = followUps[:3]
	}
	return followUps
}
