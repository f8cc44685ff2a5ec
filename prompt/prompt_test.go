package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-context-bridge/config"
)

type stubQuerier struct {
	response string
	err      error
	prompts  []string
}

func (s *stubQuerier) Query(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func newTestAnalyzer(q Querier) *Analyzer {
	return NewAnalyzer(q, config.Default().LLM, config.Default().Analysis)
}

func TestClassifyCodingKeywords(t *testing.T) {
	// Three coding keywords, none from other activities.
	activity := Classify("def import return", nil)
	assert.Equal(t, ActivityCoding, activity)
}

func TestClassifyZeroMatchesIsGeneral(t *testing.T) {
	assert.Equal(t, ActivityGeneral, Classify("xyzzy plugh 12345", nil))
	assert.Equal(t, ActivityGeneral, Classify("", nil))
}

func TestClassifyCurrentTextWeighsDouble(t *testing.T) {
	// History mentions research twice (2 points), current text one coding
	// keyword (2 points): tie resolved by activity order, coding first.
	activity := Classify("python", []string{"research methodology"})
	assert.Equal(t, ActivityCoding, activity)

	// One more research hit in history swings it.
	activity = Classify("python", []string{"research methodology citation"})
	assert.Equal(t, ActivityResearch, activity)
}

func TestClassifyUsesHistory(t *testing.T) {
	activity := Classify("xyzzy", []string{"slide presentation audience"})
	assert.Equal(t, ActivityPresentation, activity)
}

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("Working with the fibonacci implementation from this module")
	assert.Contains(t, keywords, "working")
	assert.Contains(t, keywords, "fibonacci")
	assert.Contains(t, keywords, "implementation")
	assert.Contains(t, keywords, "module")
	// Stop words and short words filtered.
	assert.NotContains(t, keywords, "with")
	assert.NotContains(t, keywords, "from")
	assert.NotContains(t, keywords, "this")
	assert.NotContains(t, keywords, "the")
}

func TestExtractKeywordsCapAndDedup(t *testing.T) {
	var parts []string
	for i := 0; i < 20; i++ {
		parts = append(parts, fmt.Sprintf("keyword%02d", i))
	}
	parts = append(parts, "keyword00")
	keywords := ExtractKeywords(strings.Join(parts, " "))
	assert.Len(t, keywords, 10)
	assert.Equal(t, "keyword00", keywords[0])
}

func TestBuildContextTimeOfDay(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		hour   int
		bucket string
	}{
		{7, "morning"},
		{11, "morning"},
		{12, "afternoon"},
		{17, "afternoon"},
		{18, "evening"},
		{23, "evening"},
		{3, "evening"},
	}
	for _, tc := range cases {
		ctx := BuildContext("some text", nil, time.Minute, day.Add(time.Duration(tc.hour)*time.Hour))
		assert.Equal(t, tc.bucket, ctx.TimeContext, "hour %d", tc.hour)
	}
}

func TestBuildContextConfidenceAndChangeFrequency(t *testing.T) {
	ctx := BuildContext("short", nil, 0, time.Now())
	assert.InDelta(t, 0.24, ctx.ConfidenceLevel, 0.001)
	assert.Equal(t, 0.0, ctx.ChangeFrequency)

	long := strings.Repeat("x", 200)
	ctx = BuildContext(long, []string{"a", "a", "b"}, 0, time.Now())
	assert.Equal(t, 1.0, ctx.ConfidenceLevel)
	assert.InDelta(t, 2.0/3.0, ctx.ChangeFrequency, 0.001)
}

func TestSelectTemplateDecisionTree(t *testing.T) {
	coding := &Context{ActivityType: ActivityCoding, Keywords: []string{"error", "stack"}}
	assert.Contains(t, SelectTemplate(coding), "debug")

	review := &Context{ActivityType: ActivityCoding, Keywords: []string{"merge"}}
	assert.Contains(t, SelectTemplate(review), "code review")

	plain := &Context{ActivityType: ActivityCoding, Keywords: []string{"loop"}}
	assert.Contains(t, SelectTemplate(plain), "coding session")

	research := &Context{ActivityType: ActivityResearch, Keywords: []string{"conclusion"}}
	assert.Contains(t, SelectTemplate(research), "Summarize")

	demo := &Context{ActivityType: ActivityPresentation, Keywords: []string{"demo"}}
	assert.Contains(t, SelectTemplate(demo), "demonstration")

	general := &Context{ActivityType: ActivityGeneral}
	assert.Contains(t, SelectTemplate(general), "screen content")
}

func TestFormatTruncatesCurrentText(t *testing.T) {
	long := strings.Repeat("a", 6000)
	ctx := BuildContext(long, []string{"one", "two", "three", "four"}, 90*time.Second, time.Now())

	formatted := Format(SelectTemplate(ctx), ctx, 5000)

	assert.NotContains(t, formatted, strings.Repeat("a", 5001))
	assert.Contains(t, formatted, strings.Repeat("a", 5000))
	// Last three history entries joined with the arrow separator.
	assert.Contains(t, formatted, "two -> three -> four")
	assert.NotContains(t, formatted, "one ->")
	assert.Contains(t, formatted, "1.5 minutes")
}

func TestAnalyzeContentUsesLLM(t *testing.T) {
	q := &stubQuerier{response: "1. Consider splitting this function into two.\nThe code is on the right track."}
	a := newTestAnalyzer(q)

	text := "def process(data): return [transform(d) for d in data if d.valid]  # python function import"
	resp := a.AnalyzeContent(context.Background(), text, []string{"editing pipeline.py"}, time.Minute)

	assert.Equal(t, TypeAIGenerated, resp.Type)
	assert.Contains(t, resp.MainInsight, "right track")
	require.NotEmpty(t, q.prompts)
	assert.Contains(t, q.prompts[0], "def process")
	assert.Contains(t, resp.ContextTags, "coding")
	require.NotEmpty(t, resp.Suggestions)
	assert.Equal(t, "Consider splitting this function into two.", resp.Suggestions[0])
	assert.NotEmpty(t, resp.FollowUpPrompts)
}

func TestAnalyzeContentFallsBackOnLLMFailure(t *testing.T) {
	q := &stubQuerier{err: errors.New("connection refused")}
	a := newTestAnalyzer(q)

	text := "def process(data): return [transform(d) for d in data]  # long python import line here"
	resp := a.AnalyzeContent(context.Background(), text, nil, time.Minute)

	assert.Equal(t, TypeFallback, resp.Type)
	assert.NotEmpty(t, resp.MainInsight)
	assert.NotEmpty(t, resp.Questions)
	assert.Contains(t, resp.ContextTags, "coding")
}

func TestAnalyzeContentLowConfidenceSkipsLLM(t *testing.T) {
	q := &stubQuerier{response: "should not be used"}
	a := newTestAnalyzer(q)

	// Under 50 chars keeps confidence below the 0.6 threshold.
	resp := a.AnalyzeContent(context.Background(), "short note", nil, time.Minute)

	assert.Equal(t, TypePremade, resp.Type)
	assert.NotEmpty(t, resp.MainInsight)
	assert.Empty(t, q.prompts, "low-confidence context must not hit the LLM")
}

func TestResponseHistoryBounded(t *testing.T) {
	q := &stubQuerier{err: errors.New("offline")}
	a := newTestAnalyzer(q)

	text := strings.Repeat("research methodology citation analysis ", 3)
	for i := 0; i < responseHistoryCap+10; i++ {
		a.AnalyzeContent(context.Background(), text, nil, time.Minute)
	}

	history := a.History()
	assert.Len(t, history, responseHistoryCap)
}

func TestSummary(t *testing.T) {
	q := &stubQuerier{err: errors.New("offline")}
	a := newTestAnalyzer(q)

	assert.Equal(t, 0, a.Summary().TotalAnalyses)

	text := strings.Repeat("research methodology citation analysis ", 3)
	for i := 0; i < 4; i++ {
		a.AnalyzeContent(context.Background(), text, nil, time.Minute)
	}

	summary := a.Summary()
	assert.Equal(t, 4, summary.TotalAnalyses)
	assert.Equal(t, 4, summary.RecentAnalyses)
	assert.InDelta(t, 0.5, summary.AverageConfidence, 0.001)
	assert.Contains(t, summary.TopActivities, "research")
	assert.Equal(t, []string{TypeFallback, TypeFallback, TypeFallback, TypeFallback}, summary.AnalysisTypes)
}

func TestExtractSuggestions(t *testing.T) {
	a := newTestAnalyzer(&stubQuerier{})
	text := strings.Join([]string{
		"Overall this looks reasonable.",
		"1. Add input validation to the parser.",
		"- Cache the compiled regular expression.",
		"You should consider renaming the helper for clarity.",
		"2. x", // too short after cleanup
		"3. Extract the retry loop into its own function for testing.",
	}, "\n")

	suggestions := a.extractSuggestions(text)
	assert.Equal(t, []string{
		"Add input validation to the parser.",
		"Cache the compiled regular expression.",
		"You should consider renaming the helper for clarity.",
	}, suggestions)
}
