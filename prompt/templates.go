package prompt

// Prompt templates per activity, with a second-level key for the specific
// situation inside that activity. Selection between them is a small
// keyword-driven decision tree in SelectTemplate, not another classifier.

type templateKey struct {
	activity ActivityType
	variant  string
}

var promptTemplates = map[templateKey]string{
	{ActivityCoding, "analysis"}: `You are analyzing a developer's screen during a coding session.
Current screen content: "%[1]s"
Recent activity: %[2]s

Analyze the code and provide:
1. What programming task is being worked on
2. Code quality observations
3. Potential improvements or suggestions
4. Next logical steps

Be concise and focus on actionable insights.`,

	{ActivityCoding, "debugging"}: `You are helping debug code shown on screen.
Code content: "%[1]s"
Context: %[3]s

Help identify:
1. Potential bugs or issues
2. Debugging approaches
3. Best practices being followed or missed
4. Testing suggestions

Provide specific, actionable debugging advice.`,

	{ActivityCoding, "code_review"}: `Perform a code review of the displayed code:
Code: "%[1]s"
Session context: %[3]s

Review for:
1. Code structure and organization
2. Performance considerations
3. Security implications
4. Maintainability

Give constructive feedback with specific examples.`,

	{ActivityResearch, "analysis"}: `You are analyzing research content displayed on screen.
Content: "%[1]s"
Research context: %[3]s

Analyze:
1. Research methodology being used
2. Key findings or insights
3. Potential gaps or areas to explore
4. Suggestions for further investigation

Focus on academic rigor and research quality.`,

	{ActivityResearch, "summarization"}: `Summarize the research content shown:
Content: "%[1]s"
Previous context: %[2]s

Provide:
1. Main research themes
2. Key methodologies mentioned
3. Important findings or conclusions
4. Research gaps identified

Keep summary academic and precise.`,

	{ActivityResearch, "critique"}: `Critically analyze the research displayed:
Research content: "%[1]s"
Context: %[3]s

Evaluate:
1. Methodology strengths/weaknesses
2. Evidence quality and sources
3. Logical consistency
4. Potential biases or limitations

Provide balanced, scholarly critique.`,

	{ActivityPresentation, "audience_engagement"}: `You're helping improve a presentation being shared.
Current slide/content: "%[1]s"
Presentation context: %[3]s

Suggest improvements for:
1. Audience engagement
2. Content clarity
3. Visual presentation
4. Flow and structure

Focus on making content more compelling.`,

	{ActivityPresentation, "technical_explanation"}: `Help explain technical content to audience:
Technical content: "%[1]s"
Context: %[3]s

Provide:
1. Simplified explanations for complex concepts
2. Analogies or examples
3. Key takeaways for audience
4. Q&A preparation suggestions

Make technical content accessible.`,

	{ActivityPresentation, "demo_guidance"}: `Provide guidance for live demonstration:
Demo content: "%[1]s"
Session info: %[3]s

Suggest:
1. Key points to highlight
2. Potential audience questions
3. Common demo pitfalls to avoid
4. Ways to keep audience engaged

Focus on smooth demo execution.`,

	{ActivityGeneral, "context_analysis"}: `Analyze the current screen content and provide insights:
Content: "%[1]s"
Recent activity: %[2]s
Session context: %[3]s

Provide:
1. Activity identification
2. Progress assessment
3. Helpful suggestions
4. Relevant questions

Be helpful and context-aware.`,

	{ActivityGeneral, "productivity"}: `Help improve productivity based on screen activity:
Current activity: "%[1]s"
Context: %[3]s

Suggest:
1. Productivity improvements
2. Workflow optimizations
3. Tools or techniques
4. Time management tips

Focus on actionable productivity advice.`,
}

var premadeResponses = map[string][]string{
	"coding_encouragement": {
		"Great progress on the code structure! The modular approach looks solid.",
		"Nice implementation! Consider adding error handling for robustness.",
		"The code organization is clean. Documentation would enhance maintainability.",
		"Good use of design patterns. Unit tests could strengthen this further.",
		"Excellent progress! The logic flow is easy to follow.",
	},
	"debugging_help": {
		"Try adding print statements to trace variable values at key points.",
		"Check for off-by-one errors in loop conditions and array indexing.",
		"Verify input validation and edge case handling.",
		"Use a debugger to step through the problematic section line by line.",
		"Consider rubber duck debugging - explain the code out loud.",
	},
	"research_insights": {
		"This methodology aligns well with established research practices.",
		"Consider expanding the literature review to include recent studies.",
		"The data collection approach looks comprehensive.",
		"Statistical significance testing would strengthen these findings.",
		"Cross-validation with additional datasets could enhance reliability.",
	},
	"presentation_tips": {
		"Great visual layout! Consider adding more white space for clarity.",
		"The content flow is logical. A summary slide would help retention.",
		"Engaging introduction! Interactive elements could boost audience participation.",
		"Clear technical explanation. Examples would make it more relatable.",
		"Strong conclusion! Q&A preparation will handle follow-up questions well.",
	},
	"productivity_boosters": {
		"Consider using keyboard shortcuts to speed up repetitive tasks.",
		"Breaking this into smaller subtasks might improve focus.",
		"A quick break could help maintain concentration levels.",
		"Documentation as you go will save time later.",
		"Version control commits at logical points preserve progress.",
	},
	"learning_support": {
		"You're grasping complex concepts well! Practice will build confidence.",
		"This is a challenging topic - your systematic approach is smart.",
		"Great questions! Curiosity drives effective learning.",
		"Building on fundamentals like this creates strong foundations.",
		"Hands-on practice with examples accelerates understanding.",
	},
}

var guidedQuestions = map[ActivityType][]string{
	ActivityCoding: {
		"What edge cases should this code handle?",
		"How would you test this function?",
		"Are there any performance bottlenecks here?",
		"What happens if the input is malformed?",
		"How could this code be made more maintainable?",
		"What security considerations apply here?",
		"How would you document this for other developers?",
	},
	ActivityResearch: {
		"What are the limitations of this methodology?",
		"How does this relate to existing literature?",
		"What additional data would strengthen this analysis?",
		"Are there alternative explanations for these results?",
		"How generalizable are these findings?",
		"What ethical considerations apply to this research?",
		"What would be the next logical research step?",
	},
	ActivityPresentation: {
		"What questions might the audience ask about this?",
		"How can you make this more engaging?",
		"What's the key takeaway for your audience?",
		"Are there any confusing technical terms to explain?",
		"How does this connect to your main thesis?",
		"What examples would clarify this concept?",
		"How will you handle challenging questions?",
	},
	ActivityGeneral: {
		"What's the most important aspect of what you're working on?",
		"What challenges are you facing with this task?",
		"How does this fit into your bigger goals?",
		"What would success look like here?",
		"What resources might be helpful?",
		"What's your next step after this?",
		"How confident are you in your current approach?",
	},
}

var followUpPrompts = map[ActivityType][]string{
	ActivityCoding: {
		"How would you improve the code structure?",
		"What testing strategy would you recommend?",
		"Are there any security considerations?",
	},
	ActivityResearch: {
		"What are the key limitations of this approach?",
		"How does this compare to alternative methods?",
		"What additional data would be valuable?",
	},
	ActivityPresentation: {
		"How can we make this more engaging for the audience?",
		"What questions should we prepare for?",
		"Are there better ways to visualize this?",
	},
}

// SelectTemplate picks the template for the context: the activity chooses
// the group, and a secondary keyword check routes to the variant.
func SelectTemplate(ctx *Context) string {
	switch ctx.ActivityType {
	case ActivityCoding:
		if ctx.hasKeyword("error", "bug", "debug", "exception") {
			return promptTemplates[templateKey{ActivityCoding, "debugging"}]
		}
		if ctx.hasKeyword("review", "pull", "merge") {
			return promptTemplates[templateKey{ActivityCoding, "code_review"}]
		}
		return promptTemplates[templateKey{ActivityCoding, "analysis"}]
	case ActivityResearch:
		if ctx.hasKeyword("summary", "conclusion", "abstract") {
			return promptTemplates[templateKey{ActivityResearch, "summarization"}]
		}
		if ctx.hasKeyword("critique", "evaluation", "assessment") {
			return promptTemplates[templateKey{ActivityResearch, "critique"}]
		}
		return promptTemplates[templateKey{ActivityResearch, "analysis"}]
	case ActivityPresentation:
		if ctx.hasKeyword("demo", "demonstration", "live") {
			return promptTemplates[templateKey{ActivityPresentation, "demo_guidance"}]
		}
		if ctx.hasKeyword("technical", "complex", "explain") {
			return promptTemplates[templateKey{ActivityPresentation, "technical_explanation"}]
		}
		return promptTemplates[templateKey{ActivityPresentation, "audience_engagement"}]
	default:
		return promptTemplates[templateKey{ActivityGeneral, "context_analysis"}]
	}
}
