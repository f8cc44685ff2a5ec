package prompt

import "strings"

// ActivityType labels what the user appears to be doing on screen.
type ActivityType string

const (
	ActivityCoding        ActivityType = "coding"
	ActivityResearch      ActivityType = "research"
	ActivityPresentation  ActivityType = "presentation"
	ActivityDocumentation ActivityType = "documentation"
	ActivityCommunication ActivityType = "communication"
	ActivityTerminal      ActivityType = "terminal"
	ActivityGeneral       ActivityType = "general"
)

// activityOrder fixes the iteration order for scoring ties: the
// first-listed activity with the top score wins.
var activityOrder = []ActivityType{
	ActivityCoding,
	ActivityResearch,
	ActivityPresentation,
	ActivityDocumentation,
	ActivityCommunication,
	ActivityTerminal,
}

var activityKeywords = map[ActivityType][]string{
	ActivityCoding: {
		"class", "function", "def", "import", "return", "if", "for", "while",
		"git", "commit", "python", "javascript", "html",
	},
	ActivityResearch: {
		"research", "study", "analysis", "paper", "journal", "article",
		"citation", "reference", "methodology",
	},
	ActivityPresentation: {
		"slide", "presentation", "demo", "showcase", "audience",
		"screen share", "discord",
	},
	ActivityDocumentation: {
		"readme", "docs", "documentation", "guide", "tutorial", "manual", "wiki",
	},
	ActivityCommunication: {
		"email", "chat", "message", "discord", "slack", "teams", "meeting",
	},
	ActivityTerminal: {
		"terminal", "command", "bash", "shell", "linux", "sudo", "apt", "install",
	},
}

// Classify scores each activity by keyword hits: one point per hit in the
// history, two per hit in the current text. The highest nonzero score wins;
// ties go to the first activity in the configured order. All zeros means
// general.
func Classify(text string, history []string) ActivityType {
	textLower := strings.ToLower(text)
	historyLower := strings.ToLower(strings.Join(history, " "))

	best := ActivityGeneral
	bestScore := 0
	for _, activity := range activityOrder {
		score := 0
		for _, keyword := range activityKeywords[activity] {
			if strings.Contains(historyLower, keyword) {
				score++
			}
			if strings.Contains(textLower, keyword) {
				score += 2
			}
		}
		if score > bestScore {
			best = activity
			bestScore = score
		}
	}
	return best
}

var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {},
	"they": {}, "have": {}, "will": {}, "been": {},
}

const maxKeywords = 10

// ExtractKeywords pulls up to 10 distinctive words (>3 chars, stop words
// removed) out of the text, in order of first appearance.
func ExtractKeywords(text string) []string {
	var keywords []string
	seen := make(map[string]struct{})

	word := strings.Builder{}
	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		word.Reset()
		if len(w) <= 3 {
			return
		}
		if _, stop := stopWords[w]; stop {
			return
		}
		if _, dup := seen[w]; dup {
			return
		}
		seen[w] = struct{}{}
		if len(keywords) < maxKeywords {
			keywords = append(keywords, w)
		}
	}

	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return keywords
}
