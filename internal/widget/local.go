package widget

import (
	"strings"
	"unicode"
)

const (
	maxSnippet    = 280
	fallbackReply = "That's a great question! I don't have the details on that here, but feel free to get in touch directly and I'll be happy to help."
)

type intent struct {
	name     string
	keywords []string
	reply    string
	// search looks for a supporting line in the context document
	search bool
}

// topic intents come first so "hi, what are your rates" answers the rate question
var intents = []intent{
	{
		name:     "pricing",
		keywords: []string{"price", "prices", "pricing", "rate", "rates", "cost", "costs", "budget", "quote", "fee", "fees"},
		reply:    "Pricing depends on the scope of the project. Share a few details and I can put together a quote.",
		search:   true,
	},
	{
		name:     "services",
		keywords: []string{"service", "services", "offer", "offering", "hire", "help"},
		reply:    "Here's an overview of what I offer.",
		search:   true,
	},
	{
		name:     "contact",
		keywords: []string{"contact", "email", "reach", "call", "phone", "touch", "linkedin"},
		reply:    "The best way to reach me is through the contact details on this site.",
		search:   true,
	},
	{
		name:     "experience",
		keywords: []string{"experience", "background", "skills", "skill", "worked", "career", "years"},
		reply:    "Here's a bit about my background.",
		search:   true,
	},
	{
		name:     "projects",
		keywords: []string{"project", "projects", "portfolio", "work", "built", "case", "examples"},
		reply:    "Here are some of the projects I've worked on.",
		search:   true,
	},
	{
		name:     "greeting",
		keywords: []string{"hi", "hello", "hey", "greetings", "howdy"},
		reply:    "Hi there! Ask me about my services, projects, experience or how to get in touch.",
	},
	{
		name:     "thanks",
		keywords: []string{"thanks", "thank", "thx", "cheers"},
		reply:    "You're welcome! Let me know if there's anything else you'd like to know.",
	},
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"can": true, "do": true, "does": true, "for": true, "from": true, "have": true,
	"how": true, "i": true, "in": true, "is": true, "it": true, "me": true, "my": true,
	"of": true, "on": true, "or": true, "tell": true, "the": true, "to": true, "what": true,
	"when": true, "where": true, "which": true, "who": true, "why": true, "with": true,
	"you": true, "your": true, "about": true, "any": true, "some": true, "there": true,
}

// LocalResponder answers without a backend, from keyword templates and the
// context document. It never fails and never returns blank text.
type LocalResponder struct{}

// NewLocalResponder creates a responder
func NewLocalResponder() *LocalResponder {
	return &LocalResponder{}
}

// Respond answers question using contextDoc
func (l *LocalResponder) Respond(question, contextDoc string) string {
	words := tokenize(question)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}

	for _, in := range intents {
		if !matchesAny(set, in.keywords) {
			continue
		}
		if in.search {
			if snippet := bestLine(contextDoc, append(keywords(words), in.keywords...)); snippet != "" {
				return in.reply + " " + snippet
			}
		}
		return in.reply
	}

	if snippet := bestLine(contextDoc, keywords(words)); snippet != "" {
		return "Here's what I found: " + snippet
	}
	return fallbackReply
}

func matchesAny(set map[string]bool, words []string) bool {
	for _, w := range words {
		if set[w] {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// keywords drops stop words and very short tokens
func keywords(words []string) []string {
	var out []string
	for _, w := range words {
		if len(w) > 2 && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// bestLine returns the context line sharing the most distinct terms with
// terms. Ties go to the earliest line; no overlap returns "".
func bestLine(doc string, terms []string) string {
	if len(terms) == 0 || doc == FallbackContext {
		return ""
	}

	var (
		best      string
		bestScore int
	)
	for _, line := range strings.Split(doc, "\n") {
		line = cleanLine(line)
		if len(line) < 4 {
			continue
		}

		lineWords := make(map[string]bool)
		for _, w := range tokenize(line) {
			lineWords[w] = true
		}
		seen := make(map[string]bool)
		score := 0
		for _, t := range terms {
			if lineWords[t] && !seen[t] {
				seen[t] = true
				score++
			}
		}
		if score > bestScore {
			best, bestScore = line, score
		}
	}

	if r := []rune(best); len(r) > maxSnippet {
		best = strings.TrimSpace(string(r[:maxSnippet])) + "..."
	}
	return best
}

// cleanLine strips JSON punctuation from a pretty-printed document line
func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.Trim(line, "{}[],")
	line = strings.ReplaceAll(line, `"`, "")
	line = strings.TrimSpace(line)
	if strings.HasSuffix(line, ":") {
		return ""
	}
	return line
}
