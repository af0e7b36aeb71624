package conversation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wolfman30/support-ai-platform/internal/llm"
)

const (
	// promptHistoryTurns is how many turns are summarized inside the system prompt.
	promptHistoryTurns = 5
	// promptHistoryChars truncates each summarized turn.
	promptHistoryChars = 200
	// messageWindow is how many history turns are replayed verbatim.
	messageWindow = 10

	noContextText = "No additional context available."
	noHistoryText = "No previous conversation."
)

// DefaultSystemPrompt is the assistant persona. {context} and {history} are replaced per turn.
const DefaultSystemPrompt = `You are "Support AI", the customer support assistant of an online store. Be warm, clear and helpful.

You can help customers with:
1. Order tracking and delivery questions
2. Returns, refunds and exchanges
3. Product details and availability
4. Shipping options and timelines
5. Account and payment questions

GUIDELINES:
- Keep answers short and easy to act on.
- Only state order details that appear in the context below. Never invent order data.
- If an order id is needed and missing, ask the customer for it (it looks like ORD-XXXXX).
- When you cannot solve the problem, say so and offer to connect the customer with a human agent.
- Stay polite even when the customer is upset, and acknowledge their frustration.
- Do not request passwords or full card numbers.

CONTEXT FROM KNOWLEDGE BASE:
{context}

CONVERSATION HISTORY:
{history}

Answer as a representative of the store: accurate, friendly and helpful.`

// BuildSystemPrompt fills the template with the retrieved context and a short history summary.
func BuildSystemPrompt(template, contextText string, history []Message) string {
	if strings.TrimSpace(contextText) == "" {
		contextText = noContextText
	}
	return strings.NewReplacer("{context}", contextText, "{history}", summarizeHistory(history)).Replace(template)
}

// BuildMessages returns the completion transcript: the last messageWindow
// history turns followed by the new user message. System turns are skipped.
func BuildMessages(history []Message, userMessage string) []llm.Message {
	if len(history) > messageWindow {
		history = history[len(history)-messageWindow:]
	}
	out := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case RoleUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case RoleAssistant:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	return append(out, llm.Message{Role: llm.RoleUser, Content: userMessage})
}

func summarizeHistory(history []Message) string {
	if len(history) == 0 {
		return noHistoryText
	}
	if len(history) > promptHistoryTurns {
		history = history[len(history)-promptHistoryTurns:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, capitalize(string(m.Role))+": "+truncateRunes(m.Content, promptHistoryChars))
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
