package conversation

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EscalationRules decides when a turn is handed to a human agent.
// Matching is a case-insensitive substring test.
type EscalationRules struct {
	// UserKeywords are distress or request-for-human phrases in the customer message.
	UserKeywords []string `yaml:"user_keywords"`
	// ResponsePhrases are admissions of inability in the generated reply.
	ResponsePhrases []string `yaml:"response_phrases"`
}

// DefaultEscalationRules returns the built-in keyword tables.
func DefaultEscalationRules() EscalationRules {
	return EscalationRules{
		UserKeywords: []string{
			"speak to human", "talk to agent", "real person", "manager", "supervisor",
			"complaint", "lawsuit", "frustrated", "angry", "unacceptable", "ridiculous",
		},
		ResponsePhrases: []string{
			"i cannot help", "i'm unable", "beyond my capabilities",
			"need human assistance", "connect you with",
		},
	}
}

// LoadEscalationRules reads a YAML rule file. Empty lists keep the defaults.
func LoadEscalationRules(path string) (EscalationRules, error) {
	rules := DefaultEscalationRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("conversation: read escalation rules: %w", err)
	}
	var loaded EscalationRules
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return rules, fmt.Errorf("conversation: parse escalation rules: %w", err)
	}
	if len(loaded.UserKeywords) > 0 {
		rules.UserKeywords = loaded.UserKeywords
	}
	if len(loaded.ResponsePhrases) > 0 {
		rules.ResponsePhrases = loaded.ResponsePhrases
	}
	return rules, nil
}

// Check reports whether the turn should escalate and which rule matched,
// formatted as "user:<keyword>" or "response:<phrase>".
func (r EscalationRules) Check(userMessage, response string) (bool, string) {
	user := strings.ToLower(userMessage)
	for _, kw := range r.UserKeywords {
		if kw != "" && strings.Contains(user, strings.ToLower(kw)) {
			return true, "user:" + kw
		}
	}
	reply := strings.ToLower(response)
	for _, phrase := range r.ResponsePhrases {
		if phrase != "" && strings.Contains(reply, strings.ToLower(phrase)) {
			return true, "response:" + phrase
		}
	}
	return false, ""
}
