package conversation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscalationRulesCheck(t *testing.T) {
	rules := DefaultEscalationRules()
	tests := []struct {
		name     string
		user     string
		response string
		want     bool
		trigger  string
	}{
		{"request for human", "I want to SPEAK TO HUMAN now", "Sure.", true, "user:speak to human"},
		{"distress", "This is ridiculous", "Sorry to hear that.", true, "user:ridiculous"},
		{"inability in reply", "Can you fix my bank?", "I'm unable to access bank records.", true, "response:i'm unable"},
		{"handoff phrase", "refund?", "Let me connect you with our team.", true, "response:connect you with"},
		{"plain question", "Where is my order?", "It ships tomorrow.", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, trigger := rules.Check(tt.user, tt.response)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.trigger, trigger)
		})
	}
}

func TestLoadEscalationRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user_keywords:\n  - refund now\n"), 0o600))

	rules, err := LoadEscalationRules(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"refund now"}, rules.UserKeywords)
	assert.Equal(t, DefaultEscalationRules().ResponsePhrases, rules.ResponsePhrases)

	escalate, trigger := rules.Check("I want a Refund Now", "")
	assert.True(t, escalate)
	assert.Equal(t, "user:refund now", trigger)
	escalate, _ = rules.Check("get me a manager", "")
	assert.False(t, escalate)
}

func TestLoadEscalationRulesErrors(t *testing.T) {
	rules, err := LoadEscalationRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEscalationRules(), rules)

	_, err = LoadEscalationRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("user_keywords: [unterminated"), 0o600))
	_, err = LoadEscalationRules(bad)
	assert.Error(t, err)
}
