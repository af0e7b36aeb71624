package intent

import "strings"

// MaxSuggestedActions caps the quick-reply actions returned with a chat response.
const MaxSuggestedActions = 3

// Action is a quick-reply suggestion rendered by chat clients.
type Action struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

type actionRule struct {
	triggers []string
	action   Action
}

var actionRules = []actionRule{
	{
		triggers: []string{"order", "track", "status"},
		action:   Action{Label: "Track Another Order", Action: "track_order"},
	},
	{
		triggers: []string{"return", "exchange", "refund"},
		action:   Action{Label: "View Return Policy", Action: "show_return_policy"},
	},
	{
		triggers: []string{"ship", "deliver", "when"},
		action:   Action{Label: "Shipping Info", Action: "show_shipping_info"},
	},
}

var defaultActions = []Action{
	{Label: "Track Order", Action: "track_order"},
	{Label: "FAQs", Action: "show_faqs"},
}

// SuggestActions maps keywords in the user's message to follow-up actions.
// Results are deduplicated by action and capped at MaxSuggestedActions.
func SuggestActions(text string) []Action {
	lower := strings.ToLower(text)
	seen := make(map[string]struct{}, len(actionRules))
	var out []Action
	for _, rule := range actionRules {
		if !containsAny(lower, rule.triggers) {
			continue
		}
		if _, ok := seen[rule.action.Action]; ok {
			continue
		}
		seen[rule.action.Action] = struct{}{}
		out = append(out, rule.action)
		if len(out) == MaxSuggestedActions {
			break
		}
	}
	if len(out) == 0 {
		out = append(out, defaultActions...)
	}
	return out
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
