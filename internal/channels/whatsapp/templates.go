package whatsapp

// Canned replies sent outside the model.
const (
	TemplateWelcome = "👋 Hello! I'm your AI support assistant. How can I help you today?\n\n" +
		"You can ask me about:\n• Order status 📦\n• Returns & refunds 🔄\n• Product info 🛍️\n• Shipping details 🚚"
	TemplateOrderAsk   = "Sure, I can look that up. Could you share your *Order ID*? It usually looks like: ORD-XXXXX"
	TemplateEscalation = "I understand this needs more attention. I'm connecting you with a human agent, who will reply here shortly. 🙏"
	TemplateClosing    = "Is there anything else I can help you with today? Just type your question anytime. 😊"
	TemplateError      = "I apologize, but I'm having trouble processing your request right now. " +
		"Please try again in a moment, or type 'human' to speak with an agent."
	TemplateTextOnly = "I can only process text messages at the moment. Please type your question."

	escalationPrompt = "Would you like to speak with a human agent?"
)

// Button ids of the escalation prompt.
const (
	ButtonYesAgent = "yes_agent"
	ButtonNoAgent  = "no_agent"
)

// Row ids of the help menu list.
const (
	TopicOrder    = "topic_order"
	TopicReturns  = "topic_returns"
	TopicShipping = "topic_shipping"
	TopicAgent    = "topic_agent"
)

const (
	menuPrompt = "What can I help you with? Pick a topic below."
	menuButton = "Help topics"
)

var menuSections = []ListSection{{
	Title: "Support",
	Rows: []ListRow{
		{ID: TopicOrder, Title: "Track my order", Description: "Status and delivery estimate"},
		{ID: TopicReturns, Title: "Returns & refunds"},
		{ID: TopicShipping, Title: "Shipping info"},
		{ID: TopicAgent, Title: "Talk to a human"},
	},
}}

// menuKeywords open the help menu instead of going to the model.
var menuKeywords = map[string]bool{"menu": true, "help": true, "start": true}

var escalationButtons = []Button{
	{ID: ButtonYesAgent, Title: "Yes, Connect Me"},
	{ID: ButtonNoAgent, Title: "No, I'm Fine"},
}
