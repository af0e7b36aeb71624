package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// VerifySubscription answers Meta's GET challenge. It returns the challenge
// to echo when mode is "subscribe" and token matches verifyToken.
func VerifySubscription(mode, token, challenge, verifyToken string) (string, bool) {
	if mode == "subscribe" && verifyToken != "" && hmac.Equal([]byte(token), []byte(verifyToken)) {
		return challenge, true
	}
	return "", false
}

// VerifySignature checks the X-Hub-Signature-256 header ("sha256=<hex>").
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" || signature == "" {
		return false
	}
	const prefix = "sha256="
	if !strings.HasPrefix(signature, prefix) || len(signature) == len(prefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature[len(prefix):]))
}

// ParseWebhookEvent extracts customer messages from every entry and change.
// Status callbacks produce no messages.
func ParseWebhookEvent(event WebhookEvent) []InboundMessage {
	var out []InboundMessage
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				parsed := InboundMessage{
					MessageID: m.ID,
					From:      m.From,
					FromName:  names[m.From],
					Type:      m.Type,
					Timestamp: parseUnix(m.Timestamp),
				}
				if parsed.FromName == "" && len(change.Value.Contacts) == 1 {
					parsed.FromName = change.Value.Contacts[0].Profile.Name
				}
				switch m.Type {
				case "text":
					if m.Text != nil {
						parsed.Text = m.Text.Body
					}
				case "interactive":
					if m.Interactive != nil {
						parsed.ButtonReply = m.Interactive.ButtonReply
						parsed.ListReply = m.Interactive.ListReply
					}
				}
				out = append(out, parsed)
			}
		}
	}
	return out
}

func parseUnix(ts string) time.Time {
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
