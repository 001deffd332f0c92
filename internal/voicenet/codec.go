// Package voicenet implements the radio-style addressed-message codec: it
// parses free-text voice-net transmissions into their sender/recipient/body
// parts, classifies message intent, and formats the inverse. Callsign
// normalization lives here too since both the Message Log and Speaking
// Criteria need the identical matching rule.
package voicenet

import (
	"regexp"
	"strings"
)

// MessageType classifies the intent of a transmission body.
type MessageType string

const (
	TypeAcknowledgment MessageType = "ACKNOWLEDGMENT"
	TypeQuery          MessageType = "QUERY"
	TypeCommand        MessageType = "COMMAND"
	TypeRequest        MessageType = "REQUEST"
	TypeReport         MessageType = "REPORT"
)

// Parsed is the result of decoding a raw transmission.
type Parsed struct {
	Sender      string
	Recipient   string
	IsBroadcast bool
	Type        MessageType
	Body        string
}

var (
	// "<Recipient>, this is <Sender>, <body>, over."
	reDirectedFull = regexp.MustCompile(`(?is)^\s*([^,]+?)\s*,\s*this is\s*([^,]+?)\s*,\s*(.*?)\s*,?\s*over\.?\s*$`)
	// "All stations, this is <Sender>, <body>, over."
	reBroadcastFull = regexp.MustCompile(`(?is)^\s*all\s+stations\s*,\s*this is\s*([^,]+?)\s*,\s*(.*?)\s*,?\s*over\.?\s*$`)
	// "<Recipient>, <body>" (sender unknown).
	reRecipientOnly = regexp.MustCompile(`(?is)^\s*([^,]+?)\s*,\s*(.*\S)\s*$`)

	reAck     = regexp.MustCompile(`(?i)\b(roger|copy|wilco)\b`)
	reQuery   = regexp.MustCompile(`(?i)^\s*(what|how|why|when|where|who)\b|\?`)
	reCommand = regexp.MustCompile(`(?i)\b(search|calculate|compute|execute|release)\b`)
	reRequest = regexp.MustCompile(`(?i)\bplease\b|\bcan you\b|\bcould you\b|\bwould you\b`)

	reCallsignSquash = regexp.MustCompile(`[\s_-]+`)
	reTrailingPunct  = regexp.MustCompile(`[.,;:!?]+$`)
)

var broadcastRecipients = map[string]bool{
	"ALL":          true,
	"ALL-STATIONS": true,
	"ALL-UNITS":    true,
	"ALL-AGENTS":   true,
}

// NormalizeCallsign uppercases, collapses runs of spaces/underscores/hyphens
// to a single hyphen, and strips trailing punctuation. Two callsigns match
// iff their normalized forms are equal.
func NormalizeCallsign(s string) string {
	s = strings.TrimSpace(s)
	s = reTrailingPunct.ReplaceAllString(s, "")
	s = reCallsignSquash.ReplaceAllString(s, "-")
	return strings.ToUpper(s)
}

// Parse decodes a raw transmission into its addressed parts and classifies
// its message type. Recognition is case-insensitive and punctuation-tolerant.
func Parse(content string) Parsed {
	content = strings.TrimSpace(content)

	if m := reBroadcastFull.FindStringSubmatch(content); m != nil {
		body := m[2]
		return Parsed{Sender: strings.TrimSpace(m[1]), Recipient: "ALL", IsBroadcast: true, Type: classify(body), Body: body}
	}
	if m := reDirectedFull.FindStringSubmatch(content); m != nil {
		recipient := strings.TrimSpace(m[1])
		sender := strings.TrimSpace(m[2])
		body := m[3]
		return Parsed{Sender: sender, Recipient: recipient, IsBroadcast: isBroadcastRecipient(recipient), Type: classify(body), Body: body}
	}
	if m := reRecipientOnly.FindStringSubmatch(content); m != nil {
		recipient := strings.TrimSpace(m[1])
		body := m[2]
		return Parsed{Recipient: recipient, IsBroadcast: isBroadcastRecipient(recipient), Type: classify(body), Body: body}
	}
	return Parsed{Type: classify(content), Body: content}
}

func isBroadcastRecipient(recipient string) bool {
	norm := NormalizeCallsign(recipient)
	if broadcastRecipients[norm] {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(recipient), "all stations")
}

// classify examines the body case-insensitively in priority order:
// ACKNOWLEDGMENT -> QUERY -> COMMAND -> REQUEST -> REPORT (default).
func classify(body string) MessageType {
	switch {
	case reAck.MatchString(body):
		return TypeAcknowledgment
	case reQuery.MatchString(body):
		return TypeQuery
	case reCommand.MatchString(body):
		return TypeCommand
	case reRequest.MatchString(body):
		return TypeRequest
	default:
		return TypeReport
	}
}

// Format renders the inverse of Parse: "<Recipient>, this is <Sender>, <body>, over."
func Format(p Parsed) string {
	recipient := p.Recipient
	if recipient == "" {
		recipient = "All stations"
	}
	sender := p.Sender
	if sender == "" {
		return recipient + ", " + p.Body + ", over."
	}
	return recipient + ", this is " + sender + ", " + p.Body + ", over."
}
