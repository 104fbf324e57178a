package email

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Kind tags a message with the account flow that produced it.
type Kind string

const (
	KindVerifyEmail     Kind = "verify_email"
	KindPasswordReset   Kind = "password_reset"
	KindPasswordChanged Kind = "password_changed"
	KindUnknown         Kind = "unknown"
)

// KindHeader carries the Kind inside the raw message so senders can route on it.
const KindHeader = "X-Message-Kind"

// Message is a plain-text email waiting to be composed and sent.
type Message struct {
	To      string `json:"to"`
	Kind    Kind   `json:"kind"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Compose renders msg as an RFC 5322 message with the headers senders expect.
func Compose(from string, msg Message, now time.Time) []byte {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	sb.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	sb.WriteString(fmt.Sprintf("%s: %s\r\n", KindHeader, msg.Kind))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(msg.Body)
	if !strings.HasSuffix(msg.Body, "\r\n") {
		sb.WriteString("\r\n")
	}
	return []byte(sb.String())
}

// KindOf reads the Kind header of a composed message.
func KindOf(rawMessage []byte) Kind {
	m, err := mail.ReadMessage(bytes.NewReader(rawMessage))
	if err != nil {
		return KindUnknown
	}
	if k := m.Header.Get(KindHeader); k != "" {
		return Kind(k)
	}
	return KindUnknown
}
