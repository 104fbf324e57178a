package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockEmailTTL is how long a captured message stays readable in Redis.
const MockEmailTTL = 5 * time.Minute

// MockEmailKey is the Redis key under which the last message of a kind sent to an address is kept.
func MockEmailKey(to string, kind Kind) string {
	return fmt.Sprintf("mockemail:%s:%s", strings.ToLower(to), kind)
}

// CapturedEmail is the JSON stored by RedisSender.
type CapturedEmail struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Kind    Kind   `json:"kind"`
	SentAt  string `json:"sent_at"`
}

// RedisSender captures messages in Redis instead of delivering them, so test
// harnesses can pick up verification and reset links.
type RedisSender struct {
	client redis.Cmdable
	from   string
}

func NewRedisSender(client redis.Cmdable, from string) Sender {
	return &RedisSender{client: client, from: from}
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if len(to) == 0 {
		return fmt.Errorf("redis sender: no recipients")
	}
	kind := KindOf(rawMessage)

	data, err := json.Marshal(CapturedEmail{
		To:      strings.Join(to, ", "),
		From:    s.from,
		Subject: subject,
		Body:    string(rawMessage),
		Kind:    kind,
		SentAt:  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(to[0], kind)
	if err := s.client.Set(ctx, key, data, MockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock email stored in Redis key '%s' (TTL: %v, Subject: %s)", key, MockEmailTTL, subject)
	return nil
}
