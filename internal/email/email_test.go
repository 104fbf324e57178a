package email

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	err   error
	calls int
	last  []byte
}

func (r *recordingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	r.calls++
	r.last = rawMessage
	return r.err
}

func TestComposeAndKindOf(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	raw := Compose("noreply@tvicl.test", Message{
		To:      "ada@example.com",
		Kind:    KindPasswordReset,
		Subject: "Reset your password",
		Body:    "Follow the link",
	}, now)

	s := string(raw)
	assert.Contains(t, s, "To: ada@example.com\r\n")
	assert.Contains(t, s, "From: noreply@tvicl.test\r\n")
	assert.Contains(t, s, "Subject: Reset your password\r\n")
	assert.Contains(t, s, "X-Message-Kind: password_reset\r\n")
	assert.True(t, strings.HasSuffix(s, "\r\n\r\nFollow the link\r\n"))

	assert.Equal(t, KindPasswordReset, KindOf(raw))
	assert.Equal(t, KindUnknown, KindOf([]byte("not a message")))
	assert.Equal(t, KindUnknown, KindOf([]byte("Subject: hi\r\n\r\nbody")))
}

func TestCompositeEmailSender(t *testing.T) {
	ctx := context.Background()

	assert.Error(t, NewCompositeEmailSender().Send(ctx, []string{"a@b.c"}, "s", nil))

	ok := &recordingSender{}
	failing := &recordingSender{err: errors.New("relay down")}
	cs := NewCompositeEmailSender(ok, nil)
	cs.AddSender(failing)
	cs.AddSender(nil)

	err := cs.Send(ctx, []string{"a@b.c"}, "s", []byte("raw"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")
	assert.Equal(t, 1, ok.calls, "a failing sender does not stop the others")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, []byte("raw"), ok.last)
}

func TestFileEmailSender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "emails.log")
	sender, err := NewFileEmailSender(path)
	require.NoError(t, err)

	raw := Compose("noreply@tvicl.test", Message{To: "ada@example.com", Kind: KindVerifyEmail, Subject: "Verify", Body: "link"}, time.Now())
	require.NoError(t, sender.Send(context.Background(), []string{"ada@example.com"}, "Verify", raw))
	require.NoError(t, sender.Send(context.Background(), []string{"ada@example.com"}, "Verify", raw))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(content), "verify_email (To: [ada@example.com]"))

	_, err = NewFileEmailSender("  ")
	assert.Error(t, err)
}

func TestRedisSender(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", addr, err)
	}

	sender := NewRedisSender(client, "noreply@tvicl.test")
	raw := Compose("noreply@tvicl.test", Message{To: "Ada@Example.com", Kind: KindVerifyEmail, Subject: "Verify", Body: "token"}, time.Now())
	require.NoError(t, sender.Send(ctx, []string{"Ada@Example.com"}, "Verify", raw))

	key := MockEmailKey("ada@example.com", KindVerifyEmail)
	t.Cleanup(func() { client.Del(context.Background(), key) })

	stored, err := client.Get(ctx, key).Bytes()
	require.NoError(t, err)
	var captured CapturedEmail
	require.NoError(t, json.Unmarshal(stored, &captured))
	assert.Equal(t, KindVerifyEmail, captured.Kind)
	assert.Equal(t, "Verify", captured.Subject)
	assert.Contains(t, captured.Body, "token")

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= MockEmailTTL)

	assert.Error(t, sender.Send(ctx, nil, "Verify", raw))
}
