package email

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileEmailSender appends every message to a local file.
type FileEmailSender struct {
	mu       sync.Mutex
	filePath string
}

// NewFileEmailSender creates the directory for filePath if needed.
func NewFileEmailSender(filePath string) (*FileEmailSender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log file '%s': %w", dir, err)
	}
	return &FileEmailSender{filePath: filePath}, nil
}

func (s *FileEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open email log file: %w", err)
	}
	defer file.Close()

	entry := fmt.Sprintf("--- %s %s (To: %v, Subject: %s) ---\n", time.Now().Format(time.RFC3339Nano), KindOf(rawMessage), to, subject)
	buf := append([]byte(entry), rawMessage...)
	buf = append(buf, "--- End ---\n\n"...)

	if _, err := file.Write(buf); err != nil {
		log.Printf("FileEmailSender: failed to write to '%s': %v", s.filePath, err)
		return fmt.Errorf("failed to write email to log file: %w", err)
	}
	return nil
}
