package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OutboxMailer writes each notification into a spool directory as an RFC
// 822-style file with the iCalendar payload as body. The mail client's
// sending pipeline picks the directory up.
type OutboxMailer struct {
	dir    string
	logger *slog.Logger
}

// NewOutboxMailer creates the spool directory if needed.
func NewOutboxMailer(logger *slog.Logger, dir string) (*OutboxMailer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create outbox %s: %w", dir, err)
	}
	return &OutboxMailer{dir: dir, logger: logger}, nil
}

// Send spools one message. The file name is unique per message so retries
// never clobber earlier spool entries.
func (o *OutboxMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Content-Type: text/calendar; method=%s; charset=UTF-8\r\n", msg.Method)
	b.WriteString("\r\n")
	b.Write(msg.Payload)

	name := filepath.Join(o.dir, uuid.NewString()+".eml")
	if err := os.WriteFile(name, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("spool message: %w", err)
	}
	o.logger.Debug("spooled notification", "file", name, "method", msg.Method, "recipients", len(msg.To))
	return nil
}
