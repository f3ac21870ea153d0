package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Message is one rendered-downstream email.
type Message struct {
	OrderID  uuid.UUID
	Template enums.NotificationTemplate
	To       string
	From     string
	Subject  string
}

// Mailer hands a message to an email transport.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them. It is the
// mailer until a transport is configured.
type LogMailer struct {
	logg *logger.Logger
}

func NewLogMailer(logg *logger.Logger) *LogMailer {
	return &LogMailer{logg: logg}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	ctx = m.logg.WithFields(ctx, map[string]any{
		"order_id": msg.OrderID.String(),
		"template": msg.Template,
		"to":       msg.To,
		"from":     msg.From,
		"subject":  msg.Subject,
	})
	m.logg.Info(ctx, "email queued for delivery")
	return nil
}
