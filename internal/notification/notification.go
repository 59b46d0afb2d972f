package notification

import (
	"context"
	"log/slog"
)

const (
	// KindTransferReceived tells a wallet owner that a transfer landed.
	KindTransferReceived = "transfer_received"
	// KindDepositCredited tells a wallet owner that a deposit was confirmed.
	KindDepositCredited = "deposit_credited"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Reference   string
	Amount      int64
	Body        string
}

// Notifier delivers notifications to downstream systems. Delivery is best
// effort and happens after the balance change has committed.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("reference", message.Reference),
		slog.Int64("amount", message.Amount),
		slog.String("body", message.Body),
	)
	return nil
}

// Deliver sends message and logs, rather than returns, any failure.
func Deliver(ctx context.Context, n Notifier, logger *slog.Logger, message Message) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, message); err != nil && logger != nil {
		logger.Warn("notification failed",
			slog.String("kind", message.Kind),
			slog.String("reference", message.Reference),
			slog.String("error", err.Error()),
		)
	}
}
