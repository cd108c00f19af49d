package notification

import (
    "context"
    "errors"
    "log/slog"
)

const (
    // KindTransferCompleted is sent to the card owner once funds have moved.
    KindTransferCompleted = "transfer_completed"
    // KindTransferFailed is sent when a transfer ends FAILED.
    KindTransferFailed = "transfer_failed"
)

// Message describes a notification payload.
type Message struct {
    Kind        string
    Destination string
    Subject     string
    Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
    Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
    logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
    return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
    if n == nil || n.logger == nil {
        return nil
    }
    n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "subject", message.Subject, "body", message.Body)
    return nil
}

// Multi delivers every message to each notifier and joins their failures.
type Multi []Notifier

// Send fans the message out; one failing notifier does not stop the others.
func (m Multi) Send(ctx context.Context, message Message) error {
    var errs []error
    for _, n := range m {
        if n == nil {
            continue
        }
        if err := n.Send(ctx, message); err != nil {
            errs = append(errs, err)
        }
    }
    return errors.Join(errs...)
}
