package notify

import (
	"context"
	"errors"

	"github.com/example/lab-scheduler/internal/application"
)

// Event types.
const (
	EventNotification = "notification.created"
	EventAudit        = "audit.recorded"
)

type publisher interface {
	Publish(ctx context.Context, queue, eventType string, payload any) error
}

// QueueNotifier publishes every notification to a queue.
type QueueNotifier struct {
	publisher publisher
	queue     string
}

// NewQueueNotifier returns an application.Notifier backed by p.
func NewQueueNotifier(p *Publisher, queue string) *QueueNotifier {
	return &QueueNotifier{publisher: p, queue: queue}
}

// Notify implements application.Notifier.
func (n *QueueNotifier) Notify(ctx context.Context, notification application.Notification) error {
	return n.publisher.Publish(ctx, n.queue, EventNotification, notification)
}

// QueueAuditor publishes every audit record to a queue.
type QueueAuditor struct {
	publisher publisher
	queue     string
}

// NewQueueAuditor returns an application.Auditor backed by p.
func NewQueueAuditor(p *Publisher, queue string) *QueueAuditor {
	return &QueueAuditor{publisher: p, queue: queue}
}

// Record implements application.Auditor.
func (a *QueueAuditor) Record(ctx context.Context, entry application.AuditEntry) error {
	return a.publisher.Publish(ctx, a.queue, EventAudit, entry)
}

// Notifiers delivers to every non-nil notifier in order. All targets are
// attempted; failures are joined.
func Notifiers(targets ...application.Notifier) application.Notifier {
	var kept multiNotifier
	for _, t := range targets {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return kept
}

type multiNotifier []application.Notifier

func (m multiNotifier) Notify(ctx context.Context, notification application.Notification) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.Notify(ctx, notification))
	}
	return errors.Join(errs...)
}

// Auditors records to every non-nil auditor in order.
func Auditors(targets ...application.Auditor) application.Auditor {
	var kept multiAuditor
	for _, t := range targets {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return kept
}

type multiAuditor []application.Auditor

func (m multiAuditor) Record(ctx context.Context, entry application.AuditEntry) error {
	var errs []error
	for _, a := range m {
		errs = append(errs, a.Record(ctx, entry))
	}
	return errors.Join(errs...)
}
