// Package notify delivers batch-completion notifications.
package notify

import (
	"fmt"
)

// NotificationType classifies the outcome being reported
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
)

// Notification is a message about a finished batch run
type Notification struct {
	Type    NotificationType
	Title   string
	Message string
	RunName string
}

// Notifier sends notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier fans out to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all given notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers, collecting errors
func (m *MultiNotifier) Send(n Notification) error {
	var firstErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NoopNotifier discards all notifications
type NoopNotifier struct{}

func (NoopNotifier) Send(Notification) error { return nil }

// BatchFinished builds a notification summarizing a completed batch run.
// Counts are keyed by instance state as recorded in the run index.
func BatchFinished(runName string, counts map[string]int) Notification {
	recorded := counts["recorded"] + counts["action_gated"]
	failed := counts["failed"]
	skipped := counts["skipped"] + counts["filtered_out"]

	typ := NotifySuccess
	if failed > 0 {
		typ = NotifyWarning
	}
	if recorded == 0 && failed > 0 {
		typ = NotifyError
	}

	return Notification{
		Type:    typ,
		Title:   fmt.Sprintf("Batch %s finished", runName),
		Message: fmt.Sprintf("%d recorded, %d failed, %d skipped", recorded, failed, skipped),
		RunName: runName,
	}
}
