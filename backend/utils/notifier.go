package utils

import "log"

// Notification kinds sent by the core. Delivery is best effort; a failed
// notification never fails the triggering operation.
const (
	NotifyModuleApproved = "module_approved"
	NotifyModuleRejected = "module_rejected"
	NotifyTaskReviewed   = "task_reviewed"
	NotifyEnrolled       = "enrolled"
)

type Notifier interface {
	Notify(target uint, kind string, payload map[string]interface{}) error
}

// ConsoleNotifier writes notifications to the service log. It stands in for
// the real email/SMS delivery collaborator.
type ConsoleNotifier struct {
	Logger *log.Logger
}

func NewConsoleNotifier(logger *log.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{Logger: logger}
}

func (n *ConsoleNotifier) Notify(target uint, kind string, payload map[string]interface{}) error {
	n.Logger.Printf("notify user=%d kind=%s payload=%v", target, kind, payload)
	return nil
}
