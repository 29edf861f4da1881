package registry

import (
	"sync"

	"github.com/dshills/packhost/internal/host"
	"go.uber.org/zap"
)

// Severity classifies a notification.
type Severity string

// Notification severities.
const (
	SeverityError Severity = "error"
	SeverityFatal Severity = "fatal"
)

// Notification is a message shown to the user.
type Notification struct {
	Severity Severity
	Message  string
	Detail   host.ErrorDetail
}

// Notifications records notifications and mirrors them to a logger.
type Notifications struct {
	mu     sync.Mutex
	items  []Notification
	logger *zap.Logger
}

// NewNotifications creates a notification sink. A nil logger discards logs.
func NewNotifications(logger *zap.Logger) *Notifications {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifications{logger: logger.Named("notifications")}
}

// AddFatalError records a fatal error notification.
func (n *Notifications) AddFatalError(message string, detail host.ErrorDetail) {
	n.add(SeverityFatal, message, detail)
}

// AddError records an error notification.
func (n *Notifications) AddError(message string, detail host.ErrorDetail) {
	n.add(SeverityError, message, detail)
}

func (n *Notifications) add(sev Severity, message string, detail host.ErrorDetail) {
	n.mu.Lock()
	n.items = append(n.items, Notification{Severity: sev, Message: message, Detail: detail})
	n.mu.Unlock()

	n.logger.Warn(message,
		zap.String("severity", string(sev)),
		zap.String("package", detail.PackageName),
		zap.String("detail", detail.Detail),
	)
}

// All returns a copy of the recorded notifications.
func (n *Notifications) All() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.items...)
}

// ForPackage returns the notifications about name.
func (n *Notifications) ForPackage(name string) []Notification {
	var out []Notification
	for _, item := range n.All() {
		if item.Detail.PackageName == name {
			out = append(out, item)
		}
	}
	return out
}
