package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier prints run results and, when enabled, raises a desktop notification.
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks a sender for the current platform. With desktop false
// the notifier only prints.
func NewNotifier(desktop bool) *Notifier {
	if !desktop {
		return &Notifier{}
	}

	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	}
	return &Notifier{sender: sender}
}

// NewNotifierWithSender is used by tests.
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// SendSuccess reports a finished run
func (n *Notifier) SendSuccess(title, message string) {
	fmt.Printf("\n%s: %s\n", Green(title), Green(message))
	n.send(title, message)
}

// SendWarning reports a run that stopped short of completion
func (n *Notifier) SendWarning(title, message string) {
	fmt.Printf("\n%s: %s\n", Yellow(title), Yellow(message))
	n.send(title, message)
}

// SendError reports a failed run
func (n *Notifier) SendError(title, message string) {
	fmt.Printf("\n%s: %s\n", Red(title), Red(message))
	n.send(title, message)
}

func (n *Notifier) send(title, message string) {
	if n.sender == nil {
		return
	}
	// Notifications are best effort.
	_ = n.sender.Send(title, message)
}
