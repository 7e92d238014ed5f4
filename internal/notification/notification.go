// Package notification sends desktop notifications through beeep.
package notification

import (
	"github.com/gen2brain/beeep"
	"github.com/zhubert/claude-menu/internal/logger"
)

const appName = "claude-menu"

var notify = beeep.Notify

// SetNotifier replaces the notification function, for tests.
func SetNotifier(fn func(title, message string, icon any) error) {
	notify = fn
}

// ResetNotifier restores the real notification function.
func ResetNotifier() {
	notify = beeep.Notify
}

// Send sends a desktop notification with the given title and message.
// On macOS, it uses terminal-notifier or AppleScript.
// On Linux, it uses D-Bus or notify-send.
// On Windows, it uses the Windows Runtime COM API.
func Send(title, message string) error {
	log := logger.ComponentLogger("Notification")
	log.Debug("sending notification", "title", title, "message", message)
	err := notify(title, message, "")
	if err != nil {
		log.Warn("failed to send notification", "error", err)
	}
	return err
}

// SessionStarted reports that a forked session wrote its first log entry.
func SessionStarted(name string) error {
	return Send(appName, name+" has started")
}
