// Package notify sends a freedesktop notification after each command run.
package notify

import (
	"fmt"
	"html"

	gonotify "github.com/TheCreeper/go-notify"

	"github.com/bassamadnan/mailcmd/trigger"
)

const AppName = "mailcmd"

// Desktop implements trigger.Notifier over the session D-Bus.
type Desktop struct {
	// Timeout in seconds; zero leaves the notification up until dismissed.
	Timeout int32
	show    func(gonotify.Notification) error
}

var _ trigger.Notifier = (*Desktop)(nil)

func NewDesktop(timeout int32) *Desktop {
	return &Desktop{
		Timeout: timeout,
		show: func(n gonotify.Notification) error {
			_, err := n.Show()
			return err
		},
	}
}

func (d *Desktop) Notify(e trigger.Execution) error {
	return d.show(d.build(e))
}

func (d *Desktop) build(e trigger.Execution) gonotify.Notification {
	summary, body, icon := Describe(e)
	ntf := gonotify.NewNotification(summary, body)
	ntf.AppName = AppName
	ntf.AppIcon = icon
	if d.Timeout > 0 {
		ntf.Timeout = d.Timeout * 1000
	} else {
		ntf.Timeout = gonotify.ExpiresNever
	}
	return ntf
}

// Describe renders the notification text for an execution.
func Describe(e trigger.Execution) (summary, body, icon string) {
	cmd := html.EscapeString(e.Command)
	switch {
	case !e.Succeeded():
		return "Command failed",
			fmt.Sprintf("<b>%s</b> exited with status %d; message %s left unread", cmd, e.ExitCode, e.MessageID),
			"dialog-error"
	case e.MarkErr != nil:
		return "Command ran",
			fmt.Sprintf("<b>%s</b> succeeded but message %s could not be marked read", cmd, e.MessageID),
			"dialog-warning"
	default:
		return "Command ran",
			fmt.Sprintf("<b>%s</b> succeeded for message %s", cmd, e.MessageID),
			"mail-read"
	}
}
