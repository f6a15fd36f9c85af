package ui

import (
	"fmt"
	"os/exec"
	"runtime"

	"fcsync/pkg/syncer"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// CommandSender runs an external notifier built by Build
type CommandSender struct {
	Build func(title, message string) *exec.Cmd
}

func (c CommandSender) Send(title, message string) error {
	return c.Build(title, message).Run()
}

const windowsToast = `
[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
$t = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
$n = $t.GetElementsByTagName("text")
$n.Item(0).AppendChild($t.CreateTextNode(%q)) | Out-Null
$n.Item(1).AppendChild($t.CreateTextNode(%q)) | Out-Null
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("fcsync").Show([Windows.UI.Notifications.ToastNotification]::new($t))
`

// platformSenders maps GOOS to the native notifier
var platformSenders = map[string]CommandSender{
	"linux": {Build: func(title, message string) *exec.Cmd {
		return exec.Command("notify-send", "--app-name=fcsync", title, message)
	}},
	"darwin": {Build: func(title, message string) *exec.Cmd {
		return exec.Command("osascript", "-e", fmt.Sprintf("display notification %q with title %q", message, title))
	}},
	"windows": {Build: func(title, message string) *exec.Cmd {
		return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", fmt.Sprintf(windowsToast, title, message))
	}},
}

// Notifier reports finished runs on the desktop. Without a sender it does
// nothing.
type Notifier struct {
	sender NotificationSender
}

// NewNotifier picks the sender for the current platform
func NewNotifier() *Notifier {
	if sender, ok := platformSenders[runtime.GOOS]; ok {
		return &Notifier{sender: sender}
	}
	return &Notifier{}
}

func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// NotifyReport summarizes report in one notification. Delivery failures are
// ignored.
func (n *Notifier) NotifyReport(report *syncer.Report) {
	if n.sender == nil || report == nil {
		return
	}

	title := "fcsync finished"
	if report.Aborted {
		title = "fcsync aborted"
	}
	_ = n.sender.Send(title, fmt.Sprintf("%d post(s) from %d channel(s), %d failed",
		report.Materialized(), report.Succeeded(), report.Failed()))
}
