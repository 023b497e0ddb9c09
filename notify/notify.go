// Package notify handles the push notification surface: it parses incoming
// push payloads, degrades malformed ones to a default notification, and
// publishes the result for connected clients.
package notify

import (
	"encoding/json"
	"log/slog"

	"github.com/rudrakanya/Simhasth-X8/errors"
)

// Defaults used when a push payload is missing fields or malformed.
const (
	DefaultTitle = "Simhasth Heritage"
	DefaultBody  = "New heritage content is available."
	DefaultURL   = "/"
)

// Action identifiers on a notification.
const (
	ActionOpen    = "open"
	ActionDismiss = "dismiss"
)

// PushPayload is the JSON shape accepted from the push service.
type PushPayload struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Data  struct {
		URL string `json:"url,omitempty"`
	} `json:"data,omitempty"`
}

// Action is one tappable action on a displayed notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Notification is the displayable result of a push payload.
type Notification struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	URL     string   `json:"url"`
	Actions []Action `json:"actions"`
}

func defaultActions() []Action {
	return []Action{
		{Action: ActionOpen, Title: "Open App"},
		{Action: ActionDismiss, Title: "Dismiss"},
	}
}

// Parse builds a notification from a push payload. A malformed payload is
// logged and replaced by the default notification instead of aborting
// display.
func Parse(payload []byte, logger *slog.Logger) Notification {
	if logger == nil {
		logger = slog.Default()
	}

	notification := Notification{
		Title:   DefaultTitle,
		Body:    DefaultBody,
		URL:     DefaultURL,
		Actions: defaultActions(),
	}

	if len(payload) == 0 {
		return notification
	}

	var push PushPayload
	if err := json.Unmarshal(payload, &push); err != nil {
		logger.Warn("malformed push payload, using default notification", "error", err)
		return notification
	}

	if push.Title != "" {
		notification.Title = push.Title
	}
	if push.Body != "" {
		notification.Body = push.Body
	}
	if push.Data.URL != "" {
		notification.URL = push.Data.URL
	}
	return notification
}

// Resolve returns the URL to open for a tapped action. Dismiss opens
// nothing; open (and a plain tap on the notification body) opens the target
// URL, defaulting to the app root.
func (n Notification) Resolve(action string) (string, bool) {
	if action == ActionDismiss {
		return "", false
	}
	if n.URL == "" {
		return DefaultURL, true
	}
	return n.URL, true
}

// Publisher sends encoded notifications to clients.
// *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Fanout publishes to every destination and reports the combined failures.
// An empty fanout drops notifications, which is the degraded-but-safe mode
// when no client surface is attached.
type Fanout []Publisher

// Publish sends to every destination; one failure does not stop the others.
func (f Fanout) Publish(subject string, data []byte) error {
	var errs []error
	for _, pub := range f {
		if err := pub.Publish(subject, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notifier parses push payloads and fans the notification out on a subject.
type Notifier struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
}

// NewNotifier creates a notifier publishing on the given subject.
func NewNotifier(pub Publisher, subject string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{pub: pub, subject: subject, logger: logger.With("component", "notify")}
}

// HandlePush processes one push payload end to end.
func (n *Notifier) HandlePush(payload []byte) error {
	notification := Parse(payload, n.logger)

	data, err := json.Marshal(notification)
	if err != nil {
		return errors.WrapInvalid(err, "Notifier", "HandlePush", "marshal notification")
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return errors.WrapTransient(err, "Notifier", "HandlePush", "publish")
	}
	return nil
}
