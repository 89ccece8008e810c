package console

import (
	"context"
	"time"

	"kiro-console/internal/events"

	log "github.com/sirupsen/logrus"
)

// Severity classifies an operator notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Notification is one toast-style message for the operator.
type Notification struct {
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	CredentialID string    `json:"credential_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier receives operator notifications.
type Notifier interface {
	Notify(Notification)
}

// HubNotifier forwards notifications onto the event hub.
type HubNotifier struct {
	Publisher events.Publisher
}

// Notify publishes n on TopicNotification and logs it.
func (h HubNotifier) Notify(n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	entry := log.WithFields(log.Fields{
		"severity":      n.Severity,
		"credential_id": n.CredentialID,
	})
	if n.Severity == SeverityError {
		entry.Warn(n.Message)
	} else {
		entry.Info(n.Message)
	}
	if h.Publisher == nil {
		return
	}
	meta := map[string]string{"severity": string(n.Severity)}
	if n.CredentialID != "" {
		meta["credential_id"] = n.CredentialID
	}
	h.Publisher.Publish(context.Background(), events.TopicNotification, n, meta)
}

func notify(sink Notifier, sev Severity, id, msg string) {
	if sink == nil {
		return
	}
	sink.Notify(Notification{Severity: sev, Message: msg, CredentialID: id})
}
