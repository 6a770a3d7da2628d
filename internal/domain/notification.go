package domain

import "time"

// Notification is an in-app notification persisted for a user when an alert
// fires. Delivery over external channels (email etc.) happens elsewhere.
type Notification struct {
	ID        string
	UserID    string
	Message   string
	Type      Severity
	CreatedAt time.Time
}
