package model

import "time"

// Notification is a delivery record pushed to a supplier or demander
type Notification struct {
	Recipient string    `json:"recipient"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AsMessage converts the notification into a notification-role conversation entry
func (n *Notification) AsMessage() *Message {
	ts := n.Timestamp
	return &Message{
		Role:      RoleNotification,
		Content:   n.Message,
		Recipient: n.Recipient,
		Timestamp: &ts,
	}
}
