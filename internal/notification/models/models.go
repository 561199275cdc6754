// Package models holds in-app notifications sent to document recipients.
package models

import (
	"time"

	id "docsign/pkg/domain"
)

type Type string

const (
	TypeDocumentCreated Type = "DOCUMENT_CREATED"
	TypeDocumentSigned  Type = "DOCUMENT_SIGNED"
	TypeDocumentRevoked Type = "DOCUMENT_REVOKED"
)

// Event asks for a notification to be rendered and delivered to UserID.
type Event struct {
	UserID        id.UserID
	Type          Type
	DocumentID    id.DocumentID
	DocumentTitle string
	Reason        string
}

// Notification is a rendered message for one user. Once read it stays read.
type Notification struct {
	ID         id.NotificationID
	UserID     id.UserID
	DocumentID id.DocumentID
	Title      string
	Message    string
	Type       Type
	IsRead     bool
	ReadAt     *time.Time
	CreatedAt  time.Time
}

// MarkRead sets the read flag. The first read time is kept.
func (n *Notification) MarkRead(now time.Time) {
	if n.IsRead {
		return
	}
	n.IsRead = true
	n.ReadAt = &now
}

// View is the JSON projection of a Notification.
type View struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	DocumentID string     `json:"documentId,omitempty"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Type       Type       `json:"type"`
	IsRead     bool       `json:"isRead"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (n *Notification) View() View {
	v := View{
		ID:        n.ID.String(),
		UserID:    n.UserID.String(),
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
	if !n.DocumentID.IsNil() {
		v.DocumentID = n.DocumentID.String()
	}
	return v
}

func (n *Notification) Clone() *Notification {
	c := *n
	if n.ReadAt != nil {
		at := *n.ReadAt
		c.ReadAt = &at
	}
	return &c
}

// ListFilter selects a user's notifications, newest first.
type ListFilter struct {
	UserID     id.UserID
	UnreadOnly bool
	Limit      int
	Offset     int
}

// Matches reports whether n belongs in the filtered list, ignoring paging.
func (f ListFilter) Matches(n *Notification) bool {
	if n.UserID != f.UserID {
		return false
	}
	return !f.UnreadOnly || !n.IsRead
}

// Payload is the record value published to the notifications topic.
type Payload struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	DocumentID string    `json:"document_id,omitempty"`
	Type       Type      `json:"type"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

func (n *Notification) Payload() Payload {
	m := Payload{
		ID:        n.ID.String(),
		UserID:    n.UserID.String(),
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
	}
	if !n.DocumentID.IsNil() {
		m.DocumentID = n.DocumentID.String()
	}
	return m
}
