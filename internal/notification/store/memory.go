// Package store persists notifications.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"docsign/internal/notification/models"
	id "docsign/pkg/domain"
	"docsign/pkg/platform/sentinel"
)

type InMemory struct {
	mu            sync.RWMutex
	notifications map[id.NotificationID]*models.Notification
}

func NewInMemory() *InMemory {
	return &InMemory{notifications: make(map[id.NotificationID]*models.Notification)}
}

func (s *InMemory) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.notifications[n.ID]; exists {
		return sentinel.ErrConflict
	}
	s.notifications[n.ID] = n.Clone()
	return nil
}

func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.Notification
	for _, n := range s.notifications {
		if filter.Matches(n) {
			matched = append(matched, n.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	if filter.Offset >= total {
		return []*models.Notification{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return matched[filter.Offset:end], total, nil
}

// MarkRead marks the notification read when it belongs to userID. Another
// user's notification is reported as not found.
func (s *InMemory) MarkRead(_ context.Context, notifID id.NotificationID, userID id.UserID, now time.Time) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[notifID]
	if !ok || n.UserID != userID {
		return nil, sentinel.ErrNotFound
	}
	n.MarkRead(now)
	return n.Clone(), nil
}
