package notify

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"knowledgehub/app/internal/content"
)

// Service stores notifications and pushes them live through the hub.
type Service struct {
	repo   Repository
	hub    *Hub
	logger *logrus.Logger
}

var _ content.Notifier = (*Service)(nil)

// NewService wires the notification service.
func NewService(repo Repository, hub *Hub, logger *logrus.Logger) (*Service, error) {
	if repo == nil {
		return nil, eris.New("notification repository is required")
	}
	if hub == nil {
		return nil, eris.New("notification hub is required")
	}

	return &Service{repo: repo, hub: hub, logger: logger}, nil
}

// NotifyUsers persists one notification per recipient and pushes the payload
// to every connected client. Push delivery is best-effort; the stored row is
// the source of truth.
func (s *Service) NotifyUsers(ctx context.Context, recipientIDs []uint, message, link string) error {
	if len(recipientIDs) == 0 {
		return nil
	}

	notifications := make([]Notification, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		notifications = append(notifications, Notification{
			RecipientID: id,
			Message:     message,
			Link:        link,
		})
	}

	if err := s.repo.CreateMany(ctx, notifications); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"message": message, "link": link})
	if err != nil {
		return eris.Wrap(err, "encoding notification payload")
	}
	for _, id := range recipientIDs {
		s.hub.Push(id, string(payload))
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"recipients": len(recipientIDs),
		}).Debug("delivered notifications")
	}

	return nil
}
