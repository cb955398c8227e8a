package http

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"
)

type notificationListOutput struct {
	Body struct {
		Notifications []notificationView `json:"notifications"`
	}
}

type notificationIDInput struct {
	NotificationID uint `path:"notificationID"`
}

func (s *Server) registerNotificationRoutes() {
	huma.Get(s.api, "/api/notifications", s.listNotificationsHandler, func(op *huma.Operation) {
		op.Summary = "List notifications"
	})
	huma.Post(s.api, "/api/notifications/{notificationID}/read", s.markReadHandler, func(op *huma.Operation) {
		op.Summary = "Mark a notification read"
		op.DefaultStatus = 204
	})
	huma.Post(s.api, "/api/notifications/read-all", s.markAllReadHandler, func(op *huma.Operation) {
		op.Summary = "Mark all notifications read"
		op.DefaultStatus = 204
	})
}

func (s *Server) listNotificationsHandler(ctx context.Context, _ *struct{}) (*notificationListOutput, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	notifications, err := s.notifications.ListForRecipient(ctx, user.ID)
	if err != nil {
		s.recordError(ctx, err, "listing notifications", logrus.Fields{"user": user.Username})
		return nil, mapError(err)
	}

	out := &notificationListOutput{}
	out.Body.Notifications = toNotificationViews(notifications)
	return out, nil
}

func (s *Server) markReadHandler(ctx context.Context, input *notificationIDInput) (*struct{}, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.notifications.MarkRead(ctx, input.NotificationID, user.ID); err != nil {
		s.recordError(ctx, err, "marking notification read", logrus.Fields{"notification_id": input.NotificationID})
		return nil, mapError(err)
	}

	return nil, nil
}

func (s *Server) markAllReadHandler(ctx context.Context, _ *struct{}) (*struct{}, error) {
	user, err := s.requireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.notifications.MarkAllRead(ctx, user.ID); err != nil {
		s.recordError(ctx, err, "marking notifications read", logrus.Fields{"user": user.Username})
		return nil, mapError(err)
	}

	return nil, nil
}
