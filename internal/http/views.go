package http

import (
	"time"

	"knowledgehub/app/internal/auth"
	"knowledgehub/app/internal/content"
	"knowledgehub/app/internal/notify"
)

type pageView struct {
	ExternalID       string    `json:"externalId"`
	ParentExternalID *string   `json:"parentExternalId,omitempty"`
	Title            string    `json:"title"`
	Slug             string    `json:"slug"`
	Description      string    `json:"description"`
	Kind             string    `json:"kind"`
	AuthorName       string    `json:"authorName,omitempty"`
	Tags             []string  `json:"tags"`
	SourceUpdatedAt  time.Time `json:"sourceUpdatedAt"`
	ViewCount        int64     `json:"viewCount"`
}

type treeNodeView struct {
	pageView
	IsEditable bool `json:"isEditable"`
}

type submissionView struct {
	ExternalID       string    `json:"externalId"`
	Title            string    `json:"title"`
	AuthorID         uint      `json:"authorId"`
	Status           string    `json:"status"`
	RejectionComment *string   `json:"rejectionComment,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type userView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type groupMemberView struct {
	UserID uint   `json:"userId"`
	Role   string `json:"role"`
}

type groupView struct {
	ID                    uint              `json:"id"`
	Name                  string            `json:"name"`
	ManagedPageExternalID *string           `json:"managedPageExternalId,omitempty"`
	Members               []groupMemberView `json:"members"`
}

type tagView struct {
	ID         uint    `json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	TagGroupID *uint   `json:"tagGroupId,omitempty"`
}

type tagGroupView struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type notificationView struct {
	ID        uint      `json:"id"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func toPageView(page *content.Page) pageView {
	tags := make([]string, 0, len(page.Tags))
	for i := range page.Tags {
		tags = append(tags, page.Tags[i].Name)
	}

	return pageView{
		ExternalID:       page.ExternalID,
		ParentExternalID: page.ParentExternalID,
		Title:            page.Title,
		Slug:             page.Slug,
		Description:      page.Description,
		Kind:             string(page.Kind),
		AuthorName:       page.AuthorName,
		Tags:             tags,
		SourceUpdatedAt:  page.SourceUpdatedAt,
		ViewCount:        page.ViewCount,
	}
}

func toPageViews(pages []content.Page) []pageView {
	views := make([]pageView, 0, len(pages))
	for i := range pages {
		views = append(views, toPageView(&pages[i]))
	}
	return views
}

func toSubmissionView(submission *content.Submission) submissionView {
	return submissionView{
		ExternalID:       submission.ExternalID,
		Title:            submission.Title,
		AuthorID:         submission.AuthorID,
		Status:           string(submission.Status),
		RejectionComment: submission.RejectionComment,
		UpdatedAt:        submission.UpdatedAt,
	}
}

func toSubmissionViews(submissions []content.Submission) []submissionView {
	views := make([]submissionView, 0, len(submissions))
	for i := range submissions {
		views = append(views, toSubmissionView(&submissions[i]))
	}
	return views
}

func toUserView(user *auth.User) userView {
	return userView{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Role:     string(user.Role),
	}
}

func toGroupView(group *content.Group) groupView {
	members := make([]groupMemberView, 0, len(group.Members))
	for i := range group.Members {
		members = append(members, groupMemberView{
			UserID: group.Members[i].UserID,
			Role:   string(group.Members[i].Role),
		})
	}

	return groupView{
		ID:                    group.ID,
		Name:                  group.Name,
		ManagedPageExternalID: group.ManagedPageExternalID,
		Members:               members,
	}
}

func toNotificationViews(notifications []notify.Notification) []notificationView {
	views := make([]notificationView, 0, len(notifications))
	for i := range notifications {
		views = append(views, notificationView{
			ID:        notifications[i].ID,
			Message:   notifications[i].Message,
			Link:      notifications[i].Link,
			Read:      notifications[i].Read,
			CreatedAt: notifications[i].CreatedAt,
		})
	}
	return views
}
