package content

import (
	"time"

	"gorm.io/gorm"
)

// PageKind labels a page's structural role in the mirrored hierarchy.
// A page is a SECTION iff it currently has at least one child in the
// external store; the label may lag briefly between reconciliation passes.
type PageKind string

const (
	KindArticle PageKind = "ARTICLE"
	KindSection PageKind = "SECTION"
)

// Role is used both for the global user role and for group memberships.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Page mirrors a node of the external hierarchy. The external store stays
// authoritative for the page body and the parent/child structure; the mirror
// holds metadata for fast reads, tagging and permission computation.
//
// ParentExternalID references another page's ExternalID rather than its
// internal id, so the mirror can be dropped and rebuilt without preserving
// surrogate keys.
type Page struct {
	gorm.Model
	ExternalID       string  `gorm:"size:64;uniqueIndex:idx_pages_external_id;not null"`
	ParentExternalID *string `gorm:"size:64;index:idx_pages_parent_external_id"`
	Title            string  `gorm:"size:512;not null"`
	Slug             string  `gorm:"size:512;not null"`
	Description      string  `gorm:"type:text"`
	Kind             PageKind `gorm:"size:16;not null;default:ARTICLE"`
	AuthorName       string  `gorm:"size:255"`
	SourceUpdatedAt  time.Time
	ViewCount        int64 `gorm:"not null;default:0"`
	Tags             []Tag `gorm:"many2many:page_tags;"`
}

// TableName defines the table name for the Page model.
func (Page) TableName() string {
	return "pages"
}

// Tag is a curated label attached to pages. Tags originate either from
// non-status labels on the external store or from the editing workflow.
type Tag struct {
	gorm.Model
	Name       string `gorm:"size:255;uniqueIndex:idx_tags_name;not null"`
	Slug       string `gorm:"size:255;not null"`
	TagGroupID *uint  `gorm:"index"`
}

// TableName defines the table name for the Tag model.
func (Tag) TableName() string {
	return "tags"
}

// TagGroup organises tags for the admin UI.
type TagGroup struct {
	gorm.Model
	Name        string `gorm:"size:255;uniqueIndex:idx_tag_groups_name;not null"`
	Description string `gorm:"type:text"`
	Order       int    `gorm:"column:sort_order;not null;default:0"`
}

// TableName defines the table name for the TagGroup model.
func (TagGroup) TableName() string {
	return "tag_groups"
}

// SubmissionStatus is the review state of a page created through the
// managed authoring workflow.
type SubmissionStatus string

const (
	StatusPendingReview SubmissionStatus = "PENDING_REVIEW"
	StatusRejected      SubmissionStatus = "REJECTED"
	StatusPublished     SubmissionStatus = "PUBLISHED"
)

// Submission is the moderation record for a page, one-to-one via ExternalID.
// Pages that were bulk-imported have no Submission and count as published.
type Submission struct {
	gorm.Model
	ExternalID       string           `gorm:"size:64;uniqueIndex:idx_submissions_external_id;not null"`
	Title            string           `gorm:"size:512;not null"`
	AuthorID         uint             `gorm:"index;not null"`
	Status           SubmissionStatus `gorm:"size:32;not null;default:PENDING_REVIEW"`
	RejectionComment *string          `gorm:"type:text"`
}

// TableName defines the table name for the Submission model.
func (Submission) TableName() string {
	return "submissions"
}

// Group is a delegation unit: a group with a managed page administers that
// page and everything beneath it.
type Group struct {
	gorm.Model
	Name                  string  `gorm:"size:255;uniqueIndex:idx_groups_name;not null"`
	ManagedPageExternalID *string `gorm:"size:64;index"`
	Members               []GroupMember
}

// TableName defines the table name for the Group model.
func (Group) TableName() string {
	return "groups"
}

// GroupMember links a user to a group with a per-group role. Only ADMIN
// members gain editing authority over the group's managed subtree.
type GroupMember struct {
	UserID    uint `gorm:"primaryKey;autoIncrement:false"`
	GroupID   uint `gorm:"primaryKey;autoIncrement:false"`
	Role      Role `gorm:"size:16;not null;default:MEMBER"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName defines the table name for the GroupMember model.
func (GroupMember) TableName() string {
	return "group_members"
}
