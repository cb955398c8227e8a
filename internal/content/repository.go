package content

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PageRepository defines persistence operations for mirrored pages and tags.
type PageRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (*Page, error)
	GetByExternalIDs(ctx context.Context, externalIDs []string) ([]Page, error)
	GetChildren(ctx context.Context, parentExternalID *string) ([]Page, error)
	ChildrenOf(ctx context.Context, parentExternalIDs []string) ([]Page, error)
	CountChildren(ctx context.Context, externalID string) (int64, error)
	ListExternalIDs(ctx context.Context) ([]string, error)
	Create(ctx context.Context, page *Page, tagNames []string) error
	UpdatePositionAndKind(ctx context.Context, externalID string, parentExternalID *string, kind PageKind) error
	UpdateCuratedFields(ctx context.Context, externalID, title, description string, tagNames []string, sourceUpdatedAt time.Time) error
	SyncFromExternal(ctx context.Context, externalID, title, description, authorName string, kind PageKind, tagNames []string, sourceUpdatedAt time.Time) error
	Delete(ctx context.Context, externalID string) error
	DeleteByExternalIDs(ctx context.Context, externalIDs []string) error
	Recent(ctx context.Context, limit int) ([]Page, error)
	Popular(ctx context.Context, limit int) ([]Page, error)
	IncrementViews(ctx context.Context, externalID string) error
	ListTags(ctx context.Context) ([]Tag, error)
}

// GormPageRepository persists pages using a Gorm database connection.
type GormPageRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ PageRepository = (*GormPageRepository)(nil)

// NewPageRepository constructs a Gorm-backed page repository.
func NewPageRepository(db *gorm.DB, logger *logrus.Logger) (*GormPageRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormPageRepository{db: db, logger: logger}, nil
}

// GetByExternalID returns the page for the given external id.
func (r *GormPageRepository) GetByExternalID(ctx context.Context, externalID string) (*Page, error) {
	trimmed := strings.TrimSpace(externalID)
	if trimmed == "" {
		return nil, eris.New("external id is required")
	}

	var page Page
	err := r.db.WithContext(ctx).Preload("Tags").First(&page, "external_id = ?", trimmed).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "page %s", trimmed)
		}
		r.logError(logrus.Fields{"external_id": trimmed}, err, "fetching page by external id")
		return nil, eris.Wrapf(err, "fetching page: %s", trimmed)
	}

	return &page, nil
}

// GetByExternalIDs returns the pages matching the given external ids.
func (r *GormPageRepository) GetByExternalIDs(ctx context.Context, externalIDs []string) ([]Page, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	var pages []Page
	err := r.db.WithContext(ctx).Preload("Tags").Where("external_id IN ?", externalIDs).Find(&pages).Error
	if err != nil {
		r.logError(nil, err, "fetching pages by external ids")
		return nil, eris.Wrap(err, "fetching pages by external ids")
	}

	return pages, nil
}

// GetChildren returns the direct children of the given parent, ordered by
// title. A nil parent selects the mirrored root pages.
func (r *GormPageRepository) GetChildren(ctx context.Context, parentExternalID *string) ([]Page, error) {
	query := r.db.WithContext(ctx).Preload("Tags").Order("title ASC")
	if parentExternalID == nil {
		query = query.Where("parent_external_id IS NULL")
	} else {
		query = query.Where("parent_external_id = ?", *parentExternalID)
	}

	var pages []Page
	if err := query.Find(&pages).Error; err != nil {
		r.logError(nil, err, "listing child pages")
		return nil, eris.Wrap(err, "listing child pages")
	}

	return pages, nil
}

// ChildrenOf returns every page whose parent is one of the given external
// ids. Used by the descendant resolver's frontier expansion.
func (r *GormPageRepository) ChildrenOf(ctx context.Context, parentExternalIDs []string) ([]Page, error) {
	if len(parentExternalIDs) == 0 {
		return nil, nil
	}

	var pages []Page
	err := r.db.WithContext(ctx).Where("parent_external_id IN ?", parentExternalIDs).Find(&pages).Error
	if err != nil {
		r.logError(nil, err, "expanding child frontier")
		return nil, eris.Wrap(err, "expanding child frontier")
	}

	return pages, nil
}

// CountChildren counts the direct children of the given page.
func (r *GormPageRepository) CountChildren(ctx context.Context, externalID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Page{}).Where("parent_external_id = ?", externalID).Count(&count).Error
	if err != nil {
		r.logError(logrus.Fields{"external_id": externalID}, err, "counting children")
		return 0, eris.Wrapf(err, "counting children of %s", externalID)
	}

	return count, nil
}

// ListExternalIDs returns the external ids of every mirrored page.
func (r *GormPageRepository) ListExternalIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&Page{}).Pluck("external_id", &ids).Error
	if err != nil {
		r.logError(nil, err, "listing external ids")
		return nil, eris.Wrap(err, "listing external ids")
	}

	return ids, nil
}

// Create stores a new mirrored page together with its tags.
func (r *GormPageRepository) Create(ctx context.Context, page *Page, tagNames []string) error {
	if page == nil {
		return eris.New("page is nil")
	}
	if strings.TrimSpace(page.ExternalID) == "" {
		return eris.New("page external id is required")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := upsertTags(tx, tagNames)
		if err != nil {
			r.logError(logrus.Fields{"external_id": page.ExternalID}, err, "upserting tags")
			return err
		}
		page.Tags = tags

		if err := tx.Create(page).Error; err != nil {
			r.logError(logrus.Fields{"external_id": page.ExternalID}, err, "creating page")
			return eris.Wrapf(err, "creating page: %s", page.ExternalID)
		}

		return nil
	})
}

// UpdatePositionAndKind refreshes only the structural fields of a page.
// Bulk reconciliation uses this so curated metadata is never clobbered.
func (r *GormPageRepository) UpdatePositionAndKind(ctx context.Context, externalID string, parentExternalID *string, kind PageKind) error {
	result := r.db.WithContext(ctx).Model(&Page{}).
		Where("external_id = ?", externalID).
		Updates(map[string]any{"parent_external_id": parentExternalID, "kind": kind})
	if result.Error != nil {
		r.logError(logrus.Fields{"external_id": externalID}, result.Error, "updating position and kind")
		return eris.Wrapf(result.Error, "updating position and kind: %s", externalID)
	}
	if result.RowsAffected == 0 {
		return eris.Wrapf(ErrNotFound, "page %s", externalID)
	}

	return nil
}

// UpdateCuratedFields updates the descriptive metadata of a page. Used only
// by the authoring and editing workflow, never by bulk reconciliation.
func (r *GormPageRepository) UpdateCuratedFields(ctx context.Context, externalID, title, description string, tagNames []string, sourceUpdatedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var page Page
		if err := tx.First(&page, "external_id = ?", externalID).Error; err != nil {
			if eris.Is(err, gorm.ErrRecordNotFound) {
				return eris.Wrapf(ErrNotFound, "page %s", externalID)
			}
			return eris.Wrapf(err, "fetching page for curated update: %s", externalID)
		}

		updates := map[string]any{
			"title":       title,
			"slug":        Slugify(title),
			"description": description,
		}
		if !sourceUpdatedAt.IsZero() {
			updates["source_updated_at"] = sourceUpdatedAt
		}

		if err := tx.Model(&page).Updates(updates).Error; err != nil {
			r.logError(logrus.Fields{"external_id": externalID}, err, "updating curated fields")
			return eris.Wrapf(err, "updating curated fields: %s", externalID)
		}

		if tagNames != nil {
			tags, err := upsertTags(tx, tagNames)
			if err != nil {
				return err
			}
			if err := tx.Model(&page).Association("Tags").Replace(tags); err != nil {
				return eris.Wrapf(err, "replacing tags: %s", externalID)
			}
		}

		return nil
	})
}

// SyncFromExternal refreshes a page from a fresh external snapshot. Used by
// the approval workflow, where the external body is re-read on purpose.
func (r *GormPageRepository) SyncFromExternal(ctx context.Context, externalID, title, description, authorName string, kind PageKind, tagNames []string, sourceUpdatedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var page Page
		if err := tx.First(&page, "external_id = ?", externalID).Error; err != nil {
			if eris.Is(err, gorm.ErrRecordNotFound) {
				return eris.Wrapf(ErrNotFound, "page %s", externalID)
			}
			return eris.Wrapf(err, "fetching page for sync: %s", externalID)
		}

		updates := map[string]any{
			"title":       title,
			"slug":        Slugify(title),
			"description": description,
			"author_name": authorName,
			"kind":        kind,
		}
		if !sourceUpdatedAt.IsZero() {
			updates["source_updated_at"] = sourceUpdatedAt
		}

		if err := tx.Model(&page).Updates(updates).Error; err != nil {
			r.logError(logrus.Fields{"external_id": externalID}, err, "syncing page from external data")
			return eris.Wrapf(err, "syncing page: %s", externalID)
		}

		tags, err := upsertTags(tx, tagNames)
		if err != nil {
			return err
		}
		if err := tx.Model(&page).Association("Tags").Replace(tags); err != nil {
			return eris.Wrapf(err, "replacing tags: %s", externalID)
		}

		return nil
	})
}

// Delete removes a page and its submission record. It fails with
// ErrHasChildren while other pages still reference the target as parent, so
// the mirror never contains a dangling parent pointer.
func (r *GormPageRepository) Delete(ctx context.Context, externalID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var page Page
		if err := tx.First(&page, "external_id = ?", externalID).Error; err != nil {
			if eris.Is(err, gorm.ErrRecordNotFound) {
				return eris.Wrapf(ErrNotFound, "page %s", externalID)
			}
			return eris.Wrapf(err, "fetching page for delete: %s", externalID)
		}

		var children int64
		if err := tx.Model(&Page{}).Where("parent_external_id = ?", externalID).Count(&children).Error; err != nil {
			return eris.Wrapf(err, "counting children of %s", externalID)
		}
		if children > 0 {
			return eris.Wrapf(ErrHasChildren, "page %s has %d children", externalID, children)
		}

		// The submission row goes first to satisfy the foreign-key direction.
		if err := tx.Where("external_id = ?", externalID).Delete(&Submission{}).Error; err != nil {
			return eris.Wrapf(err, "deleting submission for %s", externalID)
		}

		if err := tx.Model(&page).Association("Tags").Clear(); err != nil {
			return eris.Wrapf(err, "clearing tags for %s", externalID)
		}

		if err := tx.Unscoped().Delete(&page).Error; err != nil {
			r.logError(logrus.Fields{"external_id": externalID}, err, "deleting page")
			return eris.Wrapf(err, "deleting page: %s", externalID)
		}

		return nil
	})
}

// DeleteByExternalIDs removes pages and their submissions without the
// children guard. Only the reconciliation prune phase uses this, where whole
// orphaned subtrees disappear together.
func (r *GormPageRepository) DeleteByExternalIDs(ctx context.Context, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("external_id IN ?", externalIDs).Delete(&Submission{}).Error; err != nil {
			return eris.Wrap(err, "pruning submissions")
		}

		var pages []Page
		if err := tx.Where("external_id IN ?", externalIDs).Find(&pages).Error; err != nil {
			return eris.Wrap(err, "fetching pages to prune")
		}
		for i := range pages {
			if err := tx.Model(&pages[i]).Association("Tags").Clear(); err != nil {
				return eris.Wrap(err, "clearing pruned page tags")
			}
		}

		if err := tx.Unscoped().Where("external_id IN ?", externalIDs).Delete(&Page{}).Error; err != nil {
			r.logError(nil, err, "pruning pages")
			return eris.Wrap(err, "pruning pages")
		}

		return nil
	})
}

// Recent returns the most recently updated articles.
func (r *GormPageRepository) Recent(ctx context.Context, limit int) ([]Page, error) {
	return r.listArticles(ctx, "source_updated_at DESC", limit)
}

// Popular returns the most viewed articles.
func (r *GormPageRepository) Popular(ctx context.Context, limit int) ([]Page, error) {
	return r.listArticles(ctx, "view_count DESC", limit)
}

func (r *GormPageRepository) listArticles(ctx context.Context, order string, limit int) ([]Page, error) {
	if limit <= 0 {
		limit = 6
	}

	var pages []Page
	err := r.db.WithContext(ctx).Preload("Tags").
		Where("kind = ?", KindArticle).
		Order(order).Limit(limit).Find(&pages).Error
	if err != nil {
		r.logError(nil, err, "listing articles")
		return nil, eris.Wrap(err, "listing articles")
	}

	return pages, nil
}

// IncrementViews bumps the view counter for a page.
func (r *GormPageRepository) IncrementViews(ctx context.Context, externalID string) error {
	err := r.db.WithContext(ctx).Model(&Page{}).
		Where("external_id = ?", externalID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
	if err != nil {
		r.logError(logrus.Fields{"external_id": externalID}, err, "incrementing view count")
		return eris.Wrapf(err, "incrementing views: %s", externalID)
	}

	return nil
}

// ListTags returns every tag ordered by name.
func (r *GormPageRepository) ListTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		r.logError(nil, err, "listing tags")
		return nil, eris.Wrap(err, "listing tags")
	}

	return tags, nil
}

func (r *GormPageRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

func upsertTags(tx *gorm.DB, tagNames []string) ([]Tag, error) {
	tags := make([]Tag, 0, len(tagNames))
	for _, name := range tagNames {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}

		var tag Tag
		err := tx.Where("name = ?", trimmed).First(&tag).Error
		switch {
		case err == nil:
		case eris.Is(err, gorm.ErrRecordNotFound):
			tag = Tag{Name: trimmed, Slug: Slugify(trimmed)}
			if createErr := tx.Create(&tag).Error; createErr != nil {
				return nil, eris.Wrapf(createErr, "creating tag: %s", trimmed)
			}
		default:
			return nil, eris.Wrapf(err, "fetching tag: %s", trimmed)
		}

		tags = append(tags, tag)
	}

	return tags, nil
}
