// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Contact
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Cluster semantics (who is primary, when
// to merge) live in services.IdentityService.
//
// Error semantics:
//   - When a contact is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Soft-deleted rows are excluded from every query by GORM's DeletedAt
// handling; nothing in this package ever sets deleted_at.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-identity-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// FindByEmailOrPhone returns every contact whose email matches the given
// email (when non-nil and non-empty) or whose phone number matches the given
// phone, ordered by creation time ascending then id. Passing both selectors
// ORs them; passing neither yields an empty slice without touching the DB.
func FindByEmailOrPhone(ctx context.Context, db *gorm.DB, email, phone *string) ([]domain.Contact, error) {
	hasEmail := email != nil && *email != ""
	hasPhone := phone != nil && *phone != ""
	if !hasEmail && !hasPhone {
		return []domain.Contact{}, nil
	}

	q := db.WithContext(ctx).Model(&domain.Contact{})
	switch {
	case hasEmail && hasPhone:
		q = q.Where("email = ? OR phone_number = ?", *email, *phone)
	case hasEmail:
		q = q.Where("email = ?", *email)
	default:
		q = q.Where("phone_number = ?", *phone)
	}

	var out []domain.Contact
	err := q.Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// FindContact fetches a contact by id, or ErrNotFound if missing.
func FindContact(ctx context.Context, db *gorm.DB, id int64) (*domain.Contact, error) {
	var c domain.Contact
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByLinkedID returns the secondaries pointing at primaryID, ordered by
// creation time ascending then id.
func FindByLinkedID(ctx context.Context, db *gorm.DB, primaryID int64) ([]domain.Contact, error) {
	var out []domain.Contact
	err := db.WithContext(ctx).
		Where("linked_id = ?", primaryID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ClusterContacts returns the full cluster for primaryID: the primary row
// itself plus every contact linked to it, ordered by creation time ascending
// then id.
func ClusterContacts(ctx context.Context, db *gorm.DB, primaryID int64) ([]domain.Contact, error) {
	var out []domain.Contact
	err := db.WithContext(ctx).
		Where("id = ? OR linked_id = ?", primaryID, primaryID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CreateContact inserts a new contact row. linkedID must be nil for primary
// rows and must name the cluster primary for secondary rows; precedence is
// one of domain.PrecedencePrimary / domain.PrecedenceSecondary. CreatedAt is
// set to UTC.
//
// Presence of at least one identifier is the caller's responsibility (the
// service validates before reaching the store).
func CreateContact(ctx context.Context, db *gorm.DB, email, phone *string, linkedID *int64, precedence string) (*domain.Contact, error) {
	c := &domain.Contact{
		Email:          normalizePtr(email),
		PhoneNumber:    normalizePtr(phone),
		LinkedID:       linkedID,
		LinkPrecedence: precedence,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// DemoteContact rewrites a primary row to secondary, pointing it at
// primaryID and refreshing updated_at. If no rows are affected (contact
// missing), it returns ErrNotFound.
func DemoteContact(ctx context.Context, db *gorm.DB, id, primaryID int64) error {
	res := db.WithContext(ctx).
		Model(&domain.Contact{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"link_precedence": domain.PrecedenceSecondary,
			"linked_id":       primaryID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RelinkContact re-points an existing secondary at primaryID (chain
// flattening during a merge), refreshing updated_at. If no rows are affected
// it returns ErrNotFound.
func RelinkContact(ctx context.Context, db *gorm.DB, id, primaryID int64) error {
	res := db.WithContext(ctx).
		Model(&domain.Contact{}).
		Where("id = ?", id).
		Update("linked_id", primaryID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountContacts returns the total number of contact rows.
func CountContacts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Contact{}).Count(&total).Error
	return total, err
}

// ListContactsPage returns a paginated slice of contacts ordered by creation
// time ascending then id. The caller is responsible for computing offset and
// limit (e.g., (page-1)*pageSize).
func ListContactsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Contact, error) {
	var out []domain.Contact
	err := db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// normalizePtr maps nil-or-empty strings to nil so the column stays NULL
// rather than storing "".
func normalizePtr(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
