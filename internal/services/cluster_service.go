// Package services – ClusterService
//
// This file implements ClusterService, the read-only companion to
// IdentityService. It renders the consolidated view of the cluster a given
// contact belongs to (resolving the ultimate primary first, so looking up a
// secondary lands on its cluster) and provides a paginated raw listing of
// contact rows for debugging and operations.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-identity-backend/internal/domain"
	"github.com/tbourn/go-identity-backend/internal/repo"
	"github.com/tbourn/go-identity-backend/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ClusterService exposes read paths over identity clusters.
type ClusterService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewClusterService constructs a ClusterService bound to the given store.
func NewClusterService(db *gorm.DB) *ClusterService {
	return &ClusterService{DB: db}
}

// Get returns the consolidated view of the cluster containing contact id.
// The id may name a primary or a secondary; either way the view is rooted at
// the cluster's ultimate primary. ErrContactNotFound when no such contact
// exists.
func (s *ClusterService) Get(ctx context.Context, id int64) (*domain.ConsolidatedContact, error) {
	tr := otel.Tracer("services/ClusterService")
	ctx, span := tr.Start(ctx, "Get")
	defer span.End()

	c, err := repo.FindContact(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}

	prim, err := resolveUltimatePrimary(ctx, s.DB, c)
	if err != nil {
		return nil, err
	}
	members, err := repo.ClusterContacts(ctx, s.DB, prim.ID)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("identity.primary_id", prim.ID),
		attribute.Int("identity.cluster_size", len(members)),
	)
	return consolidate(members, prim.ID), nil
}

// ListPage returns a page of raw contact rows and the total count.
// It applies defaults for invalid page/pageSize.
func (s *ClusterService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Contact, int64, error) {
	page, pageSize = utils.ClampPage(page, pageSize, 20, 0)
	offset := (page - 1) * pageSize

	total, err := repo.CountContacts(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Contact{}, 0, nil
	}

	items, err := repo.ListContactsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}
