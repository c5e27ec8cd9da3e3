// Package services – IdentityService
//
// This file implements IdentityService, the application-level component that
// owns identity resolution. Given an observed (email, phoneNumber) pair it
// finds every contact already associated with either value, merges previously
// separate clusters when the submission bridges them, records genuinely new
// information as a secondary contact, and renders the canonical consolidated
// view of the resulting cluster.
//
// The whole fetch-decide-mutate-refetch sequence runs inside one database
// transaction so a failure mid-merge never leaves a cluster with two
// inconsistently demoted primaries. On top of that, per-identifier advisory
// locks serialize racing submissions that touch overlapping identifiers, so
// two concurrent "no match" observations cannot create two primaries for the
// same person.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// record identifiers and outcome flags, never raw email or phone values.

package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-identity-backend/internal/domain"
	"github.com/tbourn/go-identity-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxChainDepth bounds linkedId chain walking; consistent data never needs
// more than one hop, anything deeper is treated as corruption.
const maxChainDepth = 16

// Resolution outcomes reported via metrics and spans.
const (
	outcomeCreatedPrimary   = "created_primary"
	outcomeCreatedSecondary = "created_secondary"
	outcomeMerged           = "merged"
	outcomeNoop             = "noop"
)

// IdentityService resolves contact submissions into identity clusters.
type IdentityService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	locks *identifierLocks
}

// NewIdentityService constructs an IdentityService bound to the given store.
func NewIdentityService(db *gorm.DB) *IdentityService {
	return &IdentityService{
		DB:    db,
		locks: newIdentifierLocks(),
	}
}

// Resolve implements the identity-linking operation. At least one of email
// and phone must be non-empty; otherwise ErrMissingIdentifier is returned
// without any store access.
//
// The returned view always describes the full, current cluster: the surviving
// primary's id, the distinct emails and phone numbers (primary's own value
// first), and the ascending ids of every secondary.
func (s *IdentityService) Resolve(ctx context.Context, email, phone *string) (*domain.ConsolidatedContact, error) {
	e := normalizeIdentifier(email)
	p := normalizeIdentifier(phone)
	if e == nil && p == nil {
		return nil, ErrMissingIdentifier
	}

	tr := otel.Tracer("services/IdentityService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.Bool("identity.has_email", e != nil),
			attribute.Bool("identity.has_phone", p != nil),
		),
	)
	defer span.End()

	// Serialize racing submissions over the same identifiers (the store-side
	// concurrency contract: at most one in-flight mutation per overlapping
	// cluster).
	release := s.locks.acquire(lockKeys(e, p))
	defer release()

	var (
		view    *domain.ConsolidatedContact
		outcome string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		view, outcome, txErr = s.resolveTx(ctx, tx, e, p)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	resolveOutcomes.WithLabelValues(outcome).Inc()
	span.SetAttributes(
		attribute.String("identity.outcome", outcome),
		attribute.Int64("identity.primary_id", view.PrimaryContactID),
		attribute.Int("identity.secondaries", len(view.SecondaryContactIDs)),
	)
	return view, nil
}

// resolveTx runs the resolution algorithm inside one transaction.
func (s *IdentityService) resolveTx(ctx context.Context, tx *gorm.DB, email, phone *string) (*domain.ConsolidatedContact, string, error) {
	// 1. Candidate fetch: seeds matching either identifier.
	seeds, err := repo.FindByEmailOrPhone(ctx, tx, email, phone)
	if err != nil {
		return nil, "", err
	}

	// 4. No match: the submission is a brand-new identity.
	if len(seeds) == 0 {
		c, err := repo.CreateContact(ctx, tx, email, phone, nil, domain.PrecedencePrimary)
		if err != nil {
			return nil, "", err
		}
		return consolidate([]domain.Contact{*c}, c.ID), outcomeCreatedPrimary, nil
	}

	// 2./3. Cluster expansion and dedup, ordered oldest first.
	cluster, err := expandClusters(ctx, tx, seeds)
	if err != nil {
		return nil, "", err
	}

	// 5. The oldest primary survives; seniority is the only tie-break.
	chosen, err := choosePrimary(ctx, tx, cluster, seeds)
	if err != nil {
		return nil, "", err
	}

	// 6. Merge: demote every other primary, re-point strays so no secondary
	// ever links to another secondary.
	merged := false
	for i := range cluster {
		m := &cluster[i]
		if m.ID == chosen.ID {
			continue
		}
		if m.IsPrimary() {
			if err := repo.DemoteContact(ctx, tx, m.ID, chosen.ID); err != nil {
				return nil, "", err
			}
			merged = true
			continue
		}
		if m.LinkedID == nil || *m.LinkedID != chosen.ID {
			if err := repo.RelinkContact(ctx, tx, m.ID, chosen.ID); err != nil {
				return nil, "", err
			}
		}
	}

	// 7. New-information check: unseen email or phone creates a secondary,
	// unless the exact pair already exists verbatim in the cluster.
	created := false
	if hasNewInformation(cluster, email, phone) {
		if _, err := repo.CreateContact(ctx, tx, email, phone, &chosen.ID, domain.PrecedenceSecondary); err != nil {
			return nil, "", err
		}
		created = true
	}

	// 8. Re-fetch post-merge state and assemble the response.
	if _, err := repo.FindContact(ctx, tx, chosen.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, "", ErrClusterInconsistent
		}
		return nil, "", err
	}
	members, err := repo.ClusterContacts(ctx, tx, chosen.ID)
	if err != nil {
		return nil, "", err
	}

	outcome := outcomeNoop
	switch {
	case merged:
		outcome = outcomeMerged
	case created:
		outcome = outcomeCreatedSecondary
	}
	return consolidate(members, chosen.ID), outcome, nil
}

// expandClusters grows the seed set to full clusters: each seed contributes
// its ultimate primary plus all of that primary's secondaries. The result is
// deduplicated by id and ordered by creation time ascending.
func expandClusters(ctx context.Context, tx *gorm.DB, seeds []domain.Contact) ([]domain.Contact, error) {
	byID := make(map[int64]domain.Contact, len(seeds)*2)
	for i := range seeds {
		prim, err := resolveUltimatePrimary(ctx, tx, &seeds[i])
		if err != nil {
			return nil, err
		}
		byID[prim.ID] = *prim
		secs, err := repo.FindByLinkedID(ctx, tx, prim.ID)
		if err != nil {
			return nil, err
		}
		for _, s := range secs {
			byID[s.ID] = s
		}
		// A seed whose chain is broken may be neither the resolved node nor
		// one of its children; keep it in the working set regardless.
		byID[seeds[i].ID] = seeds[i]
	}

	out := make([]domain.Contact, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// resolveUltimatePrimary follows linkedId references until a primary is
// reached. The walk is bounded, and a dangling reference stops at the last
// resolved record instead of failing the request; both conditions are logged
// as data corruption.
func resolveUltimatePrimary(ctx context.Context, tx *gorm.DB, c *domain.Contact) (*domain.Contact, error) {
	cur := c
	for hops := 0; !cur.IsPrimary() && cur.LinkedID != nil; hops++ {
		if hops >= maxChainDepth {
			log.Warn().Int64("contact_id", c.ID).Int("hops", hops).
				Msg("link chain exceeds depth bound; stopping at last resolved record")
			break
		}
		parent, err := repo.FindContact(ctx, tx, *cur.LinkedID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				log.Warn().Int64("contact_id", cur.ID).Int64("linked_id", *cur.LinkedID).
					Msg("dangling linked_id; stopping at last resolved record")
				break
			}
			return nil, err
		}
		cur = parent
	}
	return cur, nil
}

// choosePrimary returns the surviving primary for the merged cluster: the
// oldest record flagged primary, falling back to the oldest seed's ultimate
// resolution when the cluster carries no primary flag at all (data anomaly).
func choosePrimary(ctx context.Context, tx *gorm.DB, cluster, seeds []domain.Contact) (*domain.Contact, error) {
	for i := range cluster {
		if cluster[i].IsPrimary() {
			return &cluster[i], nil
		}
	}
	// No primary flagged anywhere: resolve the oldest seed as far as the
	// chain allows and use whatever it stops at.
	log.Warn().Int64("seed_id", seeds[0].ID).
		Msg("no primary flagged in cluster; resolving oldest seed")
	return resolveUltimatePrimary(ctx, tx, &seeds[0])
}

// hasNewInformation reports whether the submission carries an email or phone
// value not yet present in the cluster. An exact (email, phone) pair already
// present verbatim on some record suppresses creation even when one field
// looks new relative to other records.
func hasNewInformation(cluster []domain.Contact, email, phone *string) bool {
	emails := make(map[string]struct{}, len(cluster))
	phones := make(map[string]struct{}, len(cluster))
	for i := range cluster {
		c := &cluster[i]
		if c.Email != nil {
			emails[*c.Email] = struct{}{}
		}
		if c.PhoneNumber != nil {
			phones[*c.PhoneNumber] = struct{}{}
		}
		if email != nil && phone != nil &&
			c.EmailValue() == *email && c.PhoneValue() == *phone {
			return false
		}
	}
	if email != nil {
		if _, ok := emails[*email]; !ok {
			return true
		}
	}
	if phone != nil {
		if _, ok := phones[*phone]; !ok {
			return true
		}
	}
	return false
}

// consolidate renders the canonical view of a cluster. Members must be
// ordered by creation time ascending; the primary's own values lead each
// list, followed by every other distinct non-null value in first-encounter
// order. Secondary ids are sorted ascending.
func consolidate(members []domain.Contact, primaryID int64) *domain.ConsolidatedContact {
	view := &domain.ConsolidatedContact{
		PrimaryContactID:    primaryID,
		Emails:              []string{},
		PhoneNumbers:        []string{},
		SecondaryContactIDs: []int64{},
	}

	seenEmail := make(map[string]struct{}, len(members))
	seenPhone := make(map[string]struct{}, len(members))
	appendEmail := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seenEmail[v]; ok {
			return
		}
		seenEmail[v] = struct{}{}
		view.Emails = append(view.Emails, v)
	}
	appendPhone := func(v string) {
		if v == "" {
			return
		}
		if _, ok := seenPhone[v]; ok {
			return
		}
		seenPhone[v] = struct{}{}
		view.PhoneNumbers = append(view.PhoneNumbers, v)
	}

	// Primary first.
	for i := range members {
		if members[i].ID == primaryID {
			appendEmail(members[i].EmailValue())
			appendPhone(members[i].PhoneValue())
			break
		}
	}
	for i := range members {
		m := &members[i]
		if m.ID != primaryID {
			view.SecondaryContactIDs = append(view.SecondaryContactIDs, m.ID)
		}
		appendEmail(m.EmailValue())
		appendPhone(m.PhoneValue())
	}

	sort.Slice(view.SecondaryContactIDs, func(i, j int) bool {
		return view.SecondaryContactIDs[i] < view.SecondaryContactIDs[j]
	})
	return view
}

// normalizeIdentifier trims whitespace and maps empty values to nil.
func normalizeIdentifier(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// lockKeys derives the advisory-lock keys for a submission, sorted so that
// overlapping Resolve calls always acquire them in the same order.
func lockKeys(email, phone *string) []string {
	keys := make([]string, 0, 2)
	if email != nil {
		keys = append(keys, "email:"+*email)
	}
	if phone != nil {
		keys = append(keys, "phone:"+*phone)
	}
	sort.Strings(keys)
	return keys
}
