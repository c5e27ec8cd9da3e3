// Identify HTTP handler.
//
// This file exposes the identity-resolution endpoint:
//   - POST /identify
//
// The handler is transport-thin: it decodes and validates the submission
// (coercing numeric phone values to strings), calls the identity service, and
// translates the result into HTTP responses. When a valid Idempotency-Key
// replay is detected it re-renders the previously resolved cluster instead of
// re-entering the resolution path.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-identity-backend/internal/domain"
	"github.com/tbourn/go-identity-backend/internal/http/middleware"
	"github.com/tbourn/go-identity-backend/internal/repo"
	"github.com/tbourn/go-identity-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// IdentityService defines the resolution operation consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type IdentityService interface {
	// Resolve links the submitted identifiers into a cluster and returns its
	// consolidated view.
	Resolve(ctx context.Context, email, phone *string) (*domain.ConsolidatedContact, error)
}

// ClusterService defines the read-only cluster operations consumed by HTTP
// handlers.
type ClusterService interface {
	// Get returns the consolidated view of the cluster containing contact id.
	Get(ctx context.Context, id int64) (*domain.ConsolidatedContact, error)
	// ListPage returns a page of raw contact rows and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Contact, int64, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for identity resolution and cluster
// inspection. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	idSvc      IdentityService
	clusterSvc ClusterService

	// IdempotencyTTL bounds how long a replay record stays valid.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(idSvc IdentityService, clusterSvc ClusterService, idemTTL time.Duration) *Handlers {
	return &Handlers{idSvc: idSvc, clusterSvc: clusterSvc, IdempotencyTTL: idemTTL}
}

//
// DTOs
//

// FlexString decodes a JSON string or number into its string form. The
// identify contract allows phoneNumber to arrive as either; numbers are
// coerced without losing digits (no float round-trip).
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = ""
	case string:
		*f = FlexString(t)
	case json.Number:
		*f = FlexString(t.String())
	default:
		return fmt.Errorf("phoneNumber must be a string or number, got %T", v)
	}
	return nil
}

// IdentifyRequest is the JSON payload for the identify endpoint.
type IdentifyRequest struct {
	// Email optionally identifies the customer by address.
	Email *string `json:"email" example:"mcfly@hillvalley.edu"`
	// PhoneNumber optionally identifies the customer; string or number.
	PhoneNumber *FlexString `json:"phoneNumber" swaggertype:"string" example:"555123"`
}

// IdentifyResponse wraps the consolidated cluster view.
type IdentifyResponse struct {
	Contact domain.ConsolidatedContact `json:"contact"`
}

//
// Handlers
//

// Identify godoc
// @ID          identify
// @Summary     Resolve a contact submission into its identity cluster
// @Description Links the submitted email/phone pair to existing contacts, merging clusters and recording new information, and returns the consolidated view.
// @Tags        Identity
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Replay a previously completed submission"
// @Param       body             body    handlers.IdentifyRequest  true  "Identify payload"
//
// @Success     200  {object}  handlers.IdentifyResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing identifiers or bad JSON"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /identify [post]
func (h *Handlers) Identify(c *gin.Context) {
	ctx := c.Request.Context()

	// Serve a detected replay from the stored cluster reference.
	if middleware.IsReplay(c) {
		if view, ok := h.replayView(c); ok {
			writeContact(c, view)
			return
		}
		// Fall through to normal resolution when the record went away.
	}

	var req IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, MsgInvalidJSON)
		return
	}

	email := req.Email
	phone := (*string)(req.PhoneNumber)
	if isBlank(email) && isBlank(phone) {
		fail(c, http.StatusBadRequest, MsgIdentifierRequired)
		return
	}

	view, err := h.idSvc.Resolve(ctx, email, phone)
	if err != nil {
		if errors.Is(err, services.ErrMissingIdentifier) {
			fail(c, http.StatusBadRequest, MsgIdentifierRequired)
			return
		}
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, MsgInternalError)
		return
	}

	h.recordIdempotency(c, view.PrimaryContactID)
	writeContact(c, view)
}

// replayView loads the cluster referenced by the request's idempotency record.
func (h *Handlers) replayView(c *gin.Context) (*domain.ConsolidatedContact, bool) {
	key, present := middleware.GetIdempotencyKey(c)
	if !present {
		return nil, false
	}
	svc, okAssert := h.idSvc.(*services.IdentityService)
	if !okAssert {
		return nil, false
	}
	rec, err := repo.GetIdempotency(c.Request.Context(), svc.DB, key, time.Now().UTC())
	if err != nil {
		return nil, false
	}
	view, err := h.clusterSvc.Get(c.Request.Context(), rec.PrimaryContactID)
	if err != nil {
		return nil, false
	}
	return view, true
}

// recordIdempotency persists the key→cluster mapping, best effort. Duplicate
// keys are fine: the earlier record already points at the same cluster.
func (h *Handlers) recordIdempotency(c *gin.Context, primaryID int64) {
	key, present := middleware.GetIdempotencyKey(c)
	if !present || h.IdempotencyTTL <= 0 {
		return
	}
	svc, okAssert := h.idSvc.(*services.IdentityService)
	if !okAssert {
		return
	}
	ttl := h.IdempotencyTTL
	if _, err := repo.CreateIdempotency(c.Request.Context(), svc.DB, key, primaryID, http.StatusOK, ttl); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not saved")
	}
}

// writeContact writes the identify success envelope.
func writeContact(c *gin.Context, view *domain.ConsolidatedContact) {
	ok(c, http.StatusOK, IdentifyResponse{Contact: *view})
}

// isBlank reports whether an optional string is nil or empty.
func isBlank(s *string) bool { return s == nil || *s == "" }
