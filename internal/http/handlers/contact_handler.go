// Cluster inspection HTTP handlers.
//
// This file exposes the read-only endpoints:
//   - GET /clusters/:id  — consolidated view of the cluster containing a contact
//   - GET /contacts      — paginated raw contact rows
//
// Cluster reads carry a weak ETag derived from the cluster's membership count
// and latest update time so polling clients can short-circuit with 304.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-identity-backend/internal/domain"
	"github.com/tbourn/go-identity-backend/internal/repo"
	"github.com/tbourn/go-identity-backend/internal/services"
	"github.com/tbourn/go-identity-backend/internal/utils"
)

// ClusterResponse wraps the consolidated view returned by cluster reads.
type ClusterResponse struct {
	Contact domain.ConsolidatedContact `json:"contact"`
}

// ContactListResponse is the paginated contacts envelope.
type ContactListResponse struct {
	Items      []domain.Contact `json:"items"`
	Pagination Pagination       `json:"pagination"`
}

// Pagination carries page metadata for list endpoints.
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

// GetCluster godoc
// @ID          getCluster
// @Summary     Fetch the consolidated cluster containing a contact
// @Description Returns the consolidated view (primary id, emails, phone numbers, secondary ids) of the cluster that contains the given contact id. The contact may be a primary or a secondary; the view is always rendered from the cluster's primary.
// @Tags        Clusters
// @Produce     json
//
// @Param       id  path  int  true  "Contact ID"
//
// @Success     200  {object}  handlers.ClusterResponse
// @Success     304  "Not modified (If-None-Match matched)"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid contact id"
// @Failure     404  {object}  handlers.ErrorResponse  "Contact not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /clusters/{id} [get]
func (h *Handlers) GetCluster(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, MsgInvalidContactID)
		return
	}

	view, err := h.clusterSvc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrContactNotFound) {
			fail(c, http.StatusNotFound, MsgContactNotFound)
			return
		}
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, MsgInternalError)
		return
	}

	if etag, okTag := h.clusterETag(c, view.PrimaryContactID); okTag {
		c.Header("ETag", etag)
		// Override any blanket no-store so conditional revalidation works.
		c.Header("Cache-Control", "private, no-cache")
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	ok(c, http.StatusOK, ClusterResponse{Contact: *view})
}

// clusterETag derives a weak validator from the cluster's size and most recent
// update. Any membership or field change on any member invalidates it.
func (h *Handlers) clusterETag(c *gin.Context, primaryID int64) (string, bool) {
	svc, okAssert := h.idSvc.(*services.IdentityService)
	if !okAssert {
		return "", false
	}
	count, maxUpdated, err := repo.ClusterStats(c.Request.Context(), svc.DB, primaryID)
	if err != nil || maxUpdated == nil {
		return "", false
	}
	return fmt.Sprintf(`W/"c%d-n%d-t%d"`, primaryID, count, maxUpdated.UnixNano()), true
}

// ListContacts godoc
// @ID          listContacts
// @Summary     List contact rows
// @Description Returns raw contact rows ordered by creation time, paginated via the page and pageSize query parameters.
// @Tags        Clusters
// @Produce     json
//
// @Param       page      query  int  false  "Page number (1-based)"   default(1)
// @Param       pageSize  query  int  false  "Rows per page (max 100)" default(20)
//
// @Success     200  {object}  handlers.ContactListResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /contacts [get]
func (h *Handlers) ListContacts(c *gin.Context) {
	ctx := c.Request.Context()

	page := utils.AtoiDefault(c.Query("page"), 1)
	pageSize := utils.AtoiDefault(c.Query("pageSize"), 20)
	page, pageSize = utils.ClampPage(page, pageSize, 20, 100)

	items, total, err := h.clusterSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, MsgInternalError)
		return
	}
	if items == nil {
		items = []domain.Contact{}
	}

	ok(c, http.StatusOK, ContactListResponse{
		Items:      items,
		Pagination: Pagination{Page: page, PageSize: pageSize, Total: total},
	})
}
