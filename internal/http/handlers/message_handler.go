// Message HTTP handlers.
//
// This file exposes REST endpoints for message resources:
//   - POST   /messages              (submit for delivery, idempotent)
//   - GET    /messages              (list, paginated, ETag support)
//   - GET    /messages/{id}         (delivery status)
//   - POST   /messages/{id}/cancel  (cancel while still queued)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
	"github.com/rzilem/Community-Intelligence-sub005/internal/http/middleware"
	"github.com/rzilem/Community-Intelligence-sub005/internal/repo"
	"github.com/rzilem/Community-Intelligence-sub005/internal/routing"
	"github.com/rzilem/Community-Intelligence-sub005/internal/services"
	"github.com/rzilem/Community-Intelligence-sub005/internal/utils"
)

//
// Service contracts (context-aware)
//

// MessageService defines message lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageService interface {
	// Submit persists a queued message for tenantID and starts delivery.
	Submit(ctx context.Context, tenantID string, in services.SubmitInput) (*domain.Message, error)
	// Status returns the current state of a message owned by tenantID.
	Status(ctx context.Context, tenantID, id string) (*domain.Message, error)
	// Cancel stops a message that is still queued.
	Cancel(ctx context.Context, tenantID, id string) error
	// ListPage returns a page of the tenant's messages and the total count.
	ListPage(ctx context.Context, tenantID string, page, pageSize int) ([]domain.Message, int64, error)
}

// ChannelService defines channel configuration operations consumed by HTTP
// handlers.
type ChannelService interface {
	// Create validates and persists a new channel for tenantID.
	Create(ctx context.Context, tenantID string, ch *domain.Channel) (*domain.Channel, error)
	// Get returns a channel owned by tenantID.
	Get(ctx context.Context, tenantID, id string) (*domain.Channel, error)
	// List returns all channels for tenantID, active first.
	List(ctx context.Context, tenantID string) ([]domain.Channel, error)
	// Update replaces the mutable fields of a channel owned by tenantID.
	Update(ctx context.Context, tenantID, id string, ch *domain.Channel) (*domain.Channel, error)
	// Deactivate removes a channel from the active delivery set.
	Deactivate(ctx context.Context, tenantID, id string) error
}

// RoutingService defines routing rule management and event classification
// operations consumed by HTTP handlers.
type RoutingService interface {
	// CreateRule validates and persists a new routing rule for tenantID.
	CreateRule(ctx context.Context, tenantID string, r *domain.RoutingRule) (*domain.RoutingRule, error)
	// GetRule returns a rule owned by tenantID.
	GetRule(ctx context.Context, tenantID, id string) (*domain.RoutingRule, error)
	// ListRules returns all rules for tenantID in evaluation order.
	ListRules(ctx context.Context, tenantID string) ([]domain.RoutingRule, error)
	// Route classifies an event against the tenant's active rules.
	Route(ctx context.Context, tenantID string, event map[string]any) (routing.Result, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for messages, channels, and routing rules.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	msgSvc     MessageService
	channelSvc ChannelService
	routingSvc RoutingService
	idemTTL    time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
// idemTTL controls how long a stored Idempotency-Key replay stays valid.
func New(msgSvc MessageService, channelSvc ChannelService, routingSvc RoutingService, idemTTL time.Duration) *Handlers {
	return &Handlers{msgSvc: msgSvc, channelSvc: channelSvc, routingSvc: routingSvc, idemTTL: idemTTL}
}

// tenantID extracts the authenticated tenant id from Gin context (set by
// upstream middleware). If absent, it falls back to "X-Tenant-ID" header
// (tests use it), and finally to "demo-tenant". It never touches c.Request
// if it's nil.
func tenantID(c *gin.Context) string {
	if v, ok := c.Get("tenantID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Tenant-ID")); h != "" {
			return h
		}
	}
	return "demo-tenant"
}

// db returns the underlying GORM handle when the message service is the
// concrete implementation, enabling best-effort extras (ETag, idempotency
// records) without widening the service interface.
func (h *Handlers) db() *gorm.DB {
	if svc, ok := h.msgSvc.(*services.MessageService); ok {
		return svc.DB
	}
	return nil
}

//
// DTOs
//

// SubmitMessageRequest is the JSON payload for submitting a message.
type SubmitMessageRequest struct {
	// Subject is an optional short summary line.
	Subject string `json:"subject" example:"Maintenance window tonight"`
	// Content is the message body delivered to every recipient.
	Content string `json:"content" binding:"required" example:"The portal is down for maintenance from 22:00 UTC."`
	// Channels lists the channel ids the message may use; at least one
	// is required.
	Channels []string `json:"channels"`
	// Recipients lists the users to deliver to.
	Recipients []domain.Recipient `json:"recipients" binding:"required"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListMessagesResponse wraps a page of messages and pagination information.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// clampPagination bounds the page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(c.Query("page"), c.Query("page_size"))
}

// failFromService translates service-layer sentinel errors into HTTP error
// envelopes using the most specific code available. fallbackCode labels the
// 5xx bucket for anything unrecognized.
func failFromService(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrContentTooLong),
		errors.Is(err, services.ErrSubjectTooLong),
		errors.Is(err, services.ErrNoRecipients),
		errors.Is(err, services.ErrNoChannels),
		errors.Is(err, services.ErrNoActiveChannels),
		errors.Is(err, services.ErrUnknownChannelType),
		errors.Is(err, services.ErrInvalidRateLimit),
		errors.Is(err, services.ErrInvalidCondition),
		errors.Is(err, services.ErrInvalidAction):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrMessageNotFound),
		errors.Is(err, services.ErrChannelNotFound),
		errors.Is(err, services.ErrRuleNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrNotCancellable):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrShuttingDown):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

//
// Handlers
//

// SubmitMessage godoc
// @ID          submitMessage
// @Summary     Submit a message for delivery
// @Description Queues a message and starts asynchronous delivery across the tenant's active channels. Safe to retry with an Idempotency-Key header.
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-Tenant-ID      header  string  false "Tenant ID (demo header)"  example(tenant123)
// @Param       Idempotency-Key  header  string  false "Deduplicates retries of the same submission"
// @Param       body             body    handlers.SubmitMessageRequest  true  "Submit message payload"
//
// @Success     201  {object}  domain.Message
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Failure     503  {object}  handlers.ErrorResponse  "Shutting down"
// @Router      /messages [post]
func (h *Handlers) SubmitMessage(c *gin.Context) {
	ctx := c.Request.Context()
	tid := tenantID(c)

	key, hasKey := middleware.GetIdempotencyKey(c)

	// Serve a stored replay without re-submitting.
	if hasKey && middleware.IsReplay(c) {
		if db := h.db(); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, tid, key, time.Now().UTC()); err == nil {
				if msg, err := h.msgSvc.Status(ctx, tid, rec.MessageID); err == nil {
					ok(c, rec.Status, msg)
					return
				}
			}
		}
		// Replay record vanished underneath us; fall through to a fresh submit.
	}

	var req SubmitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.msgSvc.Submit(ctx, tid, services.SubmitInput{
		Subject:    req.Subject,
		Content:    req.Content,
		Channels:   req.Channels,
		Recipients: req.Recipients,
	})
	if err != nil {
		failFromService(c, err, ErrCodeSubmitFailed)
		return
	}

	// Record the key so retries replay this response (best effort).
	if hasKey {
		if db := h.db(); db != nil {
			_, _ = repo.CreateIdempotency(ctx, db, tid, key, msg.ID, http.StatusCreated, h.idemTTL)
		}
	}

	ok(c, http.StatusCreated, msg)
}

// GetMessage godoc
// @ID          getMessage
// @Summary     Get message delivery status
// @Description Returns a message with its current status and delivery stats.
// @Tags        Messages
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(tenant123)
// @Param       id           path    string  true  "Message ID (UUID)"        format(uuid)
//
// @Success     200  {object}  domain.Message
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Message not found"
// @Router      /messages/{id} [get]
func (h *Handlers) GetMessage(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id must be a UUID")
		return
	}

	msg, err := h.msgSvc.Status(c.Request.Context(), tenantID(c), id)
	if err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, msg)
}

// CancelMessage godoc
// @ID          cancelMessage
// @Summary     Cancel a queued message
// @Description Cancels a message that has not started sending. Messages past the queued state cannot be cancelled.
// @Tags        Messages
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(tenant123)
// @Param       id           path    string  true  "Message ID (UUID)"        format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Message not found"
// @Failure     409  {object}  handlers.ErrorResponse  "No longer cancellable"
// @Router      /messages/{id}/cancel [post]
func (h *Handlers) CancelMessage(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id must be a UUID")
		return
	}

	if err := h.msgSvc.Cancel(c.Request.Context(), tenantID(c), id); err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages (paginated)
// @Description Returns a page of the tenant's messages, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Messages
// @Produce     json
//
// @Param       X-Tenant-ID    header  string  false "Tenant ID (demo header)"     example(tenant123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	tid := tenantID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.db(); db != nil {
		count, maxTS, err := repo.MessagesStats(ctx, db, tid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, tid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	// Fetch page.
	items, total, err := h.msgSvc.ListPage(ctx, tid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}
