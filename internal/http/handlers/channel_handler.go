// Channel HTTP handlers.
//
// This file exposes REST endpoints for channel configuration:
//   - POST   /channels                  (create)
//   - GET    /channels                  (list)
//   - GET    /channels/{id}             (fetch)
//   - PUT    /channels/{id}             (update)
//   - POST   /channels/{id}/deactivate  (remove from active set)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

//
// DTOs
//

// ChannelRequest is the JSON payload for creating or updating a channel.
type ChannelRequest struct {
	// Type identifies the delivery mechanism (email, sms, push, in_app,
	// slack, teams). It must have a registered send capability.
	Type string `json:"type" binding:"required" example:"email"`
	// Priority orders fallback candidates; lower values are tried first.
	Priority int `json:"priority" example:"1"`
	// IsActive includes the channel in the delivery set.
	IsActive bool `json:"is_active" example:"true"`
	// Configuration carries provider-specific settings (endpoints, keys).
	Configuration domain.JSONMap `json:"configuration"`
	// RateLimit caps sends per trailing hour/day; zero means unlimited.
	RateLimit domain.RateLimit `json:"rate_limit"`
}

func (r ChannelRequest) toDomain() *domain.Channel {
	return &domain.Channel{
		Type:          r.Type,
		Priority:      r.Priority,
		IsActive:      r.IsActive,
		Configuration: r.Configuration,
		RateLimit:     r.RateLimit,
	}
}

//
// Handlers
//

// CreateChannel godoc
// @ID          createChannel
// @Summary     Create a channel
// @Description Registers a delivery channel for the tenant. The channel type must have a configured send capability.
// @Tags        Channels
// @Accept      json
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(tenant123)
// @Param       body         body    handlers.ChannelRequest  true  "Create channel payload"
//
// @Success     201  {object}  domain.Channel
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /channels [post]
func (h *Handlers) CreateChannel(c *gin.Context) {
	var req ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ch, err := h.channelSvc.Create(c.Request.Context(), tenantID(c), req.toDomain())
	if err != nil {
		failFromService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, ch)
}

// ListChannels godoc
// @ID          listChannels
// @Summary     List channels
// @Description Returns all channels configured for the tenant, ordered by priority.
// @Tags        Channels
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(tenant123)
//
// @Success     200  {array}   domain.Channel
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /channels [get]
func (h *Handlers) ListChannels(c *gin.Context) {
	items, err := h.channelSvc.List(c.Request.Context(), tenantID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, items)
}

// GetChannel godoc
// @ID          getChannel
// @Summary     Get a channel
// @Description Returns a single channel by id.
// @Tags        Channels
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(tenant123)
// @Param       id           path    string  true  "Channel ID (UUID)"        format(uuid)
//
// @Success     200  {object}  domain.Channel
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Channel not found"
// @Router      /channels/{id} [get]
func (h *Handlers) GetChannel(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel id must be a UUID")
		return
	}

	ch, err := h.channelSvc.Get(c.Request.Context(), tenantID(c), id)
	if err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, ch)
}

// UpdateChannel godoc
// @ID          updateChannel
// @Summary     Update a channel
// @Description Replaces the mutable fields of a channel. The same validation as creation applies.
// @Tags        Channels
// @Accept      json
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(tenant123)
// @Param       id           path    string  true  "Channel ID (UUID)"        format(uuid)
// @Param       body         body    handlers.ChannelRequest  true  "Update channel payload"
//
// @Success     200  {object}  domain.Channel
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Channel not found"
// @Router      /channels/{id} [put]
func (h *Handlers) UpdateChannel(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel id must be a UUID")
		return
	}

	var req ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ch, err := h.channelSvc.Update(c.Request.Context(), tenantID(c), id, req.toDomain())
	if err != nil {
		failFromService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, ch)
}

// DeactivateChannel godoc
// @ID          deactivateChannel
// @Summary     Deactivate a channel
// @Description Removes a channel from the active delivery set without deleting its history.
// @Tags        Channels
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(tenant123)
// @Param       id           path    string  true  "Channel ID (UUID)"        format(uuid)
//
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Channel not found"
// @Router      /channels/{id}/deactivate [post]
func (h *Handlers) DeactivateChannel(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel id must be a UUID")
		return
	}

	if err := h.channelSvc.Deactivate(c.Request.Context(), tenantID(c), id); err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
