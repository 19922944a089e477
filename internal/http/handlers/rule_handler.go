// Routing rule HTTP handlers.
//
// This file exposes REST endpoints for routing rules and event
// classification:
//   - POST   /rules         (create)
//   - GET    /rules         (list in evaluation order)
//   - GET    /rules/{id}    (fetch)
//   - POST   /events/route  (classify an event and run matched actions)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

//
// DTOs
//

// CreateRuleRequest is the JSON payload for creating a routing rule.
type CreateRuleRequest struct {
	// Name labels the rule for operators.
	Name string `json:"name" binding:"required,min=1,max=255" example:"Escalate urgent complaints"`
	// Priority orders evaluation; lower values are checked first.
	Priority int `json:"priority" example:"10"`
	// IsActive includes the rule in evaluation.
	IsActive bool `json:"is_active" example:"true"`
	// TriggerConditions must all hold for the rule to fire.
	TriggerConditions []domain.TriggerCondition `json:"trigger_conditions"`
	// RoutingActions run in order when the rule fires.
	RoutingActions []domain.RoutingAction `json:"routing_actions"`
}

// RouteEventRequest is the JSON payload for classifying an event.
type RouteEventRequest struct {
	// Event is the free-form payload matched against rule conditions.
	Event map[string]any `json:"event" binding:"required"`
}

//
// Handlers
//

// CreateRule godoc
// @ID          createRule
// @Summary     Create a routing rule
// @Description Registers a classification rule. Conditions and actions are shape-checked up front so malformed rules never reach evaluation.
// @Tags        Routing
// @Accept      json
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(tenant123)
// @Param       body         body    handlers.CreateRuleRequest  true  "Create rule payload"
//
// @Success     201  {object}  domain.RoutingRule
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rules [post]
func (h *Handlers) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required (1-255 chars)")
		return
	}

	rule, err := h.routingSvc.CreateRule(c.Request.Context(), tenantID(c), &domain.RoutingRule{
		Name:              strings.TrimSpace(req.Name),
		Priority:          req.Priority,
		IsActive:          req.IsActive,
		TriggerConditions: req.TriggerConditions,
		RoutingActions:    req.RoutingActions,
	})
	if err != nil {
		failFromService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, rule)
}

// ListRules godoc
// @ID          listRules
// @Summary     List routing rules
// @Description Returns all rules for the tenant in evaluation order.
// @Tags        Routing
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(tenant123)
//
// @Success     200  {array}   domain.RoutingRule
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rules [get]
func (h *Handlers) ListRules(c *gin.Context) {
	items, err := h.routingSvc.ListRules(c.Request.Context(), tenantID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, items)
}

// GetRule godoc
// @ID          getRule
// @Summary     Get a routing rule
// @Description Returns a single routing rule by id.
// @Tags        Routing
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(tenant123)
// @Param       id           path    string  true  "Rule ID (UUID)"           format(uuid)
//
// @Success     200  {object}  domain.RoutingRule
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Rule not found"
// @Router      /rules/{id} [get]
func (h *Handlers) GetRule(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "rule id must be a UUID")
		return
	}

	rule, err := h.routingSvc.GetRule(c.Request.Context(), tenantID(c), id)
	if err != nil {
		failFromService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, rule)
}

// RouteEvent godoc
// @ID          routeEvent
// @Summary     Route an event
// @Description Evaluates the tenant's active rules against the event and executes the first match's actions. An event matching no rule returns matched=false.
// @Tags        Routing
// @Accept      json
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false "Tenant ID (demo header)"  example(tenant123)
// @Param       body         body    handlers.RouteEventRequest  true  "Event payload"
//
// @Success     200  {object}  routing.Result
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /events/route [post]
func (h *Handlers) RouteEvent(c *gin.Context) {
	var req RouteEventRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Event == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "event object required")
		return
	}

	res, err := h.routingSvc.Route(c.Request.Context(), tenantID(c), req.Event)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeRouteFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, res)
}
