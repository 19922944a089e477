package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rzilem/Community-Intelligence-sub005/internal/channels"
	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
	"github.com/rzilem/Community-Intelligence-sub005/internal/services"
)

// newChannelService wires a real ChannelService whose registry only knows
// the email type.
func newChannelService(t *testing.T) (*services.ChannelService, *gin.Engine) {
	t.Helper()
	db := newHandlerDB(t)
	reg := channels.NewRegistry()
	reg.Register(domain.ChannelEmail, channels.CapabilityFunc(
		func(context.Context, *domain.Channel, *domain.Message, domain.Recipient) error { return nil },
	))
	svc := services.NewChannelService(db, reg, channels.NewActiveCache(db, time.Minute))

	h := New(stubMsgSvc{}, svc, stubRouteSvc{}, time.Hour)
	r := gin.New()
	r.POST("/channels", h.CreateChannel)
	r.GET("/channels", h.ListChannels)
	r.GET("/channels/:id", h.GetChannel)
	r.PUT("/channels/:id", h.UpdateChannel)
	r.POST("/channels/:id/deactivate", h.DeactivateChannel)
	return svc, r
}

func TestCreateChannel_BadJSON_UnknownType_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, r := newChannelService(t)

	// Bad JSON -> 400
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/channels", bytes.NewBufferString("{bad"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}

	// Unregistered type is rejected up front -> 400
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/channels",
		bytes.NewBufferString(`{"type":"fax","is_active":true}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown type -> %d body=%s", w.Code, w.Body.String())
	}

	// Negative rate limit -> 400
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/channels",
		bytes.NewBufferString(`{"type":"email","rate_limit":{"max_per_hour":-1}}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative cap -> %d", w.Code)
	}

	// Success -> 201
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/channels",
		bytes.NewBufferString(`{"type":"email","priority":1,"is_active":true,"configuration":{"endpoint":"https://mail.example.com"}}`))
	req.Header.Set("X-Tenant-ID", "t1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create -> %d body=%s", w.Code, w.Body.String())
	}
	var out domain.Channel
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.ID == "" || out.TenantID != "t1" || out.Type != domain.ChannelEmail {
		t.Fatalf("unexpected channel: %#v", out)
	}
}

func TestChannelLifecycle_GetUpdateDeactivate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, r := newChannelService(t)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/channels", bytes.NewBufferString(body))
		req.Header.Set("X-Tenant-ID", "t1")
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{"type":"email","priority":2,"is_active":true}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create -> %d", w.Code)
	}
	var ch domain.Channel
	if err := json.Unmarshal(w.Body.Bytes(), &ch); err != nil {
		t.Fatalf("json: %v", err)
	}

	// Bad UUID -> 400
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/channels/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid -> %d", w.Code)
	}

	// Get -> 200 (same tenant)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/channels/"+ch.ID, nil)
	req.Header.Set("X-Tenant-ID", "t1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get -> %d", w.Code)
	}

	// Other tenant -> 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/channels/"+ch.ID, nil)
	req.Header.Set("X-Tenant-ID", "t2")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("cross tenant get -> %d", w.Code)
	}

	// Update priority -> 200
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/channels/"+ch.ID,
		bytes.NewBufferString(`{"type":"email","priority":5,"is_active":true}`))
	req.Header.Set("X-Tenant-ID", "t1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update -> %d body=%s", w.Code, w.Body.String())
	}
	var updated domain.Channel
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("json: %v", err)
	}
	if updated.Priority != 5 {
		t.Fatalf("priority not updated: %#v", updated)
	}

	// Update an unknown id -> 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/channels/"+uuid.NewString(),
		bytes.NewBufferString(`{"type":"email"}`))
	req.Header.Set("X-Tenant-ID", "t1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("update missing -> %d", w.Code)
	}

	// Deactivate -> 204, then the channel lists as inactive
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/channels/"+ch.ID+"/deactivate", nil)
	req.Header.Set("X-Tenant-ID", "t1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("deactivate -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/channels", nil)
	req.Header.Set("X-Tenant-ID", "t1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d", w.Code)
	}
	var list []domain.Channel
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(list) != 1 || list[0].IsActive {
		t.Fatalf("expected one inactive channel, got %#v", list)
	}
}
