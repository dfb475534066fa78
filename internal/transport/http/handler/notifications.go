package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/SystAttic/TraversiumNotificationService/internal/application/notification"
	"github.com/SystAttic/TraversiumNotificationService/internal/domain"
	"github.com/SystAttic/TraversiumNotificationService/internal/pkg/id"
	"github.com/SystAttic/TraversiumNotificationService/internal/stream"
	"github.com/SystAttic/TraversiumNotificationService/internal/transport/http/middleware"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Subscriber is what the SSE endpoint needs from the live channel.
type Subscriber interface {
	Subscribe(filter stream.Filter) *stream.Subscription
}

// NotificationHandler handles the notification feed endpoints.
type NotificationHandler struct {
	svc  notification.Service
	live Subscriber
}

func NewNotificationHandler(svc notification.Service, live Subscriber) *NotificationHandler {
	return &NotificationHandler{svc: svc, live: live}
}

func (h *NotificationHandler) CountUnseen(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	count, err := h.svc.CountUnseen(r.Context(), domain.Scope{Tenant: claims.TenantID}, claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountEnvelope{Count: count})
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.svc.ListBundles(r.Context(), domain.Scope{Tenant: claims.TenantID}, claims.UserID, offset, limit)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) ListUnseen(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bundles, err := h.svc.ListUnseenBundles(r.Context(), domain.Scope{Tenant: claims.TenantID}, claims.UserID, offset, limit)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundles)
}

func (h *NotificationHandler) ListSeen(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bundles, err := h.svc.ListSeenBundles(r.Context(), domain.Scope{Tenant: claims.TenantID}, claims.UserID, offset, limit)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundles)
}

// Stream serves the live per-principal SSE feed. Heartbeats and content
// items are sent as distinct event types; every delivered event gets its own
// id. The subscription ends when the client disconnects.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.live.Subscribe(stream.ForPrincipal(claims.TenantID, claims.UserID))
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case a, open := <-sub.C:
			if !open {
				return
			}
			if err := writeEvent(w, a); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, a domain.Announcement) error {
	name := "notification"
	if a.Type == domain.TypeHealthcheck {
		name = "heartbeat"
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", id.New(), name, data)
	return err
}

func pageParams(r *http.Request) (offset, limit int, err error) {
	offset, err = queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("invalid offset")
	}
	limit, err = queryInt(r, "limit", defaultPageLimit)
	if err != nil || limit < 1 || limit > maxPageLimit {
		return 0, 0, fmt.Errorf("invalid limit")
	}
	return offset, limit, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
