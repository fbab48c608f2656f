package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/sse"
)

type EventHandler interface {
	StreamToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type eventHandlerImpl struct {
	hub        *sse.Hub
	jwtService jwt.Service
	keepalive  time.Duration
}

func NewEventHandler(hub *sse.Hub, jwtService jwt.Service) EventHandler {
	return &eventHandlerImpl{
		hub:        hub,
		jwtService: jwtService,
		keepalive:  30 * time.Second,
	}
}

type streamTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// StreamToken issues the short-lived token Stream expects in its query.
func (h *eventHandlerImpl) StreamToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	token, expiresIn, err := h.jwtService.GenerateStreamToken(claims.UserID)
	if err != nil {
		response.InternalServerError(w, "Failed to generate stream token")
		return
	}
	response.Success(w, streamTokenResponse{Token: token, ExpiresIn: expiresIn})
}

// Stream sends the caller's leave status changes as server-sent events.
// EventSource cannot set headers, so the token comes from the query.
func (h *eventHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		response.Unauthorized(w, "Missing token")
		return
	}

	userID, err := h.jwtService.ValidateStreamToken(tokenStr)
	if err != nil {
		response.Unauthorized(w, "Invalid token")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(userID)
	defer cleanup()

	_ = sse.Encode(w, sse.Event{Event: "connected", Data: map[string]string{"status": "connected", "user_id": userID}})
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := sse.Encode(w, event); err != nil {
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, ": ping %d\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
