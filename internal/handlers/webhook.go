// internal/handlers/webhook.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
)

const maxEventSize = 1 << 20

// Wire names of the event types
const (
	EventTypeCommand   = "command"
	EventTypeText      = "text"
	EventTypeSelection = "selection"
)

// WebhookEvent is the JSON body the chat platform posts for each interaction
type WebhookEvent struct {
	EventID     string `json:"event_id"`
	RequesterID int64  `json:"requester_id"`
	Type        string `json:"type"`
	Command     string `json:"command,omitempty"`
	Text        string `json:"text,omitempty"`
	Data        string `json:"data,omitempty"`
}

// ToDomain validates the wire event and converts it. Text that reads as a
// command is treated as one; unknown selection data becomes SelectUnknown.
func (e *WebhookEvent) ToDomain() (domain.Event, error) {
	if e.RequesterID == 0 {
		return domain.Event{}, errors.New("requester_id is required")
	}
	ev := domain.Event{ID: e.EventID, RequesterID: e.RequesterID}

	switch e.Type {
	case EventTypeCommand:
		ev.Type = domain.EventCommand
		ev.Command, _ = domain.ParseCommand(e.Command)
	case EventTypeText:
		if strings.HasPrefix(strings.TrimSpace(e.Text), "/") {
			ev.Type = domain.EventCommand
			ev.Command, _ = domain.ParseCommand(e.Text)
			return ev, nil
		}
		ev.Type = domain.EventText
		ev.Text = e.Text
	case EventTypeSelection:
		ev.Type = domain.EventSelection
		sel, err := domain.ParseSelection(e.Data)
		if err != nil {
			sel = domain.Selection{Kind: domain.SelectUnknown}
		}
		ev.Selection = sel
	default:
		return domain.Event{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	return ev, nil
}

// EventHandler is what the webhook hands each decoded event to
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) domain.Response
}

// WebhookHandler is the HTTP transport in front of the dispatcher
type WebhookHandler struct {
	events   EventHandler
	guard    ports.DeliveryGuard
	throttle ports.Throttle
	logger   *slog.Logger
}

// NewWebhookHandler creates a new webhook handler. guard and throttle may be nil.
func NewWebhookHandler(events EventHandler, guard ports.DeliveryGuard, throttle ports.Throttle, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		events:   events,
		guard:    guard,
		throttle: throttle,
		logger:   logger.With(slog.String("handler", "webhook")),
	}
}

// HandleEvent handles POST /api/v1/webhook
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body WebhookEvent
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventSize))
	if err := dec.Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ev, err := body.ToDomain()
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	claimed := false
	if ev.ID != "" && h.guard != nil {
		first, err := h.guard.FirstDelivery(ctx, ev.ID)
		claimed = err == nil && first
		if err != nil {
			h.logger.WarnContext(ctx, "delivery guard unavailable, processing event",
				slog.String("event_id", ev.ID),
				slog.String("error", err.Error()))
		} else if !first {
			h.logger.InfoContext(ctx, "duplicate event ignored", slog.String("event_id", ev.ID))
			h.respondJSON(w, http.StatusOK, map[string]bool{"duplicate": true})
			return
		}
	}

	if h.throttle != nil {
		allowed, err := h.throttle.Allow(ctx, ev.RequesterID)
		if err != nil {
			h.logger.WarnContext(ctx, "throttle unavailable, processing event", slog.String("error", err.Error()))
		} else if !allowed {
			resp := domain.Reply(domain.Text(msgThrottled))
			if ev.Type == domain.EventSelection {
				resp.Ack = &domain.Ack{Text: msgThrottled}
			}
			h.respondJSON(w, http.StatusOK, resp)
			return
		}
	}

	resp := h.events.Handle(ctx, ev)
	if resp.Failed && claimed {
		// the event did not take effect, let the platform's retry through
		if err := h.guard.Release(context.WithoutCancel(ctx), ev.ID); err != nil {
			h.logger.WarnContext(ctx, "failed to release event id",
				slog.String("event_id", ev.ID),
				slog.String("error", err.Error()))
		}
	}
	if resp.Messages == nil {
		resp.Messages = []domain.Message{}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *WebhookHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *WebhookHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
