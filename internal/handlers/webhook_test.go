// internal/handlers/webhook_test.go
package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/ammerola/inventory-bot/internal/adapters/redis_adapter"
	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/services"
	"github.com/ammerola/inventory-bot/internal/handlers"
	"github.com/ammerola/inventory-bot/test/helpers"
)

type recordingHandler struct {
	events []domain.Event
	resp   domain.Response
}

func (h *recordingHandler) Handle(_ context.Context, ev domain.Event) domain.Response {
	h.events = append(h.events, ev)
	return h.resp
}

type failingGuard struct{}

func (failingGuard) FirstDelivery(context.Context, string) (bool, error) {
	return false, errors.New("redis unavailable")
}

func (failingGuard) Release(context.Context, string) error {
	return errors.New("redis unavailable")
}

func postEvent(t *testing.T, h *handlers.WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleEvent(w, req)
	return w
}

func TestWebhookEvent_ToDomain(t *testing.T) {
	tests := []struct {
		name    string
		in      handlers.WebhookEvent
		want    domain.Event
		wantErr bool
	}{
		{
			name: "command",
			in:   handlers.WebhookEvent{EventID: "e1", RequesterID: 5, Type: "command", Command: "/view_products"},
			want: domain.Event{ID: "e1", RequesterID: 5, Type: domain.EventCommand, Command: domain.CommandViewProducts},
		},
		{
			name: "unknown_command_kept",
			in:   handlers.WebhookEvent{RequesterID: 5, Type: "command", Command: "dance"},
			want: domain.Event{RequesterID: 5, Type: domain.EventCommand, Command: domain.CommandUnknown},
		},
		{
			name: "slash_text_is_command",
			in:   handlers.WebhookEvent{RequesterID: 5, Type: "text", Text: "/cancel@inventory_bot"},
			want: domain.Event{RequesterID: 5, Type: domain.EventCommand, Command: domain.CommandCancel},
		},
		{
			name: "plain_text",
			in:   handlers.WebhookEvent{RequesterID: 5, Type: "text", Text: "P100"},
			want: domain.Event{RequesterID: 5, Type: domain.EventText, Text: "P100"},
		},
		{
			name: "selection",
			in:   handlers.WebhookEvent{RequesterID: 5, Type: "selection", Data: "confirm_delete:P100"},
			want: domain.Event{RequesterID: 5, Type: domain.EventSelection, Selection: domain.ConfirmDeleteSelection("P100")},
		},
		{
			name: "garbled_selection",
			in:   handlers.WebhookEvent{RequesterID: 5, Type: "selection", Data: "???"},
			want: domain.Event{RequesterID: 5, Type: domain.EventSelection, Selection: domain.Selection{Kind: domain.SelectUnknown}},
		},
		{name: "missing_requester", in: handlers.WebhookEvent{Type: "text", Text: "x"}, wantErr: true},
		{name: "unknown_type", in: handlers.WebhookEvent{RequesterID: 5, Type: "sticker"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.ToDomain()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWebhook_ResponseShape(t *testing.T) {
	events := &recordingHandler{resp: domain.Response{
		Ack: &domain.Ack{Text: "ok"},
		Messages: []domain.Message{{
			Text:       "report",
			Buttons:    [][]domain.Button{{{Label: "Menu", Data: "main_menu"}}},
			Attachment: &domain.Attachment{Filename: "inventory_report.txt", ContentType: "text/plain", Data: []byte("hello")},
		}},
	}}
	h := handlers.NewWebhookHandler(events, nil, nil, helpers.TestLogger())

	w := postEvent(t, h, `{"event_id":"e1","requester_id":1,"type":"selection","data":"main_menu"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Ack      struct{ Text string } `json:"ack"`
		Messages []struct {
			Text       string `json:"text"`
			Buttons    [][]struct{ Label, Data string }
			Attachment struct {
				Filename string `json:"filename"`
				Data     string `json:"data"`
			} `json:"attachment"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Ack.Text)
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "main_menu", body.Messages[0].Buttons[0][0].Data)
	assert.Equal(t, "inventory_report.txt", body.Messages[0].Attachment.Filename)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), body.Messages[0].Attachment.Data)
}

func TestWebhook_BadRequests(t *testing.T) {
	events := &recordingHandler{}
	h := handlers.NewWebhookHandler(events, nil, nil, helpers.TestLogger())

	tests := []struct {
		name string
		body string
	}{
		{name: "not_json", body: "{"},
		{name: "missing_requester", body: `{"type":"text","text":"hi"}`},
		{name: "unknown_type", body: `{"requester_id":1,"type":"voice"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postEvent(t, h, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
	assert.Empty(t, events.events)
}

func TestWebhook_DuplicateDelivery(t *testing.T) {
	r := helpers.SetupTestRedis(t)
	logger := helpers.TestLogger()
	cache := redis_a.NewCache(r.Client, time.Hour, logger)
	guard := redis_a.NewDeliveryGuard(cache, time.Hour, logger)

	events := &recordingHandler{resp: domain.Reply(domain.Text("done"))}
	h := handlers.NewWebhookHandler(events, guard, nil, logger)

	body := `{"event_id":"evt-1","requester_id":1,"type":"text","text":"hello"}`
	w := postEvent(t, h, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "done")

	w = postEvent(t, h, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"duplicate":true}`, w.Body.String())

	w = postEvent(t, h, `{"event_id":"evt-2","requester_id":1,"type":"text","text":"hello"}`)
	assert.Contains(t, w.Body.String(), "done")
	assert.Len(t, events.events, 2)
}

func TestWebhook_FailedEventIsProcessedOnRedelivery(t *testing.T) {
	r := helpers.SetupTestRedis(t)
	logger := helpers.TestLogger()
	guard := redis_a.NewDeliveryGuard(redis_a.NewCache(r.Client, time.Hour, logger), time.Hour, logger)

	f := newFixture(t, seededDocument())
	h := handlers.NewWebhookHandler(f.dispatcher, guard, nil, logger)
	body := `{"event_id":"evt-9","requester_id":99,"type":"command","command":"/view_products"}`

	f.repo.LoadErr = errors.New("disk on fire")
	w := postEvent(t, h, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), services.MsgActionFailed)
	assert.NotContains(t, w.Body.String(), "Failed")

	f.repo.LoadErr = nil
	w = postEvent(t, h, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Company 1")

	// a successful delivery stays claimed
	w = postEvent(t, h, body)
	assert.JSONEq(t, `{"duplicate":true}`, w.Body.String())
}

func TestWebhook_GuardFailureFailsOpen(t *testing.T) {
	events := &recordingHandler{resp: domain.Reply(domain.Text("done"))}
	h := handlers.NewWebhookHandler(events, failingGuard{}, nil, helpers.TestLogger())

	w := postEvent(t, h, `{"event_id":"e","requester_id":1,"type":"text","text":"x"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, events.events, 1)
}

func TestWebhook_Throttle(t *testing.T) {
	r := helpers.SetupTestRedis(t)
	logger := helpers.TestLogger()
	cache := redis_a.NewCache(r.Client, time.Hour, logger)
	throttle := redis_a.NewThrottle(cache, 2, time.Minute, logger)

	events := &recordingHandler{resp: domain.Reply(domain.Text("done"))}
	h := handlers.NewWebhookHandler(events, nil, throttle, logger)

	for i := 0; i < 2; i++ {
		w := postEvent(t, h, `{"requester_id":1,"type":"text","text":"x"}`)
		assert.Contains(t, w.Body.String(), "done")
	}

	w := postEvent(t, h, `{"requester_id":1,"type":"selection","data":"main_menu"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp domain.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Too many requests, slow down.", resp.Messages[0].Text)
	require.NotNil(t, resp.Ack)

	// other requesters have their own window
	w = postEvent(t, h, `{"requester_id":2,"type":"text","text":"x"}`)
	assert.Contains(t, w.Body.String(), "done")
	assert.Len(t, events.events, 3)

	r.Server.FastForward(time.Minute + time.Second)
	w = postEvent(t, h, `{"requester_id":1,"type":"text","text":"x"}`)
	assert.Contains(t, w.Body.String(), "done")
}

func TestWebhook_EndToEndThroughDispatcher(t *testing.T) {
	f := newFixture(t, seededDocument())
	h := handlers.NewWebhookHandler(f.dispatcher, nil, nil, helpers.TestLogger())

	w := postEvent(t, h, `{"requester_id":1,"type":"text","text":"/search_product"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Enter the product ID to search for:")

	w = postEvent(t, h, `{"requester_id":1,"type":"text","text":"P001"}`)
	assert.Contains(t, w.Body.String(), "Company 1")

	w = postEvent(t, h, `{"requester_id":1,"type":"text","text":"P001"}`)
	assert.Contains(t, w.Body.String(), "No operation is in progress")

	var resp domain.Response
	w = postEvent(t, h, `{"requester_id":99,"type":"selection","data":"cancel_delete"}`)
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&resp))
	require.NotNil(t, resp.Ack)
	assert.NotNil(t, resp.Messages)
}
