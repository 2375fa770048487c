// internal/core/services/conversation.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
)

// Input is one reply to a prompt: free text or a button selection
type Input struct {
	Text      string
	Selection *domain.Selection
}

// TextInput wraps a text reply
func TextInput(text string) Input {
	return Input{Text: text}
}

// SelectionInput wraps a button selection
func SelectionInput(s domain.Selection) Input {
	return Input{Selection: &s}
}

// Engine runs the multi-step flows. Each requester has at most one active
// session; events for the same requester are handled one at a time.
type Engine struct {
	store    ports.InventoryStore
	gate     ports.AuthorizationGate
	sessions ports.SessionStore
	flows    map[domain.FlowKind]*flowDef
	now      func() time.Time
	logger   *slog.Logger
}

// NewEngine creates a conversation engine
func NewEngine(store ports.InventoryStore, gate ports.AuthorizationGate, sessions ports.SessionStore, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		gate:     gate,
		sessions: sessions,
		flows:    buildFlows(),
		now:      time.Now,
		logger:   logger.With(slog.String("service", "conversation")),
	}
}

// Start enters a flow for the requester, discarding any session already in progress.
// Admin-only flows are refused with a fixed denial, and a refused or guarded
// entry leaves the previous session untouched.
func (e *Engine) Start(ctx context.Context, requesterID int64, kind domain.FlowKind) domain.Response {
	unlock := e.sessions.Lock(requesterID)
	defer unlock()

	log := e.logger.With(slog.Int64("requester_id", requesterID), slog.String("flow", string(kind)))

	f, ok := e.flows[kind]
	if !ok {
		log.ErrorContext(ctx, "unknown flow")
		return domain.Failure(MsgActionFailed)
	}

	if f.adminOnly {
		allowed, err := e.gate.IsAdmin(ctx, requesterID)
		if err != nil {
			return e.fail(ctx, log, requesterID, err)
		}
		if !allowed {
			log.InfoContext(ctx, "flow entry denied")
			return domain.Reply(domain.Text(MsgAdminOnly))
		}
	}

	if f.entry != nil {
		if err := f.entry(ctx, e); err != nil {
			if errors.Is(err, domain.ErrGuardViolation) {
				log.InfoContext(ctx, "flow entry guarded", slog.String("reason", err.Error()))
				return domain.Reply(domain.Text(replyText(err)))
			}
			return e.fail(ctx, log, requesterID, err)
		}
	}

	if prev := e.sessions.Get(requesterID); prev != nil {
		log.DebugContext(ctx, "discarding previous session", slog.String("previous_flow", string(prev.Flow)))
		e.sessions.Delete(requesterID)
	}

	sess := domain.NewSession(requesterID, kind, f.first, e.now())
	msg, err := f.states[f.first].prompt(ctx, e, sess)
	if err != nil {
		return e.fail(ctx, log, requesterID, err)
	}
	e.sessions.Put(sess)

	log.DebugContext(ctx, "flow started")
	return domain.Reply(msg)
}

// Cancel discards the requester's session. It reports whether one existed.
func (e *Engine) Cancel(ctx context.Context, requesterID int64) (domain.Response, bool) {
	unlock := e.sessions.Lock(requesterID)
	defer unlock()

	sess := e.sessions.Get(requesterID)
	if sess == nil {
		return domain.Reply(domain.Text(MsgNothingToCancel)), false
	}
	e.sessions.Delete(requesterID)

	e.logger.InfoContext(ctx, "flow cancelled",
		slog.Int64("requester_id", requesterID),
		slog.String("flow", string(sess.Flow)),
		slog.String("state", string(sess.State)))
	return domain.Reply(domain.Text(MsgCancelled)), true
}

// HasSession reports whether the requester has a live session
func (e *Engine) HasSession(requesterID int64) bool {
	return e.sessions.Get(requesterID) != nil
}

// Input feeds a reply to the requester's active flow. handled is false when
// there is no live session. Selection inputs always carry an Ack.
func (e *Engine) Input(ctx context.Context, requesterID int64, in Input) (resp domain.Response, handled bool) {
	unlock := e.sessions.Lock(requesterID)
	defer unlock()

	sess := e.sessions.Get(requesterID)
	if sess == nil {
		return domain.Response{}, false
	}

	f, ok := e.flows[sess.Flow]
	if !ok {
		e.sessions.Delete(requesterID)
		return domain.Response{}, false
	}

	resp = e.step(ctx, f, sess, in)
	if in.Selection != nil && resp.Ack == nil {
		resp.Ack = &domain.Ack{}
	}
	return resp, true
}

// RunJanitor evicts expired sessions every interval until ctx is done
func (e *Engine) RunJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.sessions.EvictExpired(e.now()); n > 0 {
				e.logger.InfoContext(ctx, "expired sessions evicted", slog.Int("count", n))
			}
		}
	}
}

func (e *Engine) step(ctx context.Context, f *flowDef, sess *domain.Session, in Input) domain.Response {
	log := e.logger.With(
		slog.Int64("requester_id", sess.RequesterID),
		slog.String("flow", string(sess.Flow)),
		slog.String("state", string(sess.State)))

	st, ok := f.states[sess.State]
	if !ok {
		e.sessions.Delete(sess.RequesterID)
		return e.fail(ctx, log, sess.RequesterID, fmt.Errorf("state %q not in flow %q", sess.State, sess.Flow))
	}

	before := sess.Clone()
	next, err := st.accept(ctx, e, sess, in)
	if err != nil {
		return e.handleRejection(ctx, log, f, before, err)
	}

	if next != domain.StateIdle {
		sess.State = next
		msg, err := f.states[next].prompt(ctx, e, sess)
		if err != nil {
			return e.fail(ctx, log, sess.RequesterID, err)
		}
		e.sessions.Put(sess)
		return domain.Reply(msg)
	}

	return e.commit(ctx, log, f, sess)
}

func (e *Engine) commit(ctx context.Context, log *slog.Logger, f *flowDef, sess *domain.Session) domain.Response {
	if f.adminOnly {
		allowed, err := e.gate.IsAdmin(ctx, sess.RequesterID)
		if err != nil {
			return e.fail(ctx, log, sess.RequesterID, err)
		}
		if !allowed {
			e.sessions.Delete(sess.RequesterID)
			log.InfoContext(ctx, "commit denied, requester is no longer an admin")
			return domain.Reply(domain.Text(MsgAdminOnly))
		}
	}

	msgs, err := f.commit(ctx, e, sess)
	if err != nil {
		return e.handleRejection(ctx, log, f, sess, err)
	}

	e.sessions.Delete(sess.RequesterID)
	log.InfoContext(ctx, "flow completed")
	return domain.Reply(msgs...)
}

// handleRejection maps a rejected step to a reply. Input errors keep the session and
// re-prompt; guards end the flow; anything else is a failed action.
func (e *Engine) handleRejection(ctx context.Context, log *slog.Logger, f *flowDef, sess *domain.Session, err error) domain.Response {
	var rw *rewind
	if errors.As(err, &rw) {
		sess.State = rw.state
	}

	switch {
	case errors.Is(err, domain.ErrGuardViolation) && rw == nil:
		e.sessions.Delete(sess.RequesterID)
		log.InfoContext(ctx, "flow stopped by guard", slog.String("reason", err.Error()))
		return domain.Reply(domain.Text(replyText(err)))

	case domain.IsValidation(err), errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		log.DebugContext(ctx, "input rejected", slog.String("reason", err.Error()))
		msgs := []domain.Message{domain.Text(replyText(err))}
		if st, ok := f.states[sess.State]; ok {
			prompt, perr := st.prompt(ctx, e, sess)
			if perr != nil {
				return e.fail(ctx, log, sess.RequesterID, perr)
			}
			if rw != nil || len(prompt.Buttons) > 0 {
				msgs = append(msgs, prompt)
			}
		}
		e.sessions.Put(sess)
		return domain.Reply(msgs...)
	}

	return e.fail(ctx, log, sess.RequesterID, err)
}

func (e *Engine) fail(ctx context.Context, log *slog.Logger, requesterID int64, err error) domain.Response {
	e.sessions.Delete(requesterID)
	log.ErrorContext(ctx, "flow action failed", slog.String("error", err.Error()))
	return domain.Failure(MsgActionFailed)
}

// rejection carries the reply shown for a rejected input
type rejection struct {
	text string
	err  error
}

func (r *rejection) Error() string { return r.err.Error() }
func (r *rejection) Unwrap() error { return r.err }

func reject(err error, text string) error {
	return &rejection{text: text, err: err}
}

// rewind sends the flow back to an earlier state
type rewind struct {
	state domain.StateID
	err   error
}

func (r *rewind) Error() string { return r.err.Error() }
func (r *rewind) Unwrap() error { return r.err }

func rewindTo(state domain.StateID, err error) error {
	return &rewind{state: state, err: err}
}

func replyText(err error) string {
	var r *rejection
	if errors.As(err, &r) {
		return r.text
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return fmt.Sprintf(msgInvalidInput, fieldLabel(ve.Field), ve.Reason)
	}
	switch {
	case errors.Is(err, domain.ErrGuardViolation):
		return MsgLastAdmin
	case errors.Is(err, domain.ErrNotFound):
		return msgNotFound
	case errors.Is(err, domain.ErrConflict):
		return msgConflict
	}
	return MsgActionFailed
}
