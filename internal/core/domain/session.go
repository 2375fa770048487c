// internal/core/domain/session.go
package domain

import "time"

// FlowKind identifies a multi-step conversation
type FlowKind string

// Flow constants
const (
	FlowNone             FlowKind = ""
	FlowAddProduct       FlowKind = "add_product"
	FlowAddQuantity      FlowKind = "add_quantity"
	FlowSubtractQuantity FlowKind = "subtract_quantity"
	FlowDeleteProduct    FlowKind = "delete_product"
	FlowEditProduct      FlowKind = "edit_product"
	FlowSearchProduct    FlowKind = "search_product"
	FlowSetThreshold     FlowKind = "set_low_stock_threshold"
	FlowAddAdmin         FlowKind = "add_admin"
	FlowRemoveAdmin      FlowKind = "remove_admin"
)

// StateID identifies a step within a flow
type StateID string

// State constants
const (
	StateIdle          StateID = ""
	StateCompanyName   StateID = "company_name"
	StateProductID     StateID = "product_id"
	StateQuantity      StateID = "quantity"
	StatePrice         StateID = "price"
	StateCategory      StateID = "category"
	StateImageURL      StateID = "image_url"
	StateAmount        StateID = "amount"
	StateConfirmDelete StateID = "confirm_delete"
	StateEditChoice    StateID = "edit_choice"
	StateEditValue     StateID = "edit_value"
	StateThreshold     StateID = "threshold"
	StateAdminID       StateID = "admin_id"
)

// Scratch keys for values collected across steps
const (
	ScratchCompanyName = "companyName"
	ScratchProductID   = "productId"
	ScratchQuantity    = "quantity"
	ScratchPrice       = "price"
	ScratchCategory    = "category"
	ScratchImageURL    = "imageUrl"
	ScratchAmount      = "amount"
	ScratchField       = "field"
	ScratchValue       = "value"
	ScratchThreshold   = "threshold"
	ScratchAdminID     = "adminId"
	ScratchDecision    = "decision"
)

// Session is the ephemeral per-requester record of the active flow
type Session struct {
	RequesterID int64
	Flow        FlowKind
	State       StateID
	Scratch     map[string]string
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// NewSession starts a session for a flow at its first state
func NewSession(requesterID int64, flow FlowKind, state StateID, now time.Time) *Session {
	return &Session{
		RequesterID: requesterID,
		Flow:        flow,
		State:       state,
		Scratch:     make(map[string]string),
		StartedAt:   now,
		UpdatedAt:   now,
	}
}

// Expired reports whether the session has been idle for longer than ttl.
// A zero ttl never expires.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.UpdatedAt) > ttl
}

// Clone returns a copy with its own scratch map
func (s *Session) Clone() *Session {
	c := *s
	c.Scratch = make(map[string]string, len(s.Scratch))
	for k, v := range s.Scratch {
		c.Scratch[k] = v
	}
	return &c
}
