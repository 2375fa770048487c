// internal/core/services/flows.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ammerola/inventory-bot/internal/core/domain"
)

type (
	promptFunc func(ctx context.Context, e *Engine, sess *domain.Session) (domain.Message, error)
	acceptFunc func(ctx context.Context, e *Engine, sess *domain.Session, in Input) (domain.StateID, error)
	commitFunc func(ctx context.Context, e *Engine, sess *domain.Session) ([]domain.Message, error)
)

// state is one step of a flow: what to ask and how to take the answer.
// accept returns the next state, or StateIdle to commit.
type state struct {
	prompt promptFunc
	accept acceptFunc
}

type flowDef struct {
	kind      domain.FlowKind
	adminOnly bool
	first     domain.StateID
	entry     func(ctx context.Context, e *Engine) error
	states    map[domain.StateID]state
	commit    commitFunc
}

func buildFlows() map[domain.FlowKind]*flowDef {
	defs := []*flowDef{
		{
			kind:      domain.FlowAddProduct,
			adminOnly: true,
			first:     domain.StateCompanyName,
			states: map[domain.StateID]state{
				domain.StateCompanyName: {ask(promptCompanyName), acceptText(domain.ScratchCompanyName, "companyName", domain.StateProductID)},
				domain.StateProductID:   {ask(promptNewProductID), acceptNewProductID},
				domain.StateQuantity:    {ask(promptQuantity), acceptQuantity},
				domain.StatePrice:       {ask(promptPrice), acceptPrice},
				domain.StateCategory:    {ask(promptCategory), acceptText(domain.ScratchCategory, "category", domain.StateImageURL)},
				domain.StateImageURL:    {ask(promptImageURL), acceptText(domain.ScratchImageURL, "imageUrl", domain.StateIdle)},
			},
			commit: commitAddProduct,
		},
		{
			kind:      domain.FlowAddQuantity,
			adminOnly: true,
			first:     domain.StateProductID,
			states: map[domain.StateID]state{
				domain.StateProductID: {ask(promptAddToID), acceptExistingProduct(domain.StateAmount)},
				domain.StateAmount:    {askAmount(promptAddAmount), acceptAmount(false)},
			},
			commit: commitAdjust(1),
		},
		{
			kind:      domain.FlowSubtractQuantity,
			adminOnly: true,
			first:     domain.StateProductID,
			states: map[domain.StateID]state{
				domain.StateProductID: {ask(promptSubtractID), acceptExistingProduct(domain.StateAmount)},
				domain.StateAmount:    {askAmount(promptSubtractAmt), acceptAmount(true)},
			},
			commit: commitAdjust(-1),
		},
		{
			kind:      domain.FlowDeleteProduct,
			adminOnly: true,
			first:     domain.StateProductID,
			states: map[domain.StateID]state{
				domain.StateProductID:     {ask(promptDeleteID), acceptExistingProduct(domain.StateConfirmDelete)},
				domain.StateConfirmDelete: {promptConfirm, acceptConfirm},
			},
			commit: commitDelete,
		},
		{
			kind:      domain.FlowEditProduct,
			adminOnly: true,
			first:     domain.StateProductID,
			states: map[domain.StateID]state{
				domain.StateProductID:  {ask(promptEditID), acceptExistingProduct(domain.StateEditChoice)},
				domain.StateEditChoice: {promptFieldChoice, acceptFieldChoice},
				domain.StateEditValue:  {promptNewValue, acceptNewValue},
			},
			commit: commitEdit,
		},
		{
			kind:  domain.FlowSearchProduct,
			first: domain.StateProductID,
			states: map[domain.StateID]state{
				domain.StateProductID: {ask(promptSearchID), acceptText(domain.ScratchProductID, "productId", domain.StateIdle)},
			},
			commit: commitSearch,
		},
		{
			kind:      domain.FlowSetThreshold,
			adminOnly: true,
			first:     domain.StateThreshold,
			states: map[domain.StateID]state{
				domain.StateThreshold: {promptThresholdValue, acceptThreshold},
			},
			commit: commitThreshold,
		},
		{
			kind:      domain.FlowAddAdmin,
			adminOnly: true,
			first:     domain.StateAdminID,
			states: map[domain.StateID]state{
				domain.StateAdminID: {ask(promptAddAdmin), acceptAdminID},
			},
			commit: commitAddAdmin,
		},
		{
			kind:      domain.FlowRemoveAdmin,
			adminOnly: true,
			first:     domain.StateAdminID,
			entry:     guardNotLastAdmin,
			states: map[domain.StateID]state{
				domain.StateAdminID: {promptAdminList, acceptAdminID},
			},
			commit: commitRemoveAdmin,
		},
	}

	flows := make(map[domain.FlowKind]*flowDef, len(defs))
	for _, d := range defs {
		flows[d.kind] = d
	}
	return flows
}

// prompts

func ask(text string) promptFunc {
	return func(context.Context, *Engine, *domain.Session) (domain.Message, error) {
		return domain.Text(text), nil
	}
}

func askAmount(format string) promptFunc {
	return func(_ context.Context, _ *Engine, sess *domain.Session) (domain.Message, error) {
		return domain.Text(fmt.Sprintf(format, sess.Scratch[domain.ScratchProductID], sess.Scratch[domain.ScratchQuantity])), nil
	}
}

func promptConfirm(_ context.Context, _ *Engine, sess *domain.Session) (domain.Message, error) {
	p := stashedProduct(sess)
	msg := domain.Text(fmt.Sprintf(promptConfirmDelete, ProductDetails(p)))
	msg.Buttons = [][]domain.Button{{
		domain.NewButton("Confirm delete", domain.ConfirmDeleteSelection(p.ProductID)),
		domain.NewButton("Cancel", domain.Selection{Kind: domain.SelectCancelDelete}),
	}}
	return msg, nil
}

func promptFieldChoice(_ context.Context, _ *Engine, sess *domain.Session) (domain.Message, error) {
	msg := domain.Text(fmt.Sprintf(promptEditChoice, ProductDetails(stashedProduct(sess))))
	for _, f := range domain.EditableFields() {
		msg.Buttons = append(msg.Buttons, []domain.Button{domain.NewButton(f.Label(), domain.EditFieldSelection(f))})
	}
	msg.Buttons = append(msg.Buttons, []domain.Button{
		domain.NewButton("Cancel edit", domain.Selection{Kind: domain.SelectCancelEdit}),
	})
	return msg, nil
}

func promptNewValue(_ context.Context, _ *Engine, sess *domain.Session) (domain.Message, error) {
	field := domain.ProductField(sess.Scratch[domain.ScratchField])
	p := stashedProduct(sess)
	return domain.Text(fmt.Sprintf(promptEditValue, strings.ToLower(field.Label()), p.FieldValue(field))), nil
}

func promptThresholdValue(ctx context.Context, e *Engine, _ *domain.Session) (domain.Message, error) {
	v, err := e.store.Threshold(ctx)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Text(fmt.Sprintf(promptThreshold, v)), nil
}

func promptAdminList(ctx context.Context, e *Engine, _ *domain.Session) (domain.Message, error) {
	admins, err := e.store.ListAdmins(ctx)
	if err != nil {
		return domain.Message{}, err
	}
	lines := make([]string, len(admins))
	for i, a := range admins {
		lines[i] = strconv.FormatInt(a, 10)
	}
	return domain.Text(fmt.Sprintf(promptRemoveAdmin, strings.Join(lines, "\n"))), nil
}

// accepts

func textOf(in Input, field string) (string, error) {
	if in.Selection != nil {
		return "", reject(domain.NewValidationError(field, "must be sent as text"), msgExpectText)
	}
	s := strings.TrimSpace(in.Text)
	if s == "" {
		return "", domain.NewValidationError(field, "is required")
	}
	return s, nil
}

func acceptText(key, field string, next domain.StateID) acceptFunc {
	return func(_ context.Context, _ *Engine, sess *domain.Session, in Input) (domain.StateID, error) {
		s, err := textOf(in, field)
		if err != nil {
			return "", err
		}
		sess.Scratch[key] = s
		return next, nil
	}
}

func acceptNewProductID(ctx context.Context, e *Engine, sess *domain.Session, in Input) (domain.StateID, error) {
	id, err := textOf(in, "productId")
	if err != nil {
		return "", err
	}
	_, err = e.store.GetProduct(ctx, id)
	switch {
	case err == nil:
		return "", reject(fmt.Errorf("product %q: %w", id, domain.ErrConflict), fmt.Sprintf(msgProductExists, id))
	case !errors.Is(err, domain.ErrNotFound):
		return "", err
	}
	sess.Scratch[domain.ScratchProductID] = id
	return domain.StateQuantity, nil
}

func acceptQuantity(_ context.Context, _ *Engine, sess *domain.Session, in Input) (domain.StateID, error) {
	s, err := textOf(in, "quantity")
	if err != nil {
		return "", err
	}
	q, err := domain.ParseQuantity(s)
	if err != nil {
		return "", err
	}
	sess.Scratch[domain.ScratchQuantity] = strconv.Itoa(q)
	return domain.StatePrice, nil
}

func acceptPrice(_ context.Context, _ *Engine, sess *domain.Session, in Input) (domain.StateID, error) {
	s, err := textOf(in, "price")
	if err != nil {
		return "", err
	}
	price, err := domain.ParsePrice(s)
	if err != nil {
		return "", err
	}
	sess.Scratch[domain.ScratchPrice] = domain.FormatPrice(price)
	return domain.StateCategory, nil
}

func acceptExistingProduct(next domain.StateID) acceptFunc {
	return func(ctx context.Context, e *Engine, sess *domain.Session, in Input) (domain.StateID, error) {
		id, err := textOf(in, "productId")
		if err != nil {
			return "", err
		}
		p, err := e.store.GetProduct(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return "", reject(err, fmt.Sprintf(msgProductNotFound, id))
		}
		if err != nil {
			return "", err
		}
		stashProduct(sess, *p)
		return next, nil
	}
}

func acceptAmount(subtract bool) acceptFunc {
	return func(ctx context.Context, e *Engine, sess *domain.Session, in Input) (domain.StateID, error) {
		s, err := textOf(in, "amount")
		if err != nil {
			return "", err
		}
		amount, err := domain.ParseAmount(s)
		if err != nil {
			return "", err
		}
		id := sess.Scratch[domain.ScratchProductID]
		p, err := e.store.GetProduct(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return "", rewindTo(domain.StateProductID, reject(err, fmt.Sprintf(msgProductGone, id)))
		}
		if err != nil {
			return "", err
		}
		if subtract && amount > p.Quantity {
			return "", domain.NewValidationError("amount", fmt.Sprintf("exceeds the available quantity (%d)", p.Quantity))
		}
		if !subtract && amount > math.MaxInt-p.Quantity {
			return "", domain.NewValidationError("amount", "is too large for the current quantity")
		}
		sess.Scratch[domain.ScratchAmount] = strconv.Itoa(amount)
		return domain.StateIdle, nil
	}
}

func acceptConfirm(_ context.Context, _ *Engine, sess *domain.Session, in Input) (domain.StateID, error) {
	if in.Selection == nil {
		return "", reject(domain.NewValidationError("selection", "is required"), msgUseButtons)
	}
	switch in.Selection.Kind {
	case domain.SelectConfirmDelete:
		if in.Selection.ProductID != sess.Scratch[domain.ScratchProductID] {
			return "", reject(domain.NewValidationError("selection", "names another product"), msgConfirmMismatch)
		}
		sess.Scratch[domain.ScratchDecision] = decisionConfirm
	case domain.SelectCancelDelete:
		sess.Scratch[domain.ScratchDecision] = decisionCancel
	default:
		return "", reject(domain.NewValidationError("selection", "is not valid here"), msgUseButtons)
	}
	return domain.StateIdle, nil
}

func acceptFieldChoice(_ context.Context, _ *Engine, sess *domain.Session, in Input) (domain.StateID, error) {
	if in.Selection == nil {
		f, ok := domain.ParseProductField(strings.TrimSpace(in.Text))
		if !ok {
			return "", reject(domain.NewValidationError("field", "is not editable"), msgUseButtons)
		}
		sess.Scratch[domain.ScratchField] = string(f)
		return domain.StateEditValue, nil
	}
	switch in.Selection.Kind {
	case domain.SelectEditField:
		sess.Scratch[domain.ScratchField] = string(in.Selection.Field)
		return domain.StateEditValue, nil
	case domain.SelectCancelEdit:
		sess.Scratch[domain.ScratchDecision] = decisionCancel
		return domain.StateIdle, nil
	}
	return "", reject(domain.NewValidationError("selection", "is not valid here"), msgUseButtons)
}

func acceptNewValue(_ context.Context, _ *Engine, sess *domain.Session, in Input) (domain.StateID, error) {
	field := domain.ProductField(sess.Scratch[domain.ScratchField])
	s, err := textOf(in, string(field))
	if err != nil {
		return "", err
	}
	p := stashedProduct(sess)
	if err := p.Apply(field, s); err != nil {
		return "", err
	}
	sess.Scratch[domain.ScratchValue] = p.FieldValue(field)
	return domain.StateIdle, nil
}

func acceptThreshold(_ context.Context, _ *Engine, sess *domain.Session, in Input) (domain.StateID, error) {
	s, err := textOf(in, "threshold")
	if err != nil {
		return "", err
	}
	v, err := domain.ParseThreshold(s)
	if err != nil {
		return "", err
	}
	sess.Scratch[domain.ScratchThreshold] = strconv.Itoa(v)
	return domain.StateIdle, nil
}

func acceptAdminID(_ context.Context, _ *Engine, sess *domain.Session, in Input) (domain.StateID, error) {
	s, err := textOf(in, "id")
	if err != nil {
		return "", err
	}
	id, err := domain.ParseIdentity(s)
	if err != nil {
		return "", err
	}
	sess.Scratch[domain.ScratchAdminID] = strconv.FormatInt(id, 10)
	return domain.StateIdle, nil
}

func guardNotLastAdmin(ctx context.Context, e *Engine) error {
	admins, err := e.store.ListAdmins(ctx)
	if err != nil {
		return err
	}
	if len(admins) <= 1 {
		return reject(domain.ErrGuardViolation, MsgLastAdmin)
	}
	return nil
}

// commits

func commitAddProduct(ctx context.Context, e *Engine, sess *domain.Session) ([]domain.Message, error) {
	qty, _ := strconv.Atoi(sess.Scratch[domain.ScratchQuantity])
	price, _ := strconv.ParseFloat(sess.Scratch[domain.ScratchPrice], 64)
	p := domain.Product{
		CompanyName: sess.Scratch[domain.ScratchCompanyName],
		ProductID:   sess.Scratch[domain.ScratchProductID],
		Quantity:    qty,
		Price:       price,
		Category:    sess.Scratch[domain.ScratchCategory],
		ImageURL:    sess.Scratch[domain.ScratchImageURL],
	}

	err := e.store.AddProduct(ctx, p)
	if errors.Is(err, domain.ErrConflict) {
		return nil, rewindTo(domain.StateProductID, reject(err, fmt.Sprintf(msgProductExists, p.ProductID)))
	}
	if err != nil {
		return nil, err
	}
	return []domain.Message{domain.Text(fmt.Sprintf(msgProductAdded, p.ProductID))}, nil
}

func commitAdjust(sign int) commitFunc {
	return func(ctx context.Context, e *Engine, sess *domain.Session) ([]domain.Message, error) {
		id := sess.Scratch[domain.ScratchProductID]
		amount, _ := strconv.Atoi(sess.Scratch[domain.ScratchAmount])

		p, err := e.store.AdjustQuantity(ctx, id, sign*amount)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, rewindTo(domain.StateProductID, reject(err, fmt.Sprintf(msgProductGone, id)))
		}
		if err != nil {
			return nil, err
		}
		if sign > 0 {
			return []domain.Message{domain.Text(fmt.Sprintf(msgQuantityAdded, amount, id, p.Quantity))}, nil
		}
		return []domain.Message{domain.Text(fmt.Sprintf(msgQuantityRemoved, amount, id, p.Quantity))}, nil
	}
}

func commitDelete(ctx context.Context, e *Engine, sess *domain.Session) ([]domain.Message, error) {
	if sess.Scratch[domain.ScratchDecision] != decisionConfirm {
		return []domain.Message{domain.Text(msgDeleteCancelled)}, nil
	}
	id := sess.Scratch[domain.ScratchProductID]
	err := e.store.DeleteProduct(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, rewindTo(domain.StateProductID, reject(err, fmt.Sprintf(msgProductGone, id)))
	}
	if err != nil {
		return nil, err
	}
	return []domain.Message{domain.Text(fmt.Sprintf(msgProductDeleted, id))}, nil
}

func commitEdit(ctx context.Context, e *Engine, sess *domain.Session) ([]domain.Message, error) {
	if sess.Scratch[domain.ScratchDecision] == decisionCancel {
		return []domain.Message{domain.Text(msgEditCancelled)}, nil
	}
	id := sess.Scratch[domain.ScratchProductID]
	field := domain.ProductField(sess.Scratch[domain.ScratchField])

	p, err := e.store.EditField(ctx, id, field, sess.Scratch[domain.ScratchValue])
	if errors.Is(err, domain.ErrNotFound) {
		return nil, rewindTo(domain.StateProductID, reject(err, fmt.Sprintf(msgProductGone, id)))
	}
	if err != nil {
		return nil, err
	}
	return []domain.Message{domain.Text(fmt.Sprintf(msgFieldUpdated, field.Label(), id, p.FieldValue(field)))}, nil
}

func commitSearch(ctx context.Context, e *Engine, sess *domain.Session) ([]domain.Message, error) {
	id := sess.Scratch[domain.ScratchProductID]
	p, err := e.store.GetProduct(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.Message{domain.Text(fmt.Sprintf(msgSearchNotFound, id))}, nil
	}
	if err != nil {
		return nil, err
	}
	return []domain.Message{domain.Text(ProductDetails(*p))}, nil
}

func commitThreshold(ctx context.Context, e *Engine, sess *domain.Session) ([]domain.Message, error) {
	v, _ := strconv.Atoi(sess.Scratch[domain.ScratchThreshold])
	if err := e.store.SetThreshold(ctx, v); err != nil {
		return nil, err
	}
	return []domain.Message{domain.Text(fmt.Sprintf(msgThresholdUpdated, v))}, nil
}

func commitAddAdmin(ctx context.Context, e *Engine, sess *domain.Session) ([]domain.Message, error) {
	id, _ := strconv.ParseInt(sess.Scratch[domain.ScratchAdminID], 10, 64)
	added, err := e.store.AddAdmin(ctx, id)
	if err != nil {
		return nil, err
	}
	if !added {
		return []domain.Message{domain.Text(fmt.Sprintf(msgAdminExists, id))}, nil
	}
	return []domain.Message{domain.Text(fmt.Sprintf(msgAdminAdded, id))}, nil
}

func commitRemoveAdmin(ctx context.Context, e *Engine, sess *domain.Session) ([]domain.Message, error) {
	id, _ := strconv.ParseInt(sess.Scratch[domain.ScratchAdminID], 10, 64)
	err := e.store.RemoveAdmin(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, rewindTo(domain.StateAdminID, reject(err, fmt.Sprintf(msgNotAnAdmin, id)))
	case errors.Is(err, domain.ErrGuardViolation):
		return nil, reject(err, MsgLastAdmin)
	case err != nil:
		return nil, err
	}
	return []domain.Message{domain.Text(fmt.Sprintf(msgAdminRemoved, id))}, nil
}

const (
	decisionConfirm = "confirm"
	decisionCancel  = "cancel"
)

func stashProduct(sess *domain.Session, p domain.Product) {
	sess.Scratch[domain.ScratchProductID] = p.ProductID
	sess.Scratch[domain.ScratchCompanyName] = p.CompanyName
	sess.Scratch[domain.ScratchQuantity] = strconv.Itoa(p.Quantity)
	sess.Scratch[domain.ScratchPrice] = domain.FormatPrice(p.Price)
	sess.Scratch[domain.ScratchCategory] = p.Category
	sess.Scratch[domain.ScratchImageURL] = p.ImageURL
}

func stashedProduct(sess *domain.Session) domain.Product {
	qty, _ := strconv.Atoi(sess.Scratch[domain.ScratchQuantity])
	price, _ := strconv.ParseFloat(sess.Scratch[domain.ScratchPrice], 64)
	return domain.Product{
		CompanyName: sess.Scratch[domain.ScratchCompanyName],
		ProductID:   sess.Scratch[domain.ScratchProductID],
		Quantity:    qty,
		Price:       price,
		Category:    sess.Scratch[domain.ScratchCategory],
		ImageURL:    sess.Scratch[domain.ScratchImageURL],
	}
}
