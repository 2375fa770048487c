// internal/handlers/dispatcher.go
package handlers

import (
	"context"
	"log/slog"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
	"github.com/ammerola/inventory-bot/internal/core/services"
	"github.com/ammerola/inventory-bot/internal/pkg/logger"
)

// Dispatcher routes inbound events to the conversation engine, the stateless
// queries and the exports. Every selection response carries an Ack.
type Dispatcher struct {
	engine  *services.Engine
	gate    ports.AuthorizationGate
	queries *QueryHandler
	exports *ExportHandler
	logger  *slog.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(
	engine *services.Engine,
	gate ports.AuthorizationGate,
	queries *QueryHandler,
	exports *ExportHandler,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		engine:  engine,
		gate:    gate,
		queries: queries,
		exports: exports,
		logger:  logger.With(slog.String("handler", "dispatcher")),
	}
}

// Handle produces the reply for one event
func (d *Dispatcher) Handle(ctx context.Context, ev domain.Event) domain.Response {
	ctx = logger.WithRequester(ctx, ev.RequesterID)
	if ev.ID != "" {
		ctx = logger.WithEvent(ctx, ev.ID)
	}

	switch ev.Type {
	case domain.EventCommand:
		resp, _ := d.command(ctx, ev.RequesterID, ev.Command)
		return resp
	case domain.EventText:
		return d.text(ctx, ev.RequesterID, ev.Text)
	case domain.EventSelection:
		return d.selection(ctx, ev.RequesterID, ev.Selection)
	}

	d.logger.WarnContext(ctx, "unsupported event type", slog.Int("type", int(ev.Type)))
	return domain.Reply(domain.Text(msgUnknownCommand))
}

// command runs a command in either form. The second result is the notice to
// show in a selection Ack, set when the command was refused.
func (d *Dispatcher) command(ctx context.Context, requesterID int64, cmd domain.Command) (domain.Response, string) {
	if cmd.AdminOnly() {
		if resp, notice, ok := d.requireAdmin(ctx, requesterID, cmd.String()); !ok {
			return resp, notice
		}
	}

	if kind, ok := cmd.Flow(); ok {
		return d.engine.Start(logger.WithFlow(ctx, string(kind)), requesterID, kind), ""
	}

	switch cmd {
	case domain.CommandStart:
		menu := d.mainMenu(ctx, requesterID)
		return domain.Reply(domain.Text(msgWelcome), menu), ""
	case domain.CommandMenu:
		return domain.Reply(d.mainMenu(ctx, requesterID)), ""
	case domain.CommandCancel:
		resp, _ := d.engine.Cancel(ctx, requesterID)
		return resp, ""
	case domain.CommandViewProducts:
		return d.queries.ViewProducts(ctx), ""
	case domain.CommandViewLowStock:
		return d.queries.ViewLowStock(ctx), ""
	case domain.CommandInventorySummary:
		return d.queries.Summary(ctx), ""
	case domain.CommandViewAdmins:
		return d.queries.ViewAdmins(ctx), ""
	case domain.CommandGenerateReport:
		return d.exports.GenerateReport(ctx, requesterID), ""
	case domain.CommandBackupData:
		return d.exports.BackupData(ctx, requesterID), ""
	}

	d.logger.DebugContext(ctx, "unknown command")
	return domain.Reply(domain.Text(msgUnknownCommand)), ""
}

func (d *Dispatcher) text(ctx context.Context, requesterID int64, text string) domain.Response {
	if resp, handled := d.engine.Input(ctx, requesterID, services.TextInput(text)); handled {
		return resp
	}
	return domain.Reply(domain.Text(msgNoActiveFlow))
}

func (d *Dispatcher) selection(ctx context.Context, requesterID int64, sel domain.Selection) domain.Response {
	var (
		resp   domain.Response
		notice string
	)

	switch sel.Kind {
	case domain.SelectCommand:
		resp, notice = d.command(ctx, requesterID, sel.Command)
	case domain.SelectAdminMenu:
		if r, n, ok := d.requireAdmin(ctx, requesterID, "admin_menu"); !ok {
			resp, notice = r, n
		} else {
			resp = domain.Reply(AdminMenu())
		}
	case domain.SelectManageAdmins:
		if r, n, ok := d.requireAdmin(ctx, requesterID, "manage_admins_menu"); !ok {
			resp, notice = r, n
		} else {
			resp = domain.Reply(ManageAdminsMenu())
		}
	case domain.SelectMainMenu:
		resp = domain.Reply(d.mainMenu(ctx, requesterID))
	case domain.SelectConfirmDelete, domain.SelectCancelDelete,
		domain.SelectEditField, domain.SelectCancelEdit:
		r, handled := d.engine.Input(ctx, requesterID, services.SelectionInput(sel))
		if handled {
			return r
		}
		notice = msgStaleButton
	default:
		notice = msgStaleButton
	}

	if resp.Ack == nil {
		resp.Ack = &domain.Ack{Text: notice}
	}
	return resp
}

// requireAdmin answers the denial when the requester is not an admin
func (d *Dispatcher) requireAdmin(ctx context.Context, requesterID int64, what string) (domain.Response, string, bool) {
	allowed, err := d.gate.IsAdmin(ctx, requesterID)
	if err != nil {
		d.logger.ErrorContext(ctx, "admin check failed",
			slog.String("command", what),
			slog.String("error", err.Error()))
		return domain.Failure(services.MsgActionFailed), services.MsgActionFailed, false
	}
	if !allowed {
		d.logger.InfoContext(ctx, "command denied", slog.String("command", what))
		return domain.Reply(domain.Text(services.MsgAdminOnly)), services.MsgAdminOnly, false
	}
	return domain.Response{}, "", true
}

func (d *Dispatcher) mainMenu(ctx context.Context, requesterID int64) domain.Message {
	isAdmin, err := d.gate.IsAdmin(ctx, requesterID)
	if err != nil {
		d.logger.WarnContext(ctx, "admin check failed, showing the public menu", slog.String("error", err.Error()))
	}
	return MainMenu(isAdmin)
}
