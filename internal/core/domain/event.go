// internal/core/domain/event.go
package domain

import (
	"fmt"
	"strings"
)

// Command is an entry command accepted from the messaging boundary
type Command int

// Command constants
const (
	CommandUnknown Command = iota
	CommandStart
	CommandMenu
	CommandViewProducts
	CommandViewLowStock
	CommandGenerateReport
	CommandInventorySummary
	CommandBackupData
	CommandViewAdmins
	CommandCancel
	CommandAddProduct
	CommandAddQuantity
	CommandSubtractQuantity
	CommandDeleteProduct
	CommandEditProduct
	CommandSearchProduct
	CommandSetThreshold
	CommandAddAdmin
	CommandRemoveAdmin
)

var commandNames = map[Command]string{
	CommandStart:            "start",
	CommandMenu:             "menu",
	CommandViewProducts:     "view_products",
	CommandViewLowStock:     "view_low_stock",
	CommandGenerateReport:   "generate_report",
	CommandInventorySummary: "inventory_summary",
	CommandBackupData:       "backup_data",
	CommandViewAdmins:       "view_admins",
	CommandCancel:           "cancel",
	CommandAddProduct:       "add_product",
	CommandAddQuantity:      "add_quantity",
	CommandSubtractQuantity: "subtract_quantity",
	CommandDeleteProduct:    "delete_product",
	CommandEditProduct:      "edit_product",
	CommandSearchProduct:    "search_product",
	CommandSetThreshold:     "set_low_stock_threshold",
	CommandAddAdmin:         "add_admin",
	CommandRemoveAdmin:      "remove_admin",
}

var commandsByName = func() map[string]Command {
	m := make(map[string]Command, len(commandNames))
	for c, name := range commandNames {
		m[name] = c
	}
	return m
}()

var flowCommands = map[Command]FlowKind{
	CommandAddProduct:       FlowAddProduct,
	CommandAddQuantity:      FlowAddQuantity,
	CommandSubtractQuantity: FlowSubtractQuantity,
	CommandDeleteProduct:    FlowDeleteProduct,
	CommandEditProduct:      FlowEditProduct,
	CommandSearchProduct:    FlowSearchProduct,
	CommandSetThreshold:     FlowSetThreshold,
	CommandAddAdmin:         FlowAddAdmin,
	CommandRemoveAdmin:      FlowRemoveAdmin,
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCommand accepts "name", "/name" and "/name@botname"
func ParseCommand(s string) (Command, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "/")
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	c, ok := commandsByName[strings.ToLower(s)]
	return c, ok
}

// AdminOnly reports whether the command, in command or menu form, requires admin rights
func (c Command) AdminOnly() bool {
	switch c {
	case CommandAddProduct, CommandAddQuantity, CommandSubtractQuantity,
		CommandDeleteProduct, CommandEditProduct, CommandViewLowStock,
		CommandSetThreshold, CommandGenerateReport, CommandBackupData,
		CommandViewAdmins, CommandAddAdmin, CommandRemoveAdmin:
		return true
	default:
		return false
	}
}

// Flow returns the conversation started by the command, if any
func (c Command) Flow() (FlowKind, bool) {
	f, ok := flowCommands[c]
	return f, ok
}

// SelectionKind tags the variants of Selection
type SelectionKind int

// Selection kinds
const (
	SelectUnknown SelectionKind = iota
	SelectCommand
	SelectAdminMenu
	SelectManageAdmins
	SelectMainMenu
	SelectConfirmDelete
	SelectCancelDelete
	SelectEditField
	SelectCancelEdit
)

// Selection is a button press. Only the fields relevant to Kind are set.
type Selection struct {
	Kind      SelectionKind
	Command   Command
	ProductID string
	Field     ProductField
}

const (
	dataCommandPrefix = "cmd:"
	dataConfirmPrefix = "confirm_delete:"
	dataEditPrefix    = "edit:"
	dataAdminMenu     = "admin_menu"
	dataManageAdmins  = "manage_admins_menu"
	dataMainMenu      = "main_menu"
	dataCancelDelete  = "cancel_delete"
	dataCancelEdit    = "cancel_edit"
)

// CommandSelection is the menu-button form of a command
func CommandSelection(c Command) Selection {
	return Selection{Kind: SelectCommand, Command: c}
}

// ConfirmDeleteSelection confirms deletion of a product
func ConfirmDeleteSelection(productID string) Selection {
	return Selection{Kind: SelectConfirmDelete, ProductID: productID}
}

// EditFieldSelection chooses the field to edit
func EditFieldSelection(f ProductField) Selection {
	return Selection{Kind: SelectEditField, Field: f}
}

// ParseSelection decodes button callback data
func ParseSelection(data string) (Selection, error) {
	switch {
	case data == dataAdminMenu:
		return Selection{Kind: SelectAdminMenu}, nil
	case data == dataManageAdmins:
		return Selection{Kind: SelectManageAdmins}, nil
	case data == dataMainMenu:
		return Selection{Kind: SelectMainMenu}, nil
	case data == dataCancelDelete:
		return Selection{Kind: SelectCancelDelete}, nil
	case data == dataCancelEdit:
		return Selection{Kind: SelectCancelEdit}, nil
	case strings.HasPrefix(data, dataCommandPrefix):
		c, ok := ParseCommand(strings.TrimPrefix(data, dataCommandPrefix))
		if !ok {
			return Selection{}, fmt.Errorf("unknown command selection %q", data)
		}
		return CommandSelection(c), nil
	case strings.HasPrefix(data, dataConfirmPrefix):
		id := strings.TrimPrefix(data, dataConfirmPrefix)
		if id == "" {
			return Selection{}, fmt.Errorf("confirm selection without product id")
		}
		return ConfirmDeleteSelection(id), nil
	case strings.HasPrefix(data, dataEditPrefix):
		f, ok := ParseProductField(strings.TrimPrefix(data, dataEditPrefix))
		if !ok {
			return Selection{}, fmt.Errorf("unknown edit field %q", data)
		}
		return EditFieldSelection(f), nil
	}
	return Selection{}, fmt.Errorf("unknown selection %q", data)
}

// Data encodes the selection as button callback data
func (s Selection) Data() string {
	switch s.Kind {
	case SelectCommand:
		return dataCommandPrefix + s.Command.String()
	case SelectAdminMenu:
		return dataAdminMenu
	case SelectManageAdmins:
		return dataManageAdmins
	case SelectMainMenu:
		return dataMainMenu
	case SelectConfirmDelete:
		return dataConfirmPrefix + s.ProductID
	case SelectCancelDelete:
		return dataCancelDelete
	case SelectEditField:
		return dataEditPrefix + string(s.Field)
	case SelectCancelEdit:
		return dataCancelEdit
	}
	return ""
}

// EventType tags inbound events
type EventType int

// Event types
const (
	EventCommand EventType = iota + 1
	EventText
	EventSelection
)

// Event is one inbound interaction from a requester
type Event struct {
	ID          string
	RequesterID int64
	Type        EventType
	Command     Command
	Text        string
	Selection   Selection
}

// Button is a selectable option rendered under a message
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// NewButton builds a button for a selection
func NewButton(label string, s Selection) Button {
	return Button{Label: label, Data: s.Data()}
}

// Attachment is a file delivered with a message
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Message is one outbound reply
type Message struct {
	Text       string      `json:"text,omitempty"`
	Buttons    [][]Button  `json:"buttons,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Ack acknowledges a selection event; Text is an optional notice
type Ack struct {
	Text string `json:"text,omitempty"`
}

// Response collects everything produced for one inbound event. Failed marks
// a reply to an internal failure, as opposed to a refusal or rejected input.
type Response struct {
	Ack      *Ack      `json:"ack,omitempty"`
	Messages []Message `json:"messages"`
	Failed   bool      `json:"-"`
}

// Text builds a plain text message
func Text(text string) Message {
	return Message{Text: text}
}

// Textf builds a formatted text message
func Textf(format string, args ...any) Message {
	return Message{Text: fmt.Sprintf(format, args...)}
}

// Reply builds a response holding the given messages
func Reply(msgs ...Message) Response {
	return Response{Messages: msgs}
}

// Failure builds a failed response carrying a single notice
func Failure(text string) Response {
	return Response{Messages: []Message{Text(text)}, Failed: true}
}
