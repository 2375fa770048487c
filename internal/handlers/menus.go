// internal/handlers/menus.go
package handlers

import "github.com/ammerola/inventory-bot/internal/core/domain"

const (
	msgWelcome        = "Welcome to the inventory bot! Use the menu below to get started."
	msgMainMenu       = "Main menu:"
	msgAdminMenu      = "Admin tools:"
	msgManageAdmins   = "Manage admins:"
	msgNoActiveFlow   = "No operation is in progress. Send /menu to see what I can do."
	msgUnknownCommand = "Unknown command. Send /menu to see the available options."
	msgStaleButton    = "This button is no longer active."
	msgThrottled      = "Too many requests, slow down."
)

func cmdButton(label string, c domain.Command) domain.Button {
	return domain.NewButton(label, domain.CommandSelection(c))
}

// MainMenu lists the options open to everyone, plus the admin entry for admins
func MainMenu(isAdmin bool) domain.Message {
	rows := [][]domain.Button{
		{cmdButton("View products", domain.CommandViewProducts)},
		{cmdButton("Search product", domain.CommandSearchProduct)},
		{cmdButton("Inventory summary", domain.CommandInventorySummary)},
	}
	if isAdmin {
		rows = append(rows, []domain.Button{
			domain.NewButton("Admin tools", domain.Selection{Kind: domain.SelectAdminMenu}),
		})
	}
	return domain.Message{Text: msgMainMenu, Buttons: rows}
}

// AdminMenu lists every admin tool
func AdminMenu() domain.Message {
	return domain.Message{
		Text: msgAdminMenu,
		Buttons: [][]domain.Button{
			{cmdButton("Add product", domain.CommandAddProduct), cmdButton("Edit product", domain.CommandEditProduct)},
			{cmdButton("Add quantity", domain.CommandAddQuantity), cmdButton("Subtract quantity", domain.CommandSubtractQuantity)},
			{cmdButton("Delete product", domain.CommandDeleteProduct), cmdButton("Low stock", domain.CommandViewLowStock)},
			{cmdButton("Set low stock threshold", domain.CommandSetThreshold)},
			{cmdButton("Generate report", domain.CommandGenerateReport), cmdButton("Backup data", domain.CommandBackupData)},
			{domain.NewButton("Manage admins", domain.Selection{Kind: domain.SelectManageAdmins})},
			{domain.NewButton("Back to main menu", domain.Selection{Kind: domain.SelectMainMenu})},
		},
	}
}

// ManageAdminsMenu lists the admin registry tools
func ManageAdminsMenu() domain.Message {
	return domain.Message{
		Text: msgManageAdmins,
		Buttons: [][]domain.Button{
			{cmdButton("View admins", domain.CommandViewAdmins)},
			{cmdButton("Add admin", domain.CommandAddAdmin), cmdButton("Remove admin", domain.CommandRemoveAdmin)},
			{domain.NewButton("Back to admin tools", domain.Selection{Kind: domain.SelectAdminMenu})},
		},
	}
}
