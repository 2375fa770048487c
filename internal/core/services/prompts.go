// internal/core/services/prompts.go
package services

import (
	"fmt"
	"strings"

	"github.com/ammerola/inventory-bot/internal/core/domain"
)

// Fixed replies shared with the dispatcher
const (
	MsgAdminOnly       = "Sorry, this command is for admins only."
	MsgActionFailed    = "The action failed, please try again later."
	MsgCancelled       = "Operation cancelled."
	MsgNothingToCancel = "There is no active operation to cancel."
	MsgLastAdmin       = "Cannot remove the last admin. At least one admin must remain."
)

const (
	promptCompanyName   = "Enter the company name:"
	promptNewProductID  = "Enter the product ID:"
	promptQuantity      = "Enter the quantity:"
	promptPrice         = "Enter the price:"
	promptCategory      = "Enter the category:"
	promptImageURL      = "Enter the image URL:"
	promptAddToID       = "Enter the ID of the product to add stock to:"
	promptSubtractID    = "Enter the ID of the product to remove stock from:"
	promptAddAmount     = "Product %s has %s in stock. Enter the amount to add:"
	promptSubtractAmt   = "Product %s has %s in stock. Enter the amount to remove:"
	promptDeleteID      = "Enter the ID of the product to delete:"
	promptConfirmDelete = "%s\n\nDelete this product?"
	promptEditID        = "Enter the ID of the product to edit:"
	promptEditChoice    = "%s\n\nChoose the field to edit:"
	promptEditValue     = "Current %s: %s\nEnter the new value:"
	promptSearchID      = "Enter the product ID to search for:"
	promptThreshold     = "The current low stock threshold is %d. Enter the new threshold:"
	promptAddAdmin      = "Enter the numeric user ID of the new admin:"
	promptRemoveAdmin   = "Current admins:\n%s\n\nEnter the user ID of the admin to remove:"

	msgProductAdded     = "Product %s added successfully!"
	msgQuantityAdded    = "Added %d to %s. New quantity: %d."
	msgQuantityRemoved  = "Removed %d from %s. New quantity: %d."
	msgProductDeleted   = "Product %s deleted."
	msgDeleteCancelled  = "Deletion cancelled."
	msgFieldUpdated     = "%s of %s updated to %s."
	msgEditCancelled    = "Edit cancelled."
	msgSearchNotFound   = "Product %s was not found in the inventory."
	msgThresholdUpdated = "Low stock threshold updated to %d."
	msgAdminAdded       = "Admin %d added."
	msgAdminExists      = "%d is already an admin."
	msgAdminRemoved     = "Admin %d removed."

	msgProductExists   = "Product ID %s already exists. Enter a different ID, or send /cancel."
	msgProductNotFound = "Product %s was not found. Check the ID and try again, or send /cancel."
	msgProductGone     = "Product %s no longer exists. Enter another product ID, or send /cancel."
	msgNotAnAdmin      = "%d is not an admin. Enter an ID from the list, or send /cancel."
	msgUseButtons      = "Please use the buttons to choose."
	msgExpectText      = "Please reply with text."
	msgConfirmMismatch = "That confirmation belongs to a different product."
	msgInvalidInput    = "Invalid %s: it %s. Please try again, or send /cancel."
	msgNotFound        = "That item was not found. Please try again, or send /cancel."
	msgConflict        = "That value is already taken. Please try again, or send /cancel."
)

var fieldLabels = map[string]string{
	"companyName": "company name",
	"productId":   "product ID",
	"imageUrl":    "image URL",
	"id":          "user ID",
}

func fieldLabel(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

// ProductDetails renders every attribute of a product, one per line
func ProductDetails(p domain.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", p.CompanyName)
	fmt.Fprintf(&b, "Product ID: %s\n", p.ProductID)
	fmt.Fprintf(&b, "Category: %s\n", p.Category)
	fmt.Fprintf(&b, "Price: %s\n", domain.FormatPrice(p.Price))
	fmt.Fprintf(&b, "Quantity: %d\n", p.Quantity)
	fmt.Fprintf(&b, "Image: %s", p.ImageURL)
	return b.String()
}
