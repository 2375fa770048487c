package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/inventory-bot/internal/core/domain"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   domain.Command
		wantOK bool
	}{
		{name: "bare_name", input: "add_product", want: domain.CommandAddProduct, wantOK: true},
		{name: "slash_prefix", input: "/menu", want: domain.CommandMenu, wantOK: true},
		{name: "bot_suffix", input: "/cancel@inventory_bot", want: domain.CommandCancel, wantOK: true},
		{name: "trailing_arguments", input: "/search_product P100", want: domain.CommandSearchProduct, wantOK: true},
		{name: "threshold_command", input: "/set_low_stock_threshold", want: domain.CommandSetThreshold, wantOK: true},
		{name: "unknown", input: "/dance", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := domain.ParseCommand(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCommand_AdminOnlyAndFlow(t *testing.T) {
	assert.True(t, domain.CommandRemoveAdmin.AdminOnly())
	assert.True(t, domain.CommandGenerateReport.AdminOnly())
	assert.False(t, domain.CommandSearchProduct.AdminOnly())
	assert.False(t, domain.CommandViewProducts.AdminOnly())

	flow, ok := domain.CommandSearchProduct.Flow()
	require.True(t, ok)
	assert.Equal(t, domain.FlowSearchProduct, flow)

	_, ok = domain.CommandInventorySummary.Flow()
	assert.False(t, ok)
}

func TestSelection_DataRoundTrip(t *testing.T) {
	selections := []domain.Selection{
		domain.CommandSelection(domain.CommandAddProduct),
		domain.ConfirmDeleteSelection("P-100"),
		domain.EditFieldSelection(domain.FieldPrice),
		{Kind: domain.SelectAdminMenu},
		{Kind: domain.SelectManageAdmins},
		{Kind: domain.SelectMainMenu},
		{Kind: domain.SelectCancelDelete},
		{Kind: domain.SelectCancelEdit},
	}

	for _, s := range selections {
		t.Run(s.Data(), func(t *testing.T) {
			parsed, err := domain.ParseSelection(s.Data())
			require.NoError(t, err)
			assert.Equal(t, s, parsed)
		})
	}
}

func TestParseSelection_Rejects(t *testing.T) {
	for _, data := range []string{"", "cmd:nope", "edit:quantity", "confirm_delete:", "whatever"} {
		_, err := domain.ParseSelection(data)
		assert.Error(t, err, data)
	}
}
