// internal/workers/excel_processor_test.go
package workers_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/inventory-bot/internal/workers"
	"github.com/ammerola/inventory-bot/test/helpers"
	"github.com/ammerola/inventory-bot/test/mocks"
)

func buildSheet(t *testing.T, rows [][]string) []byte {
	t.Helper()
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	require.NoError(t, err)

	header := []string{"Company", "Product ID", "Quantity", "Price", "Category", "Image URL"}
	for _, values := range append([][]string{header}, rows...) {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().Value = v
		}
	}

	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))
	return buf.Bytes()
}

func TestExcelImporter_ImportBytes(t *testing.T) {
	doc := helpers.NewTestDocument(1)
	doc.Products = append(doc.Products, helpers.CreateTestProduct())

	tests := []struct {
		name        string
		rows        [][]string
		wantAdded   int
		wantSkipped int
		wantInvalid int
		wantIDs     []string
	}{
		{
			name: "adds_new_products",
			rows: [][]string{
				{"Tile Co", "T1", "12", "$3.25", "floors", "http://x/t1.png"},
				{"Paint Co", "T2", "4.0", "9", "paint", ""},
			},
			wantAdded: 2,
			wantIDs:   []string{"P100", "T1", "T2"},
		},
		{
			name: "skips_existing_ids",
			rows: [][]string{
				{"Acme", "P100", "99", "1", "floors", ""},
				{"Tile Co", "T1", "1", "1", "floors", ""},
			},
			wantAdded:   1,
			wantSkipped: 1,
			wantIDs:     []string{"P100", "T1"},
		},
		{
			name: "invalid_rows_are_counted",
			rows: [][]string{
				{"Tile Co", "T1", "many", "1", "floors", ""},
				{"Tile Co", "T2", "1", "-4", "floors", ""},
				{"", "T3", "1", "1", "floors", ""},
				{"", "", "", "", "", ""},
			},
			wantInvalid: 3,
			wantIDs:     []string{"P100"},
		},
		{
			name:    "header_only",
			wantIDs: []string{"P100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, repo := newStore(t, doc)
			importer := workers.NewExcelImporter(store, helpers.TestLogger())

			result, err := importer.ImportBytes(context.Background(), buildSheet(t, tt.rows))
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdded, result.Added)
			assert.Equal(t, tt.wantSkipped, result.Skipped)
			assert.Equal(t, tt.wantInvalid, result.Invalid)
			assert.Len(t, result.Errors, tt.wantInvalid)

			var ids []string
			for _, p := range repo.Document().Products {
				ids = append(ids, p.ProductID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestExcelImporter_ExistingProductUnchanged(t *testing.T) {
	doc := helpers.NewTestDocument(1)
	doc.Products = append(doc.Products, helpers.CreateTestProduct())
	store, repo := newStore(t, doc)
	importer := workers.NewExcelImporter(store, helpers.TestLogger())

	_, err := importer.ImportBytes(context.Background(), buildSheet(t, [][]string{
		{"Other", "P100", "1", "1", "walls", ""},
	}))
	require.NoError(t, err)
	assert.Equal(t, helpers.CreateTestProduct(), repo.Document().Products[0])
}

func TestExcelImporter_CorruptData(t *testing.T) {
	store, _ := newStore(t, nil)
	importer := workers.NewExcelImporter(store, helpers.TestLogger())

	_, err := importer.ImportBytes(context.Background(), []byte("not a workbook"))
	assert.Error(t, err)
}

func TestExcelProcessor_ProcessImport(t *testing.T) {
	sheet := buildSheet(t, [][]string{{"Tile Co", "T1", "2", "1.5", "floors", ""}})

	t.Run("downloads_from_storage", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storage := mocks.NewMockBackupStorage(ctrl)
		storage.EXPECT().Download(gomock.Any(), "imports/products.xlsx").Return(sheet, nil)

		store, repo := newStore(t, nil)
		processor := workers.NewExcelProcessor(workers.NewExcelImporter(store, helpers.TestLogger()), storage, helpers.TestLogger())

		task, err := workers.NewImportTask("imports/products.xlsx", 1)
		require.NoError(t, err)
		require.NoError(t, processor.ProcessImport(context.Background(), task))
		assert.Len(t, repo.Document().Products, 1)
	})

	t.Run("reads_local_path", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storage := mocks.NewMockBackupStorage(ctrl)
		path := helpers.CreateTempFile(t, sheet, ".xlsx")

		store, repo := newStore(t, nil)
		processor := workers.NewExcelProcessor(workers.NewExcelImporter(store, helpers.TestLogger()), storage, helpers.TestLogger())

		task := asynq.NewTask(workers.TypeExcelImport, []byte(`{"file_path":"`+path+`"}`))
		require.NoError(t, processor.ProcessImport(context.Background(), task))
		assert.Len(t, repo.Document().Products, 1)
	})

	t.Run("download_failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storage := mocks.NewMockBackupStorage(ctrl)
		storage.EXPECT().Download(gomock.Any(), gomock.Any()).Return(nil, errors.New("gone"))

		store, _ := newStore(t, nil)
		processor := workers.NewExcelProcessor(workers.NewExcelImporter(store, helpers.TestLogger()), storage, helpers.TestLogger())

		task, err := workers.NewImportTask("imports/missing.xlsx", 1)
		require.NoError(t, err)
		assert.Error(t, processor.ProcessImport(context.Background(), task))
	})

	t.Run("empty_payload_skips_retry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		storage := mocks.NewMockBackupStorage(ctrl)
		store, _ := newStore(t, nil)
		processor := workers.NewExcelProcessor(workers.NewExcelImporter(store, helpers.TestLogger()), storage, helpers.TestLogger())

		err := processor.ProcessImport(context.Background(), asynq.NewTask(workers.TypeExcelImport, []byte(`{}`)))
		assert.True(t, errors.Is(err, asynq.SkipRetry))
	})
}
