package report

import (
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize"

	"github.com/carehub/hms/pkg/dateutil"
)

const inventorySheet = "Inventory"

var inventoryHeaders = []string{
	"Medicine", "Generic Name", "Brand", "Current Stock", "Min Stock Level",
	"Low Stock", "Selling Price", "Nearest Expiry", "Stock Value",
}

func cell(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col, row)
}

// WriteInventory renders the inventory report as a one-sheet workbook.
func WriteInventory(w io.Writer, r *InventoryReport) error {
	file := excelize.NewFile()
	file.SetActiveSheet(file.NewSheet(inventorySheet))
	file.DeleteSheet("Sheet1")

	for i, h := range inventoryHeaders {
		file.SetCellValue(inventorySheet, cell(i, 1), h)
	}
	for i, it := range r.Items {
		row := i + 2
		expiry := ""
		if it.NearestExpiry != nil {
			expiry = it.NearestExpiry.Format(dateutil.DateLayout)
		}
		lowStock := "No"
		if it.LowStock {
			lowStock = "Yes"
		}
		values := []interface{}{
			it.Name, it.GenericName, it.Brand, it.CurrentStock, it.MinStockLevel,
			lowStock, it.SellingPrice.StringFixed(2), expiry, it.StockValue.StringFixed(2),
		}
		for col, v := range values {
			file.SetCellValue(inventorySheet, cell(col, row), v)
		}
	}

	totals := len(r.Items) + 3
	file.SetCellValue(inventorySheet, cell(0, totals), "Total")
	file.SetCellValue(inventorySheet, cell(3, totals), r.TotalUnits)
	file.SetCellValue(inventorySheet, cell(8, totals), r.TotalValue.StringFixed(2))

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write inventory workbook: %w", err)
	}
	return nil
}
