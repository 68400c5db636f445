package reports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/mmdatafocus/pricing_backend/models"
	"github.com/mmdatafocus/pricing_backend/pricing"
	"github.com/mmdatafocus/pricing_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// RFQAnalysisStore is the read side the analysis needs; *models.PricingStore implements it.
type RFQAnalysisStore interface {
	GetRFQ(ctx context.Context, id int) (*models.RequestForQuotation, error)
	GetProduct(ctx context.Context, id int) (*models.Product, error)
	GetCustomer(ctx context.Context, id int) (*models.Customer, error)
	PurchaseOrderHistory(ctx context.Context, customerId int, productId int) ([]models.PurchaseOrder, error)
	ListSupplierPricesByProduct(ctx context.Context, productId int) ([]models.SupplierPrice, error)
	ListTransactionsByRFQ(ctx context.Context, rfqId int) ([]models.Transaction, error)
	GetSuppliersByIds(ctx context.Context, ids []int) (map[int]models.Supplier, error)
}

type RFQSummary struct {
	ID           int             `json:"id"`
	CustomerCode string          `json:"customer_code"`
	ProductSku   string          `json:"product_sku"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	Unit         string          `json:"unit"`
	PolicyMargin decimal.Decimal `json:"policy_margin"`
	DecidedAt    *time.Time      `json:"decided_at"`
}

type PurchaseOrderRow struct {
	ID           int             `json:"id"`
	OrderedAt    time.Time       `json:"ordered_at"`
	Quantity     int             `json:"quantity"`
	Unit         string          `json:"unit"`
	Price        decimal.Decimal `json:"price"`
	Total        decimal.Decimal `json:"total"`
	CustomerCode string          `json:"customer_code"`
	ProductSku   string          `json:"product_sku"`
}

type SupplierPriceRow struct {
	ID             int             `json:"id"`
	SupplierCode   string          `json:"supplier_code"`
	AvailableStock int             `json:"available_stock"`
	Price          decimal.Decimal `json:"price"`
	Latest         bool            `json:"latest"`
}

type TransactionRow struct {
	ID              int                      `json:"id"`
	Quantity        int                      `json:"quantity"`
	SupplierPriceId int                      `json:"supplier_price_id"`
	SupplierPrice   decimal.Decimal          `json:"supplier_price"`
	ChosenPrice     decimal.Decimal          `json:"chosen_price"`
	ProfitMargin    decimal.Decimal          `json:"profit_margin"`
	FinalPrice      decimal.Decimal          `json:"final_price"`
	Profit          decimal.Decimal          `json:"profit"`
	SupplierCode    string                   `json:"supplier_code"`
	Status          models.TransactionStatus `json:"status"`
	Note            string                   `json:"note"`
}

type RFQAnalysis struct {
	RFQ            RFQSummary         `json:"rfq"`
	PurchaseOrders []PurchaseOrderRow `json:"purchase_orders"`
	SupplierPrices []SupplierPriceRow `json:"supplier_prices"`
	Transactions   []TransactionRow   `json:"transactions"`
}

// GetRFQAnalysis gathers everything known about one RFQ: its history with the
// customer, every offer for the product and the transactions recorded for it.
func GetRFQAnalysis(ctx context.Context, store RFQAnalysisStore, rfqId int) (*RFQAnalysis, error) {
	rfq, err := store.GetRFQ(ctx, rfqId)
	if err != nil {
		return nil, err
	}
	product, err := store.GetProduct(ctx, rfq.ProductId)
	if err != nil {
		return nil, fmt.Errorf("product %d: %w", rfq.ProductId, err)
	}
	customer, err := store.GetCustomer(ctx, rfq.CustomerId)
	if err != nil {
		return nil, fmt.Errorf("customer %d: %w", rfq.CustomerId, err)
	}
	orders, err := store.PurchaseOrderHistory(ctx, rfq.CustomerId, rfq.ProductId)
	if err != nil {
		return nil, err
	}
	prices, err := store.ListSupplierPricesByProduct(ctx, rfq.ProductId)
	if err != nil {
		return nil, err
	}
	txns, err := store.ListTransactionsByRFQ(ctx, rfq.ID)
	if err != nil {
		return nil, err
	}

	supplierIds := make([]int, 0, len(prices))
	pricesById := make(map[int]models.SupplierPrice, len(prices))
	for _, sp := range prices {
		supplierIds = append(supplierIds, sp.SupplierId)
		pricesById[sp.ID] = sp
	}
	suppliers, err := store.GetSuppliersByIds(ctx, supplierIds)
	if err != nil {
		return nil, err
	}
	supplierCode := func(id int) string {
		if s, ok := suppliers[id]; ok {
			return s.Code
		}
		return fmt.Sprintf("#%d", id)
	}

	analysis := &RFQAnalysis{
		RFQ: RFQSummary{
			ID:           rfq.ID,
			CustomerCode: customer.Code,
			ProductSku:   product.Sku,
			ProductName:  product.DisplayName(),
			Quantity:     rfq.Quantity,
			Unit:         rfq.Unit,
			PolicyMargin: pricing.ProfitMargin(rfq.Quantity),
			DecidedAt:    rfq.DecidedAt,
		},
		PurchaseOrders: make([]PurchaseOrderRow, 0, len(orders)),
		SupplierPrices: make([]SupplierPriceRow, 0, len(prices)),
		Transactions:   make([]TransactionRow, 0, len(txns)),
	}
	for _, po := range orders {
		analysis.PurchaseOrders = append(analysis.PurchaseOrders, PurchaseOrderRow{
			ID:           po.ID,
			OrderedAt:    po.OrderedAt,
			Quantity:     po.Quantity,
			Unit:         po.Unit,
			Price:        po.Price,
			Total:        po.Total(),
			CustomerCode: customer.Code,
			ProductSku:   product.Sku,
		})
	}

	sort.SliceStable(prices, func(i, j int) bool { return prices[i].Price.LessThan(prices[j].Price) })
	for _, sp := range prices {
		analysis.SupplierPrices = append(analysis.SupplierPrices, SupplierPriceRow{
			ID:             sp.ID,
			SupplierCode:   supplierCode(sp.SupplierId),
			AvailableStock: sp.AvailableStock,
			Price:          sp.Price,
			Latest:         sp.Latest,
		})
	}

	for _, txn := range txns {
		row := TransactionRow{
			ID:              txn.ID,
			Quantity:        txn.Quantity,
			SupplierPriceId: txn.SupplierPriceId,
			ChosenPrice:     txn.ChosenPrice,
			ProfitMargin:    txn.AnalyzedProfitMargin,
			FinalPrice:      txn.FinalPrice,
			Profit:          txn.Profit(),
			Status:          txn.Status,
			Note:            txn.Note,
		}
		if sp, ok := pricesById[txn.SupplierPriceId]; ok {
			row.SupplierPrice = sp.Price
			row.SupplierCode = supplierCode(sp.SupplierId)
		}
		analysis.Transactions = append(analysis.Transactions, row)
	}
	return analysis, nil
}

func formatPercent(margin decimal.Decimal) string {
	return margin.Mul(decimal.NewFromInt(100)).StringFixed(2) + " %"
}

func formatQuantity(quantity int, unit string) string {
	if unit == "" {
		return fmt.Sprint(quantity)
	}
	return fmt.Sprintf("%d %s", quantity, unit)
}

// WriteText prints the analysis as four plain text tables.
func (a *RFQAnalysis) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	decided := "pending"
	if a.RFQ.DecidedAt != nil {
		decided = a.RFQ.DecidedAt.UTC().Format(time.RFC3339)
	}
	fmt.Fprintln(tw, "## RFQ (Request for Quotation)")
	fmt.Fprintf(tw, "ID\t%d\n", a.RFQ.ID)
	fmt.Fprintf(tw, "customer\t%s\n", a.RFQ.CustomerCode)
	fmt.Fprintf(tw, "product\t%s (%s)\n", a.RFQ.ProductSku, a.RFQ.ProductName)
	fmt.Fprintf(tw, "quantity\t%s\n", formatQuantity(a.RFQ.Quantity, a.RFQ.Unit))
	fmt.Fprintf(tw, "policy margin\t%s\n", formatPercent(a.RFQ.PolicyMargin))
	fmt.Fprintf(tw, "decided\t%s\n", decided)

	fmt.Fprintln(tw, "\n## PO Histories")
	fmt.Fprintln(tw, "ID\tOrdered At\tQuantity\tPrice\tTotal\tCustomer\tProduct")
	for _, po := range a.PurchaseOrders {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			po.ID,
			po.OrderedAt.UTC().Format("2006-01-02"),
			formatQuantity(po.Quantity, po.Unit),
			utils.FormatMoney(po.Price, 2),
			utils.FormatMoney(po.Total, 2),
			po.CustomerCode,
			po.ProductSku,
		)
	}

	fmt.Fprintln(tw, "\n## Supplier Prices")
	fmt.Fprintln(tw, "ID\tSupplier\tAvailable Stock\tPrice\tLatest")
	for _, sp := range a.SupplierPrices {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%t\n", sp.ID, sp.SupplierCode, sp.AvailableStock, utils.FormatMoney(sp.Price, 2), sp.Latest)
	}

	fmt.Fprintln(tw, "\n## Transactions")
	fmt.Fprintln(tw, "ID\tQuantity\tSupplier Price ID\tSupplier Price\tChosen Price\tProfit Margin\tFinal Price\tSupplier\tStatus")
	for _, txn := range a.Transactions {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			txn.ID,
			txn.Quantity,
			txn.SupplierPriceId,
			utils.FormatMoney(txn.SupplierPrice, 2),
			utils.FormatMoney(txn.ChosenPrice, 2),
			formatPercent(txn.ProfitMargin),
			utils.FormatMoney(txn.FinalPrice, 2),
			txn.SupplierCode,
			txn.Status,
		)
	}
	return tw.Flush()
}

const (
	sheetRFQ            = "RFQ"
	sheetPurchaseOrders = "PO Histories"
	sheetSupplierPrices = "Supplier Prices"
	sheetTransactions   = "Transactions"
)

// ExcelFile lays the analysis out as one sheet per table.
func (a *RFQAnalysis) ExcelFile() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetRFQ); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetPurchaseOrders, sheetSupplierPrices, sheetTransactions} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	var decidedAt interface{} = "pending"
	if a.RFQ.DecidedAt != nil {
		decidedAt = a.RFQ.DecidedAt.UTC()
	}
	rfqRows := [][]interface{}{
		{"ID", a.RFQ.ID},
		{"Customer", a.RFQ.CustomerCode},
		{"Product", a.RFQ.ProductSku},
		{"Product Name", a.RFQ.ProductName},
		{"Quantity", a.RFQ.Quantity},
		{"Unit", a.RFQ.Unit},
		{"Policy Margin", a.RFQ.PolicyMargin.InexactFloat64()},
		{"Decided At", decidedAt},
	}
	if err := writeSheet(f, sheetRFQ, nil, rfqRows, bold); err != nil {
		return nil, err
	}

	poRows := make([][]interface{}, 0, len(a.PurchaseOrders))
	for _, po := range a.PurchaseOrders {
		poRows = append(poRows, []interface{}{
			po.ID, po.OrderedAt.UTC(), po.Quantity, po.Unit,
			po.Price.InexactFloat64(), po.Total.InexactFloat64(), po.CustomerCode, po.ProductSku,
		})
	}
	if err := writeSheet(f, sheetPurchaseOrders,
		[]interface{}{"ID", "Ordered At", "Quantity", "Unit", "Price", "Total", "Customer", "Product"},
		poRows, bold); err != nil {
		return nil, err
	}

	spRows := make([][]interface{}, 0, len(a.SupplierPrices))
	for _, sp := range a.SupplierPrices {
		spRows = append(spRows, []interface{}{sp.ID, sp.SupplierCode, sp.AvailableStock, sp.Price.InexactFloat64(), sp.Latest})
	}
	if err := writeSheet(f, sheetSupplierPrices,
		[]interface{}{"ID", "Supplier", "Available Stock", "Price", "Latest"},
		spRows, bold); err != nil {
		return nil, err
	}

	txnRows := make([][]interface{}, 0, len(a.Transactions))
	for _, txn := range a.Transactions {
		txnRows = append(txnRows, []interface{}{
			txn.ID, txn.Quantity, txn.SupplierPriceId,
			txn.SupplierPrice.InexactFloat64(), txn.ChosenPrice.InexactFloat64(),
			txn.ProfitMargin.InexactFloat64(), txn.FinalPrice.InexactFloat64(), txn.Profit.InexactFloat64(),
			txn.SupplierCode, string(txn.Status), txn.Note,
		})
	}
	if err := writeSheet(f, sheetTransactions,
		[]interface{}{"ID", "Quantity", "Supplier Price ID", "Supplier Price", "Chosen Price", "Profit Margin", "Final Price", "Profit", "Supplier", "Status", "Note"},
		txnRows, bold); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}, headerStyle int) error {
	rowNo := 1
	if header != nil {
		cell, err := excelize.CoordinatesToCellName(1, rowNo)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &header); err != nil {
			return err
		}
		last, err := excelize.CoordinatesToCellName(len(header), rowNo)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, last, headerStyle); err != nil {
			return err
		}
		rowNo++
	}
	for _, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, rowNo)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
		rowNo++
	}
	return nil
}

// ExcelBytes renders the workbook in memory.
func (a *RFQAnalysis) ExcelBytes() ([]byte, error) {
	f, err := a.ExcelFile()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReportObjectName is the GCS object an exported analysis is stored under.
func ReportObjectName(rfqId int, at time.Time) string {
	return fmt.Sprintf("reports/rfq-%d-%s.xlsx", rfqId, at.UTC().Format("20060102T150405Z"))
}
