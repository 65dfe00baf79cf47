package domain

import "github.com/shopspring/decimal"

// LineItem is one book in an order. Prices are copied from the catalog when the
// order is placed and never change afterwards.
type LineItem struct {
	BookID      string          `json:"bookId"`
	Title       string          `json:"title"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	ShippingFee decimal.Decimal `json:"shippingFee"`
	SubTotal    decimal.Decimal `json:"subTotal"`
}

// NewLineItem snapshots book's price and shipping fee for quantity copies.
func NewLineItem(book *Book, quantity int) LineItem {
	return LineItem{
		BookID:      book.ID,
		Title:       book.Title,
		Quantity:    quantity,
		UnitPrice:   book.Price,
		ShippingFee: book.ShippingFee,
		SubTotal:    book.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}
