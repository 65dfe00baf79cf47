package domain

import "github.com/shopspring/decimal"

// Book is the catalog view checkout needs: price, shipping fee and stock.
type Book struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	ShippingFee decimal.Decimal `json:"shippingFees"`
	Stock       int             `json:"stock"`
}

// Purchasable reports whether the book has a price and can be ordered.
// Books without a positive price are treated as absent by checkout.
func (b *Book) Purchasable() bool {
	return b.Price.IsPositive()
}
