package domain

import "time"

// CartItem is a user's pending selection, holding the price at add time.
// The cached price is advisory only: checkout recomputes against the catalog.
type CartItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	ProductID string    `json:"productId"`
	ShopID    string    `json:"shopId"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unitPrice"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// CartTotal sums the cached line totals.
func CartTotal(items []CartItem) int64 {
	var total int64
	for _, it := range items {
		total += it.UnitPrice * int64(it.Quantity)
	}
	return total
}
