package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product describes what the shop offers: a line-item without a quantity.
type Product struct {
	ID       string  `json:"id" form:"id"`
	Title    string  `json:"title" form:"title"`
	ImageURL string  `json:"image_url" form:"image_url"`
	Price    float64 `json:"price" form:"price"`
}

type LineItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(li.Price).Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is ordered by first insertion and holds at most one LineItem per ID.
type Cart []LineItem

func (c Cart) Find(id string) (LineItem, bool) {
	idx := c.indexOf(id)
	if idx < 0 {
		return LineItem{}, false
	}
	return c[idx], true
}

// Count is the number of units in the cart.
func (c Cart) Count() int {
	count := 0
	for _, li := range c {
		count += li.Quantity
	}
	return count
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range c {
		total = total.Add(li.Subtotal())
	}
	return total
}

func (c Cart) indexOf(id string) int {
	for i, li := range c {
		if li.ID == id {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	return append(Cart{}, c...)
}

// Slot is the persisted form of a cart: one key holding the json encoded
// line-items.
type Slot struct {
	Key          string
	Payload      string `datastore:",noindex"`
	Version      int64
	LastModified time.Time
}
