// Package cart implements the shopping cart: an ordered mapping from
// product ID to quantity with an explicit versioned JSON serialization
// contract. Carts live in Redis per session and, for authenticated users,
// are additionally persisted to the profile row so they survive logouts.
package cart

import (
	"encoding/json"
	"fmt"
)

// Version is the serialization format version.
const Version = 1

// Item is one cart line.
type Item struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Cart is an ordered product -> quantity mapping. Insertion order is
// preserved so the summary page renders lines in the order they were added.
type Cart struct {
	items []Item
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add merges quantity into an existing line or appends a new one.
func (c *Cart) Add(productID int64, quantity int) {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity += quantity
			return
		}
	}
	c.items = append(c.items, Item{ProductID: productID, Quantity: quantity})
}

// Set replaces the quantity of an existing line. A quantity of zero removes
// the line. Returns false when the product is not in the cart.
func (c *Cart) Set(productID int64, quantity int) bool {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			if quantity <= 0 {
				c.items = append(c.items[:i], c.items[i+1:]...)
			} else {
				c.items[i].Quantity = quantity
			}
			return true
		}
	}
	return false
}

// Remove drops a line. Returns false when the product is not in the cart.
func (c *Cart) Remove(productID int64) bool {
	return c.Set(productID, 0)
}

// Quantity returns the quantity for a product, zero when absent.
func (c *Cart) Quantity(productID int64) int {
	for _, item := range c.items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of distinct product lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.items) == 0
}

// Merge folds another cart into this one, summing quantities per product.
func (c *Cart) Merge(other *Cart) {
	for _, item := range other.items {
		c.Add(item.ProductID, item.Quantity)
	}
}

// envelope is the wire form: {"v":1,"items":[...]}.
type envelope struct {
	V     int    `json:"v"`
	Items []Item `json:"items"`
}

// Marshal serializes the cart to its versioned JSON form.
func (c *Cart) Marshal() (string, error) {
	b, err := json.Marshal(envelope{V: Version, Items: c.items})
	if err != nil {
		return "", fmt.Errorf("failed to marshal cart: %w", err)
	}
	return string(b), nil
}

// Unmarshal parses the versioned JSON form. An empty payload yields an
// empty cart; an unknown version is rejected rather than guessed at.
func Unmarshal(data string) (*Cart, error) {
	if data == "" {
		return New(), nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	if env.V != Version {
		return nil, fmt.Errorf("unsupported cart version %d", env.V)
	}

	c := New()
	for _, item := range env.Items {
		if item.Quantity > 0 {
			c.Add(item.ProductID, item.Quantity)
		}
	}
	return c, nil
}
