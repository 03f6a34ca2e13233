// Package cart holds the shopper's cart: a list of catalog lines with
// quantities bounded by the stock known when the line was added.
package cart

import (
	"log"
	"sync"
)

// Item is a catalog product as the storefront shows it in the cart.
type Item struct {
	ID            string  `json:"id"`
	Reference     string  `json:"reference"`
	Name          string  `json:"name"`
	PriceEur      float64 `json:"priceEur"`
	Color         *string `json:"color"`
	Producer      *string `json:"producer"`
	StockQuantity int     `json:"stockQuantity"`
}

// Line is an Item with the quantity the shopper wants.
type Line struct {
	Item
	Quantite int `json:"quantite"`
}

// Storage persists the cart lines between sessions.
type Storage interface {
	Load() ([]Line, error)
	Save(lines []Line) error
}

// Cart is safe for concurrent use.
type Cart struct {
	mu      sync.Mutex
	lines   []Line
	storage Storage
}

// New restores the cart from storage. An unreadable saved cart is logged
// and the cart starts empty.
func New(storage Storage) *Cart {
	c := &Cart{storage: storage}
	if storage == nil {
		return c
	}
	lines, err := storage.Load()
	if err != nil {
		log.Printf("Error loading cart, starting empty: %v", err)
		return c
	}
	c.lines = lines
	return c
}

// Add puts one more unit of item in the cart. An existing line grows by one
// up to its stock; a new line starts at one.
func (c *Cart) Add(item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.index(item.ID); i >= 0 {
		line := &c.lines[i]
		line.Quantite = min(line.Quantite+1, line.StockQuantity)
	} else {
		c.lines = append(c.lines, Line{Item: item, Quantite: 1})
	}
	c.persist()
}

// Remove drops the line for id.
func (c *Cart) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	c.persist()
}

// SetQuantity sets the quantity of the line for id, clamped to [1, stock].
// A quantity of zero or less removes the line.
func (c *Cart) SetQuantity(id string, quantite int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return
	}
	if quantite <= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	} else {
		c.lines[i].Quantite = max(1, min(quantite, c.lines[i].StockQuantity))
	}
	c.persist()
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	c.persist()
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Total is the sum of price times quantity over every line.
func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total float64
	for _, l := range c.lines {
		total += l.PriceEur * float64(l.Quantite)
	}
	return total
}

// Count is the number of bottles in the cart.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, l := range c.lines {
		n += l.Quantite
	}
	return n
}

func (c *Cart) index(id string) int {
	for i := range c.lines {
		if c.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) persist() {
	if c.storage == nil {
		return
	}
	if err := c.storage.Save(c.lines); err != nil {
		log.Printf("Error saving cart: %v", err)
	}
}
