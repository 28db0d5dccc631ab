package perf

import (
	"time"

	"github.com/ValentinKolb/dPack/lib/schema"
)

// Status is an enum-like order state
type Status uint8

const (
	StatusOpen Status = iota
	StatusPaid
	StatusShipped
)

func (s Status) String() string {
	switch s {
	case StatusPaid:
		return "Paid"
	case StatusShipped:
		return "Shipped"
	default:
		return "Open"
	}
}

// EnumValues lists the members of Status
func (Status) EnumValues() []Status { return []Status{StatusOpen, StatusPaid, StatusShipped} }

// Item is a flat record, usable with every codec
type Item struct {
	SKU      string
	Quantity int
	Price    float64
	Tags     []string
	Attrs    map[string]string
	Image    []byte
}

// Payment is stored polymorphically in Order
type Payment interface {
	Total() int64
}

type Card struct {
	Last4  string
	Amount int64
}

func (c Card) Total() int64 { return c.Amount }

type Transfer struct {
	IBAN   string
	Amount int64
	Booked time.Time
}

func (t Transfer) Total() int64 { return t.Amount }

// Order exercises enums, timestamps, nested collections and polymorphism
type Order struct {
	ID       uint64
	Customer string
	Status   Status
	Created  time.Time
	Items    []Item
	Payment  Payment   `dpack:",known=1:Card|2:Transfer"`
	History  []Payment `dpack:",item=1:Card|2:Transfer"`
	Notes    map[string][]string
	Parent   *Order
}

// sampleTypes returns the type table the sample types are registered in
func sampleTypes() *schema.TypeTable {
	table := schema.NewTypeTable()
	_ = schema.RegisterType[Card](table, "")
	_ = schema.RegisterType[Transfer](table, "")
	return table
}

func sampleItem() Item {
	return Item{
		SKU:      "sku-000123",
		Quantity: 3,
		Price:    19.99,
		Tags:     []string{"red", "xl", "cotton"},
		Attrs:    map[string]string{"color": "red", "size": "xl"},
		Image:    make([]byte, 256),
	}
}

func sampleOrder() Order {
	created := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	return Order{
		ID:       42,
		Customer: "ada@example.com",
		Status:   StatusPaid,
		Created:  created,
		Items:    []Item{sampleItem(), sampleItem()},
		Payment:  Card{Last4: "4242", Amount: 5997},
		History:  []Payment{Transfer{IBAN: "DE00 0000", Amount: 100, Booked: created}, Card{Last4: "1111", Amount: 5}},
		Notes:    map[string][]string{"delivery": {"leave at door"}},
		Parent:   &Order{ID: 41, Customer: "ada@example.com", Created: created},
	}
}
