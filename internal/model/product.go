package model

import "time"

// Product is a canonical catalog product. GTIN is the primary identity when
// present; products without a GTIN are identified only through their supplier
// mappings.
type Product struct {
	ID        string    `json:"id"`
	GTIN      string    `json:"gtin,omitempty"`
	Name      string    `json:"name"`
	Brand     string    `json:"brand,omitempty"`
	Format    string    `json:"format,omitempty"`
	Packaging string    `json:"packaging,omitempty"`
	Category  string    `json:"category,omitempty"`
	Seq       int64     `json:"-"` // catalog insertion order
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductAttrs carries incoming product fields for an upsert. Empty fields
// leave the stored value untouched; non-empty fields overwrite it.
type ProductAttrs struct {
	GTIN      string `json:"gtin,omitempty"`
	Name      string `json:"name,omitempty"`
	Brand     string `json:"brand,omitempty"`
	Format    string `json:"format,omitempty"`
	Packaging string `json:"packaging,omitempty"`
	Category  string `json:"category,omitempty"`
}

// Supplier is one entry of the extensible supplier registry. ID is the short
// machine code ("colabor"), Name the display name ("Colabor").
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// SupplierMapping links a canonical product to one supplier's own code and
// last known price. (SupplierID, Code) is unique across the catalog.
//
// Price and PriceUpdatedAt are written together, only by an explicit
// reconciliation or merge write, never as a side effect of anything else.
type SupplierMapping struct {
	ID             string     `json:"id"`
	ProductID      string     `json:"product_id"`
	SupplierID     string     `json:"supplier_id"`
	Code           string     `json:"code"`
	Price          *float64   `json:"price,omitempty"`
	PriceUpdatedAt *time.Time `json:"price_updated_at,omitempty"`
	Seq            int64      `json:"-"` // catalog insertion order
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Candidate pairs a product with its mapping at one supplier, as returned by
// the fuzzy-search candidate listing.
type Candidate struct {
	Product Product
	Mapping SupplierMapping
}
