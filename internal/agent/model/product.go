package model

// Product is the display shape of a catalog record once it has passed
// validation: the handle is never empty and the price is numeric.
type Product struct {
	Name   string   `json:"name"`
	Vendor string   `json:"vendor"`
	Handle string   `json:"handle"`
	Price  float64  `json:"price"`
	Tags   []string `json:"tags"`
}
