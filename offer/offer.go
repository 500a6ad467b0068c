// Package offer defines the supermarket offer data model and the
// normalization step that turns a raw scraped row into a canonical Offer.
//
// An offer's identity for dedup purposes is the triple
// (product name, store name, exact price). Category and product URL are
// descriptive only and never participate in identity.
package offer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RegionAll is the sentinel region code for offers valid everywhere.
const RegionAll = "ALL"

// ErrInvalidRow is returned when a raw row fails validation and must be dropped.
var ErrInvalidRow = errors.New("offer: invalid row")

// RawRow is one scraped offer as produced by a store scraper. Price may be a
// number or a string like "2,99 €" — normalization decides.
type RawRow struct {
	Category    string `json:"category"`
	ProductName string `json:"product_name"`
	Price       any    `json:"price"`
	ProductURL  string `json:"product_url"`
	StoreName   string `json:"store_name"`
}

// Offer is a canonical, validated offer.
type Offer struct {
	Category    string  `json:"category"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	ProductURL  string  `json:"product_url,omitempty"`
	RegionCode  string  `json:"region_code"`
	StoreName   string  `json:"store_name"`
}

// Normalize validates a raw row and returns its canonical Offer.
// Rows with an empty product name after trimming, a missing store name, or an
// unparseable or negative price are rejected with ErrInvalidRow.
func Normalize(raw RawRow) (Offer, error) {
	name := strings.TrimSpace(raw.ProductName)
	if name == "" {
		return Offer{}, fmt.Errorf("%w: empty product name", ErrInvalidRow)
	}
	store := strings.TrimSpace(raw.StoreName)
	if store == "" {
		return Offer{}, fmt.Errorf("%w: empty store name", ErrInvalidRow)
	}
	price, err := ParsePrice(raw.Price)
	if err != nil {
		return Offer{}, fmt.Errorf("%w: %v", ErrInvalidRow, err)
	}
	if price < 0 {
		return Offer{}, fmt.Errorf("%w: negative price %v", ErrInvalidRow, price)
	}
	return Offer{
		Category:    strings.TrimSpace(raw.Category),
		ProductName: name,
		Price:       price,
		ProductURL:  strings.TrimSpace(raw.ProductURL),
		StoreName:   store,
	}, nil
}

// ParsePrice converts a scraped price to a float. Numeric values pass
// through. Strings are stripped of currency symbols and whitespace, have a
// decimal comma converted to a decimal point, then parsed.
func ParsePrice(v any) (float64, error) {
	switch p := v.(type) {
	case float64:
		return p, nil
	case float32:
		return float64(p), nil
	case int:
		return float64(p), nil
	case int64:
		return float64(p), nil
	case string:
		s := strings.NewReplacer("€", "", "EUR", "", ",", ".").Replace(p)
		s = strings.TrimSpace(s)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable price %q", p)
		}
		return f, nil
	case nil:
		return 0, errors.New("missing price")
	default:
		return 0, fmt.Errorf("unsupported price type %T", v)
	}
}

// DedupKey returns the identity string for an offer. Two offers with the same
// key are the same commercial offer re-observed, regardless of region.
func (o Offer) DedupKey() string {
	return o.ProductName + "_" + o.StoreName + "_" + FormatPrice(o.Price)
}

// FormatPrice renders a price with the shortest exact decimal representation,
// so keys computed from a fresh batch and from a decoded payload agree.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'g', -1, 64)
}
