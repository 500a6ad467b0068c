package scrape

import (
	"strings"
	"testing"
)

func TestDecodeRowsStampsStore(t *testing.T) {
	raw := `[
		{"category": "Obst", "product_name": "Bananen", "price": "1,29 €", "product_url": "https://shop.rewe.de/p/123/"},
		{"category": "Backwaren", "product_name": "Brot", "price": "2,49 €", "product_url": ""}
	]`
	rows, err := decodeRows(raw, "REWE")
	if err != nil {
		t.Fatalf("decodeRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.StoreName != "REWE" {
			t.Fatalf("store not stamped: %+v", r)
		}
	}
	if rows[0].Price != "1,29 €" {
		t.Fatalf("price = %v", rows[0].Price)
	}
}

func TestDecodeRowsBadJSON(t *testing.T) {
	if _, err := decodeRows("not json", "REWE"); err == nil {
		t.Fatal("want error for invalid JSON")
	}
}

func TestAldiTileRow(t *testing.T) {
	// data-article arrives HTML-escaped from getAttribute in some renders.
	tile := aldiTile{
		Category:   "Aktuelle Angebote",
		Article:    `{&quot;productInfo&quot;: {&quot;productName&quot;: &quot;Bio Eier 10er&quot;, &quot;priceWithTax&quot;: 3.29}}`,
		ProductURL: "https://www.aldi-nord.de/angebote/eier.html",
	}
	row, err := tile.row("ALDI")
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if row.ProductName != "Bio Eier 10er" {
		t.Fatalf("name = %q", row.ProductName)
	}
	if row.Price != 3.29 {
		t.Fatalf("price = %v", row.Price)
	}
	if row.StoreName != "ALDI" || row.Category != "Aktuelle Angebote" {
		t.Fatalf("row = %+v", row)
	}
}

func TestAldiTileRowMalformed(t *testing.T) {
	tile := aldiTile{Article: "{broken"}
	if _, err := tile.row("ALDI"); err == nil {
		t.Fatal("want error for malformed data-article")
	}
}

func TestExtractionScriptsReturnJSONStrings(t *testing.T) {
	// The host-side decoders rely on the scripts serialising their result.
	for name, js := range map[string]string{"rewe": reweExtractJS, "aldi": aldiExtractJS} {
		if !strings.Contains(js, "JSON.stringify") {
			t.Fatalf("%s extraction script must stringify its result", name)
		}
	}
}
