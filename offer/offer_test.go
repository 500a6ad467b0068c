package offer

import (
	"errors"
	"testing"
)

func TestParsePrice_StringWithCurrency(t *testing.T) {
	p, err := ParsePrice("2,99 €")
	if err != nil {
		t.Fatal(err)
	}
	if p != 2.99 {
		t.Fatalf("expected 2.99, got %v", p)
	}
}

func TestParsePrice_Numeric(t *testing.T) {
	p, err := ParsePrice(3.5)
	if err != nil {
		t.Fatal(err)
	}
	if p != 3.5 {
		t.Fatalf("expected 3.5, got %v", p)
	}
}

func TestParsePrice_Unparseable(t *testing.T) {
	if _, err := ParsePrice("abc"); err == nil {
		t.Fatal("expected error for unparseable price")
	}
}

func TestNormalize_RejectsEmptyName(t *testing.T) {
	_, err := Normalize(RawRow{ProductName: "   ", Price: "1,00", StoreName: "REWE"})
	if !errors.Is(err, ErrInvalidRow) {
		t.Fatalf("expected ErrInvalidRow, got %v", err)
	}
}

func TestNormalize_RejectsBadPrice(t *testing.T) {
	_, err := Normalize(RawRow{ProductName: "Banane", Price: "n/a", StoreName: "REWE"})
	if !errors.Is(err, ErrInvalidRow) {
		t.Fatalf("expected ErrInvalidRow, got %v", err)
	}
}

func TestNormalize_TrimsFields(t *testing.T) {
	o, err := Normalize(RawRow{
		Category:    " Obst ",
		ProductName: " Banane ",
		Price:       "0,39 €",
		StoreName:   " REWE ",
	})
	if err != nil {
		t.Fatal(err)
	}
	if o.ProductName != "Banane" || o.StoreName != "REWE" || o.Category != "Obst" {
		t.Fatalf("fields not trimmed: %+v", o)
	}
	if o.Price != 0.39 {
		t.Fatalf("expected 0.39, got %v", o.Price)
	}
}

func TestDedupKey_IgnoresCategoryAndURL(t *testing.T) {
	a := Offer{ProductName: "Banane", StoreName: "REWE", Price: 0.39, Category: "Obst"}
	b := Offer{ProductName: "Banane", StoreName: "REWE", Price: 0.39, Category: "Aktion", ProductURL: "https://shop.rewe.de/p/1/"}
	if a.DedupKey() != b.DedupKey() {
		t.Fatalf("keys differ: %q vs %q", a.DedupKey(), b.DedupKey())
	}
}

func TestDedupKey_PriceChangesKey(t *testing.T) {
	a := Offer{ProductName: "Banane", StoreName: "REWE", Price: 0.39}
	b := Offer{ProductName: "Banane", StoreName: "REWE", Price: 0.49}
	if a.DedupKey() == b.DedupKey() {
		t.Fatal("different prices must produce different keys")
	}
}
