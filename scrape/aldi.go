package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"

	"github.com/mhaberkorn/sparfuchs/offer"
)

const aldiStoresURL = "https://www.aldi-nord.de/filialen-und-oeffnungszeiten.html"

// aldiExtractJS collects the tile groups of the store's offer page. Product
// data sits in a data-article attribute as HTML-escaped JSON; it is returned
// raw and decoded host-side.
const aldiExtractJS = `() => {
	const tiles = [];
	for (const group of document.querySelectorAll('div.mod-tile-group')) {
		const headEl = group.querySelector('div.mod-headline h2');
		const category = headEl ? headEl.textContent.trim() : 'Unknown';
		for (const t of group.querySelectorAll("div[data-t-name='ArticleTile']")) {
			const raw = t.getAttribute('data-article');
			if (!raw) continue;
			const link = t.querySelector('a.mod-article-tile__action');
			let url = link ? (link.getAttribute('href') || '') : '';
			if (url.startsWith('/')) url = 'https://www.aldi-nord.de' + url;
			tiles.push({category: category, article: raw, product_url: url});
		}
	}
	return JSON.stringify(tiles);
}`

// Aldi scrapes ALDI Nord offers. The site gates offers behind a store
// search, so the scraper first selects a store for the region code, then
// follows its ANGEBOTE link.
type Aldi struct {
	browser *Browser
	logger  *slog.Logger
}

// NewAldi creates an ALDI scraper on the shared browser.
func NewAldi(b *Browser) *Aldi {
	return &Aldi{browser: b, logger: b.cfg.Logger}
}

func (s *Aldi) Store() string { return "ALDI" }

func (s *Aldi) Scrape(ctx context.Context, region string) ([]offer.RawRow, error) {
	start := time.Now()

	page, err := s.browser.open(ctx, aldiStoresURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	acceptCookies(ctx, page, s.browser.cfg.CookieWait, s.logger)

	// Location selection and the ANGEBOTE link are best-effort: when either
	// fails the page may still show region-independent offers.
	if err := s.selectLocation(page, region); err != nil {
		s.logger.Warn("scrape: aldi location selection failed", "region", region, "error", err)
	}
	if err := s.openOffers(page); err != nil {
		s.logger.Warn("scrape: aldi offers link failed", "error", err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		s.logger.Warn("scrape: aldi wait load", "error", err)
	}

	res, err := page.Context(ctx).Eval(aldiExtractJS)
	if err != nil {
		return nil, fmt.Errorf("scrape: aldi extract: %w", err)
	}

	var tiles []aldiTile
	if err := json.Unmarshal([]byte(res.Value.Str()), &tiles); err != nil {
		return nil, fmt.Errorf("scrape: aldi decode tiles: %w", err)
	}

	rows := make([]offer.RawRow, 0, len(tiles))
	for _, t := range tiles {
		row, err := t.row(s.Store())
		if err != nil {
			s.logger.Debug("scrape: aldi tile skipped", "error", err)
			continue
		}
		rows = append(rows, row)
	}

	s.logger.Info("scrape: aldi done",
		"region", region, "rows", len(rows), "elapsed", time.Since(start))
	return rows, nil
}

func (s *Aldi) selectLocation(page *rod.Page, region string) error {
	input, err := page.Timeout(15 * time.Second).Element("#autocomplete-input")
	if err != nil {
		return fmt.Errorf("search input: %w", err)
	}
	if err := input.Input(region); err != nil {
		return fmt.Errorf("type region: %w", err)
	}

	opt, err := page.Timeout(10 * time.Second).Element("ul#autocomplete-dropdown li:first-child")
	if err != nil {
		return fmt.Errorf("autocomplete option: %w", err)
	}
	if _, err := opt.Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("click option: %w", err)
	}
	return nil
}

func (s *Aldi) openOffers(page *rod.Page) error {
	link, err := page.Timeout(20 * time.Second).ElementX(
		`//a[contains(@class, 'ubsf_location-list-item-cta') and contains(., 'ANGEBOTE')]`)
	if err != nil {
		return fmt.Errorf("angebote link: %w", err)
	}
	if _, err := link.Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("click angebote: %w", err)
	}
	return nil
}

// aldiTile is one extracted article tile before its data-article payload is
// decoded.
type aldiTile struct {
	Category   string `json:"category"`
	Article    string `json:"article"`
	ProductURL string `json:"product_url"`
}

type aldiArticle struct {
	ProductInfo struct {
		ProductName  string `json:"productName"`
		PriceWithTax any    `json:"priceWithTax"`
	} `json:"productInfo"`
}

// row decodes the HTML-escaped data-article JSON into a raw offer row.
func (t aldiTile) row(store string) (offer.RawRow, error) {
	raw := strings.ReplaceAll(t.Article, "&quot;", `"`)
	var art aldiArticle
	if err := json.Unmarshal([]byte(raw), &art); err != nil {
		return offer.RawRow{}, fmt.Errorf("decode data-article: %w", err)
	}
	return offer.RawRow{
		Category:    t.Category,
		ProductName: art.ProductInfo.ProductName,
		Price:       art.ProductInfo.PriceWithTax,
		ProductURL:  t.ProductURL,
		StoreName:   store,
	}, nil
}
