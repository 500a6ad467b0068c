package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mhaberkorn/sparfuchs/offer"
)

const reweOffersURL = "https://www.rewe.de/angebote/"

// reweExtractJS walks the offer sections and returns a JSON string of raw
// rows. Extraction runs in one evaluation so a mid-scroll DOM re-render
// cannot detach element handles halfway through.
const reweExtractJS = `() => {
	const rows = [];
	for (const sec of document.querySelectorAll('div.sos-category__content')) {
		const catEl = sec.querySelector('.sos-category__content-title h2');
		const category = catEl ? catEl.textContent.trim() : 'Unknown';
		for (const o of sec.querySelectorAll('div.sos-offer')) {
			const nameEl = o.querySelector("a[data-testid='offer-title-link']");
			const priceEl = o.querySelector('.cor-offer-price__tag-price');
			const nan = o.getAttribute('data-offer-nan');
			const name = nameEl ? nameEl.textContent.trim() : '';
			if (!name) continue;
			rows.push({
				category: category,
				product_name: name,
				price: priceEl ? priceEl.textContent.trim() : '',
				product_url: nan ? 'https://shop.rewe.de/p/' + nan + '/' : '',
			});
		}
	}
	return JSON.stringify(rows);
}`

// Rewe scrapes the REWE weekly offer page. The page is not region-gated, so
// the region code only tags the result downstream.
type Rewe struct {
	browser *Browser
	logger  *slog.Logger
}

// NewRewe creates a REWE scraper on the shared browser.
func NewRewe(b *Browser) *Rewe {
	return &Rewe{browser: b, logger: b.cfg.Logger}
}

func (s *Rewe) Store() string { return "REWE" }

func (s *Rewe) Scrape(ctx context.Context, region string) ([]offer.RawRow, error) {
	start := time.Now()

	page, err := s.browser.open(ctx, reweOffersURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	acceptCookies(ctx, page, s.browser.cfg.CookieWait, s.logger)

	if _, err := page.Timeout(15 * time.Second).Element("div.sos-category__content"); err != nil {
		s.logger.Warn("scrape: rewe offer sections did not appear", "error", err)
	}

	res, err := page.Context(ctx).Eval(reweExtractJS)
	if err != nil {
		return nil, fmt.Errorf("scrape: rewe extract: %w", err)
	}
	rows, err := decodeRows(res.Value.Str(), s.Store())
	if err != nil {
		return nil, fmt.Errorf("scrape: rewe: %w", err)
	}

	s.logger.Info("scrape: rewe done",
		"region", region, "rows", len(rows), "elapsed", time.Since(start))
	return rows, nil
}

// decodeRows parses the JSON produced by an extraction script and stamps the
// store name on every row.
func decodeRows(raw, store string) ([]offer.RawRow, error) {
	var rows []offer.RawRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("decode extracted rows: %w", err)
	}
	for i := range rows {
		rows[i].StoreName = store
	}
	return rows, nil
}
