package recommend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mhaberkorn/sparfuchs/offer"
)

func extractionPrompt(query string) string {
	return fmt.Sprintf(`You extract shopping items from a user request about supermarket offers.

User request: %q

List every distinct product the user is asking about, as short generic German
or English grocery terms. Rules:
- one line, items separated by commas
- lowercase, except brand names
- no quantities, no prices, no explanations
- if the request names no concrete product, repeat the request itself

Answer with the comma-separated list only.`, query)
}

func selectionPrompt(query string, terms []string, candidates map[string][]offer.Offer) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are a grocery shopping assistant. The user asked: %q

For each requested item below, pick the single best offer from its candidate
list. Prefer the cheapest candidate that actually matches the item; a closer
match beats a lower price for a different product. If no candidate matches an
item, omit that item from the result.

%s

Respond with a JSON object and nothing else, in exactly this shape:
{
  "products": [
    {"product_name": "...", "price": 1.99, "store": "...", "product_url": "...", "region_code": "..."}
  ],
  "recommendation": "..."
}

Rules for the recommendation text:
- at most 3 sentences, addressed to the user
- if an item had no matching candidate, say so in the last sentence
- you may suggest one alternative product from the candidates, never more
- price is a number in EUR, copied verbatim from the chosen candidate`, query, candidateBlocks(terms, candidates))
	return b.String()
}

// candidateBlocks renders the retrieved offers per requested item in a stable
// order so equal inputs yield byte-equal prompts.
func candidateBlocks(terms []string, candidates map[string][]offer.Offer) string {
	ordered := append([]string(nil), terms...)
	for term := range candidates {
		if !containsTerm(ordered, term) {
			ordered = append(ordered, term)
		}
	}
	if len(terms) == 0 {
		sort.Strings(ordered)
	}

	var b strings.Builder
	for _, term := range ordered {
		fmt.Fprintf(&b, "Requested item: %s\n", term)
		offers := candidates[term]
		if len(offers) == 0 {
			b.WriteString("  (no candidates found)\n")
			continue
		}
		for i, o := range offers {
			fmt.Fprintf(&b, "  Candidate %d: %s | Store: %s | Price: €%.2f | Category: %s | Region: %s | URL: %s\n",
				i+1, o.ProductName, o.StoreName, o.Price, o.Category, o.RegionCode, o.ProductURL)
		}
	}
	return b.String()
}

func containsTerm(terms []string, term string) bool {
	for _, t := range terms {
		if t == term {
			return true
		}
	}
	return false
}
