package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mhaberkorn/sparfuchs/offer"
	"github.com/mhaberkorn/sparfuchs/textgen"
	"github.com/mhaberkorn/sparfuchs/vecstore"
)

// scriptedGen replays canned responses in call order and records the prompts
// it was given.
type scriptedGen struct {
	responses []string
	errs      []error
	prompts   []string
	opts      []textgen.Options
}

func (g *scriptedGen) Generate(_ context.Context, prompt string, opts textgen.Options) (string, error) {
	i := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	g.opts = append(g.opts, opts)
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i >= len(g.responses) {
		return "", errors.New("scriptedGen: out of responses")
	}
	return g.responses[i], nil
}

func (g *scriptedGen) Model() string { return "scripted" }

// fakeEmbedder returns fixed vectors per text so search ranking is under the
// test's control. Texts listed in errs fail instead.
type fakeEmbedder struct {
	vectors map[string][]float32
	errs    map[string]error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if err, ok := f.errs[text]; ok {
		return nil, err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake" }

func seedOffers(t *testing.T, store *vecstore.Memory) {
	t.Helper()
	ctx := context.Background()
	if err := store.CreateCollection(ctx, "offers", 2); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	points := []vecstore.Point{
		{ID: 1, Vector: []float32{1, 0}, Payload: map[string]any{
			"product_name": "Bananen 1kg", "store_name": "Rewe", "price": 1.29,
			"category": "Obst", "region_code": "ALL", "product_url": "https://shop.rewe.de/p/1/",
		}},
		{ID: 2, Vector: []float32{0.9, 0.1}, Payload: map[string]any{
			"product_name": "Bio Bananen", "store_name": "Aldi", "price": 1.59,
			"category": "Obst", "region_code": "80331",
		}},
		{ID: 3, Vector: []float32{0, 1}, Payload: map[string]any{
			"product_name": "Vollkornbrot", "store_name": "Rewe", "price": 2.49,
			"category": "Backwaren", "region_code": "10115",
		}},
	}
	if err := store.Upsert(ctx, "offers", points); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestRetrieveAppliesRegionFilter(t *testing.T) {
	store := vecstore.NewMemory()
	seedOffers(t, store)
	embedder := &fakeEmbedder{vectors: map[string][]float32{"banana": {1, 0}}}
	r := NewRetriever(store, embedder, "offers", nil)

	// Region-scoped: region-wide offers plus the exact region, nothing else.
	got, err := r.Retrieve(context.Background(), "banana", "80331", 4)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 offers, got %d: %+v", len(got), got)
	}
	if got[0].ProductName != "Bananen 1kg" {
		t.Fatalf("want best match first, got %q", got[0].ProductName)
	}
	for _, o := range got {
		if o.RegionCode == "10115" {
			t.Fatalf("offer from foreign region leaked: %+v", o)
		}
	}

	// An ALL query is unfiltered.
	got, err = r.Retrieve(context.Background(), "banana", offer.RegionAll, 4)
	if err != nil {
		t.Fatalf("Retrieve ALL: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 offers for ALL, got %d", len(got))
	}
}

func TestAnswerFullPipeline(t *testing.T) {
	store := vecstore.NewMemory()
	seedOffers(t, store)
	// The bread term fails to embed; its retrieval degrades to an empty
	// candidate list without aborting the banana term.
	embedder := &fakeEmbedder{
		vectors: map[string][]float32{"banana": {1, 0}},
		errs:    map[string]error{"bread": errors.New("embed backend down")},
	}
	gen := &scriptedGen{responses: []string{
		"banana, bread",
		"```json\n{\"products\": [{\"product_name\": \"Bananen 1kg\", \"price\": 1.29, \"store\": \"Rewe\", \"product_url\": \"https://shop.rewe.de/p/1/\", \"region_code\": \"ALL\"}], \"recommendation\": \"Bananas are cheapest at Rewe. No bread offers were found in your region.\"}\n```",
	}}
	e := New(NewRetriever(store, embedder, "offers", nil), gen, Config{})

	resp := e.Answer(context.Background(), "I want bananas and bread", "80331")
	if resp.Error != "" {
		t.Fatalf("unexpected error: %q", resp.Error)
	}
	if len(resp.Products) != 1 || resp.Products[0].ProductName != "Bananen 1kg" {
		t.Fatalf("unexpected products: %+v", resp.Products)
	}
	if resp.Products[0].Price != 1.29 {
		t.Fatalf("price = %v", resp.Products[0].Price)
	}
	if !strings.Contains(resp.Recommendation, "No bread offers") {
		t.Fatalf("recommendation = %q", resp.Recommendation)
	}

	// The selection prompt must carry both requested items and the
	// region-visible candidates.
	if len(gen.prompts) != 2 {
		t.Fatalf("want 2 provider calls, got %d", len(gen.prompts))
	}
	selPrompt := gen.prompts[1]
	for _, want := range []string{"Requested item: banana", "Requested item: bread", "Bananen 1kg", "(no candidates found)"} {
		if !strings.Contains(selPrompt, want) {
			t.Fatalf("selection prompt missing %q:\n%s", want, selPrompt)
		}
	}
	if !gen.opts[1].JSONMode {
		t.Fatal("selection call should request JSON mode")
	}
}

func TestAnswerEmptyQuery(t *testing.T) {
	e := New(NewRetriever(vecstore.NewMemory(), &fakeEmbedder{}, "offers", nil), &scriptedGen{}, Config{})
	resp := e.Answer(context.Background(), "   ", "ALL")
	if resp.Error == "" {
		t.Fatal("want error for empty query")
	}
	if len(resp.Products) != 0 {
		t.Fatalf("want no products, got %+v", resp.Products)
	}
}

func TestAnswerDecomposeFallsBackToRawQuery(t *testing.T) {
	store := vecstore.NewMemory()
	seedOffers(t, store)
	gen := &scriptedGen{
		errs:      []error{errors.New("provider down"), nil},
		responses: []string{"", `{"products": [], "recommendation": "Nothing found."}`},
	}
	e := New(NewRetriever(store, &fakeEmbedder{}, "offers", nil), gen, Config{})

	resp := e.Answer(context.Background(), "cheap cereal", "ALL")
	if resp.Error != "" {
		t.Fatalf("unexpected error: %q", resp.Error)
	}
	if !strings.Contains(gen.prompts[1], "Requested item: cheap cereal") {
		t.Fatalf("raw query not used as term:\n%s", gen.prompts[1])
	}
}

func TestAnswerUnparseableSelection(t *testing.T) {
	store := vecstore.NewMemory()
	seedOffers(t, store)
	gen := &scriptedGen{responses: []string{"banana", "sorry, I cannot help with that"}}
	e := New(NewRetriever(store, &fakeEmbedder{}, "offers", nil), gen, Config{})

	resp := e.Answer(context.Background(), "bananas", "ALL")
	if resp.Error == "" {
		t.Fatal("want error response for unparseable selection")
	}
	if len(resp.Products) != 0 || resp.Recommendation != "" {
		t.Fatalf("error response must carry no partial result: %+v", resp)
	}
}

func TestDecomposeParsesTermLine(t *testing.T) {
	gen := &scriptedGen{responses: []string{"\n 'banana', bread, banana, \"oat milk\" \nignored second line"}}
	e := New(nil, gen, Config{})
	got := e.Decompose(context.Background(), "whatever")
	want := []string{"banana", "bread", "oat milk"}
	if len(got) != len(want) {
		t.Fatalf("terms = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("terms = %v, want %v", got, want)
		}
	}
}
