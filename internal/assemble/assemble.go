// Package assemble builds the bounded grounding text handed to the
// synthesizer from scraped records or, failing those, search snippets.
package assemble

import (
	"strings"
	"unicode/utf8"

	"github.com/FranksOps/shopwise/internal/model"
)

// DefaultBudget is the context size limit in runes.
const DefaultBudget = 12000

// block is one product's text. head always carries the source URL so a
// truncated block still satisfies the link invariant.
type block struct {
	url  string
	head string
	body string
}

func (b block) text() string { return b.head + b.body }

// Assembler renders records into an AssembledContext under a rune budget.
type Assembler struct {
	budget int
}

// New creates an Assembler. budget <= 0 means DefaultBudget.
func New(budget int) *Assembler {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Assembler{budget: budget}
}

// Assemble never fails. Failed records are skipped; when none remain the
// hit snippets are used instead.
func (a *Assembler) Assemble(records []model.ProductRecord, hits []model.SearchHit) model.AssembledContext {
	var blocks []block
	for _, r := range records {
		if r.Status == model.StatusFailed || r.SourceURL == "" {
			continue
		}
		blocks = append(blocks, recordBlock(r))
	}

	fromSnippets := false
	if len(blocks) == 0 {
		fromSnippets = true
		for _, h := range hits {
			if h.URL == "" {
				continue
			}
			blocks = append(blocks, snippetBlock(h))
		}
	}

	out := a.pack(blocks)
	out.FromSnippets = fromSnippets && len(out.Sources) > 0
	return out
}

func (a *Assembler) pack(blocks []block) model.AssembledContext {
	out := model.AssembledContext{Sources: []string{}}
	var b strings.Builder
	used := 0

	for i, blk := range blocks {
		text := blk.text() + "\n"
		n := utf8.RuneCountInString(text)
		if used+n > a.budget {
			out.Truncated = true
			if i == 0 {
				b.WriteString(cutAfterHead(blk, a.budget))
				out.Sources = append(out.Sources, blk.url)
			}
			break
		}
		b.WriteString(text)
		used += n
		out.Sources = append(out.Sources, blk.url)
	}

	out.Text = b.String()
	return out
}

// cutAfterHead keeps the head whole and as much of the body as fits.
func cutAfterHead(blk block, budget int) string {
	room := budget - utf8.RuneCountInString(blk.head)
	if room <= 0 {
		return blk.head
	}
	body := []rune(blk.body)
	if len(body) > room {
		body = body[:room]
	}
	return blk.head + string(body)
}

func recordBlock(r model.ProductRecord) block {
	var head strings.Builder
	head.WriteString("商品名稱: " + r.Name + "\n")
	head.WriteString("品牌: " + r.Brand + "\n")
	head.WriteString("售價: " + r.Price + "\n")
	head.WriteString("購買連結: " + r.SourceURL + "\n")

	var body strings.Builder
	if r.OriginalPrice != "" && r.OriginalPrice != model.Unknown {
		body.WriteString("原價: " + r.OriginalPrice + "\n")
	}
	if len(r.Features) > 0 {
		body.WriteString("商品特點:\n")
		for _, f := range r.Features {
			body.WriteString("- " + f + "\n")
		}
	}
	if len(r.Specs) > 0 {
		body.WriteString("商品規格:\n")
		for _, s := range r.Specs {
			body.WriteString(s.Name + ": " + s.Value() + "\n")
		}
	}
	if len(r.Notes) > 0 {
		body.WriteString("其它規格說明:\n")
		for _, n := range r.Notes {
			body.WriteString(n + "\n")
		}
	}
	return block{url: r.SourceURL, head: head.String(), body: body.String()}
}

func snippetBlock(h model.SearchHit) block {
	head := "標題: " + h.Title + "\n購買連結: " + h.URL + "\n"
	body := ""
	if h.Snippet != "" {
		body = "摘要: " + h.Snippet + "\n"
	}
	return block{url: h.URL, head: head, body: body}
}
