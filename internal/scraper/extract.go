package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/FranksOps/shopwise/internal/model"
	"github.com/PuerkitoBio/goquery"
)

// Selectors locate product fields on a detail page. Empty fields fall back
// to DefaultSelectors.
type Selectors struct {
	Title         string `mapstructure:"title"`
	Price         string `mapstructure:"price"`
	OriginalPrice string `mapstructure:"original_price"`
	Brand         string `mapstructure:"brand"`
	Features      string `mapstructure:"features"`
	SpecTable     string `mapstructure:"spec_table"`
	SpecName      string `mapstructure:"spec_name"`
	SpecValue     string `mapstructure:"spec_value"`
	Notes         string `mapstructure:"notes"`
}

// DefaultSelectors match the PChome 24h product page.
var DefaultSelectors = Selectors{
	Title:         "h1.o-prodMainName__grayDarkest--l700",
	Price:         "div.o-prodPrice__price",
	OriginalPrice: "div.o-prodPrice__originalPrice",
	Brand:         "span.o-prodMainName__colorSecondary",
	Features:      "ul.c-blockCombine__list--prodSlogan li",
	SpecTable:     "table.c-tableGrid--prodSpec",
	SpecName:      "th",
	SpecValue:     "div.c-tableGrid__htmlText",
	Notes:         "div.c-blockCombine__item--prodSpecification",
}

func (s Selectors) withDefaults() Selectors {
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&s.Title, DefaultSelectors.Title)
	fill(&s.Price, DefaultSelectors.Price)
	fill(&s.OriginalPrice, DefaultSelectors.OriginalPrice)
	fill(&s.Brand, DefaultSelectors.Brand)
	fill(&s.Features, DefaultSelectors.Features)
	fill(&s.SpecTable, DefaultSelectors.SpecTable)
	fill(&s.SpecName, DefaultSelectors.SpecName)
	fill(&s.SpecValue, DefaultSelectors.SpecValue)
	fill(&s.Notes, DefaultSelectors.Notes)
	return s
}

// Extract parses a product page into a record. It fails only when the body is
// empty or cannot be read as a document; a page without a recognizable title
// is returned as partial.
func Extract(sourceURL string, body []byte, sel Selectors) (model.ProductRecord, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return model.ProductRecord{}, fmt.Errorf("%w: empty body", model.ErrStructureNotFound)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return model.ProductRecord{}, fmt.Errorf("%w: %w", model.ErrStructureNotFound, err)
	}
	sel = sel.withDefaults()

	rec := model.ProductRecord{
		SourceURL:     sourceURL,
		Name:          firstText(doc, sel.Title),
		Brand:         firstText(doc, sel.Brand),
		Price:         firstText(doc, sel.Price),
		OriginalPrice: firstText(doc, sel.OriginalPrice),
		Features:      []string{},
		Specs:         model.Specs{},
		Notes:         []string{},
		Status:        model.StatusOK,
	}

	doc.Find(sel.Features).Each(func(_ int, s *goquery.Selection) {
		if t := clean(s.Text()); t != "" {
			rec.Features = append(rec.Features, t)
		}
	})

	doc.Find(sel.SpecTable).Find("tr").Each(func(_ int, row *goquery.Selection) {
		name := clean(row.Find(sel.SpecName).First().Text())
		value := row.Find(sel.SpecValue).First()
		if name == "" || value.Length() == 0 {
			return
		}
		rec.Specs.Add(name, clean(value.Text()))
	})

	doc.Find(sel.Notes).Each(func(_ int, s *goquery.Selection) {
		rec.Notes = append(rec.Notes, textLines(s)...)
	})

	if rec.Name == "" {
		rec.Status = model.StatusPartial
		rec.Name = model.Unknown
	}
	for _, f := range []*string{&rec.Brand, &rec.Price, &rec.OriginalPrice} {
		if *f == "" {
			*f = model.Unknown
		}
	}
	return rec, nil
}

func firstText(doc *goquery.Document, selector string) string {
	return clean(doc.Find(selector).First().Text())
}

// clean collapses runs of whitespace into single spaces.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// textLines returns the non-empty text nodes under s, one per line.
func textLines(s *goquery.Selection) []string {
	var lines []string
	var walk func(*goquery.Selection)
	walk = func(n *goquery.Selection) {
		n.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := clean(c.Text()); t != "" {
					lines = append(lines, t)
				}
				return
			}
			walk(c)
		})
	}
	walk(s)
	return lines
}
