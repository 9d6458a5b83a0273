// Package extract classifies storefront pages and pulls product fields out of
// them using goquery selectors.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/storefront-crawler/internal/crawler"
)

// Selectors locate product fields inside a page. The zero value of any field
// falls back to the matching DefaultSelectors entry.
type Selectors struct {
	Container   string
	Name        string
	Price       string
	Description string
	Image       string
	ImageAttrs  []string
	CardLink    string
}

// DefaultSelectors matches the El Clon storefront markup.
var DefaultSelectors = Selectors{
	Container:   "div#fichaProducto",
	Name:        "h1.tit",
	Price:       "span.monto",
	Description: "div.desc",
	Image:       "img",
	ImageAttrs:  []string{"data-src-g", "src"},
	CardLink:    "div.info a.tit",
}

func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors
	if s.Container != "" {
		d.Container = s.Container
	}
	if s.Name != "" {
		d.Name = s.Name
	}
	if s.Price != "" {
		d.Price = s.Price
	}
	if s.Description != "" {
		d.Description = s.Description
	}
	if s.Image != "" {
		d.Image = s.Image
	}
	if len(s.ImageAttrs) > 0 {
		d.ImageAttrs = s.ImageAttrs
	}
	if s.CardLink != "" {
		d.CardLink = s.CardLink
	}
	return d
}

// Parser implements crawler.Parser with goquery.
type Parser struct {
	selectors Selectors
}

// NewParser builds a Parser for the given selectors.
func NewParser(selectors Selectors) *Parser {
	return &Parser{selectors: selectors.withDefaults()}
}

// Parse builds a Page from an HTML body.
func (p *Parser) Parse(body []byte, pageURL string) (crawler.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", pageURL, err)
	}
	return &Page{doc: doc, url: pageURL, selectors: p.selectors}, nil
}

// Page is a parsed HTML document.
type Page struct {
	doc       *goquery.Document
	url       string
	selectors Selectors
}

// IsProductPage reports whether the product-detail container is present.
func (p *Page) IsProductPage() bool {
	return p.doc.Find(p.selectors.Container).Length() > 0
}

// ExtractProduct pulls the product fields from the detail container. A missing
// container, name or price is an extraction failure; a malformed price is not.
func (p *Page) ExtractProduct() (crawler.Extraction, error) {
	container := p.doc.Find(p.selectors.Container).First()
	if container.Length() == 0 {
		return crawler.Extraction{}, fmt.Errorf("%w: no %s", crawler.ErrExtractionFailed, p.selectors.Container)
	}
	name := container.Find(p.selectors.Name).First()
	if name.Length() == 0 {
		return crawler.Extraction{}, fmt.Errorf("%w: no name (%s)", crawler.ErrExtractionFailed, p.selectors.Name)
	}
	price := container.Find(p.selectors.Price).First()
	if price.Length() == 0 {
		return crawler.Extraction{}, fmt.Errorf("%w: no price (%s)", crawler.ErrExtractionFailed, p.selectors.Price)
	}

	description := ""
	if desc := container.Find(p.selectors.Description).First(); desc.Length() > 0 {
		description = cleanText(desc.Text())
	}

	parsed := ParsePrice(price.Text())
	return crawler.Extraction{
		Product: crawler.Product{
			URL:         p.url,
			Name:        cleanText(name.Text()),
			Description: description,
			Images:      p.images(container),
		},
		Price:       parsed.Amount,
		PriceParsed: parsed.Parsed,
	}, nil
}

// images returns each image's preferred source in document order, duplicates kept.
func (p *Page) images(container *goquery.Selection) []string {
	images := []string{}
	container.Find(p.selectors.Image).Each(func(_ int, img *goquery.Selection) {
		for _, attr := range p.selectors.ImageAttrs {
			if src := strings.TrimSpace(img.AttrOr(attr, "")); src != "" {
				images = append(images, src)
				return
			}
		}
	})
	return images
}

// Links returns every anchor href in document order.
func (p *Page) Links() []string {
	return p.hrefs("a[href]")
}

// ProductCardLinks returns product links found in listing cards.
func (p *Page) ProductCardLinks() []string {
	return p.hrefs(p.selectors.CardLink)
}

func (p *Page) hrefs(selector string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			out = append(out, href)
		}
	})
	return out
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
