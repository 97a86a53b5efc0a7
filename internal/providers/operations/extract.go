package operations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"

	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
)

// MaxHTMLSize limits the HTML one extraction parses
const MaxHTMLSize = 10 * 1024 * 1024

// Extract pulls fields out of the container elements' outer HTML.
//
// Config:
//   - fields: map of name to CSS selector; "selector@attr" reads an attribute
//     and an empty selector reads the element itself
//   - all: collect every match of a field instead of the first
//   - includeHtml: add the sanitized outer HTML of each element
//   - limit: maximum number of elements
//   - html: extract from this HTML instead of the page
//
// Text is whitespace-normalized and stripped of markup.
type Extract struct {
	spec
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
}

// NewExtract creates the extract operation
func NewExtract() *Extract {
	return &Extract{
		spec:   spec{id: "extract", description: "Extract fields from the container elements"},
		strict: bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true),
		ugc:    bluemonday.UGCPolicy(),
	}
}

type field struct {
	name     string
	selector string
	attr     string
}

func (e *Extract) Run(ctx context.Context, opCtx *operation.Context, config map[string]any) (any, error) {
	fields, err := parseFields(config)
	if err != nil {
		return nil, err
	}
	all := operation.GetBool(config, "all", false)
	withHTML := operation.GetBool(config, "includeHtml", false)

	sources, err := e.sources(ctx, opCtx, config)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(sources))
	for _, src := range sources {
		doc, err := LoadHTML(src)
		if err != nil {
			return nil, fmt.Errorf("parse failed: %w", err)
		}
		root := doc.Find("body").Children()
		if root.Length() == 0 {
			root = doc.Selection
		}

		item := make(map[string]any, len(fields)+1)
		for _, f := range fields {
			item[f.name] = e.value(root, f, all)
		}
		if withHTML {
			item["html"] = e.ugc.Sanitize(src)
		}
		items = append(items, item)
	}

	return map[string]any{"items": items, "count": len(items)}, nil
}

// sources returns the HTML of every element to extract from
func (e *Extract) sources(ctx context.Context, opCtx *operation.Context, config map[string]any) ([]string, error) {
	if raw, ok := operation.GetString(config, "html"); ok {
		return []string{raw}, nil
	}
	p, err := page(opCtx)
	if err != nil {
		return nil, err
	}

	sels := targets(opCtx, config)
	if len(sels) == 0 {
		return nil, ErrNoTarget
	}
	if limit, ok := operation.GetInt(config, "limit"); ok && limit > 0 && limit < len(sels) {
		sels = sels[:limit]
	}

	out := make([]string, 0, len(sels))
	for _, sel := range sels {
		var h string
		err := retry(ctx, retries(config), retryDelay(config), func() error {
			var err error
			h, err = p.HTML(ctx, sel)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", sel, err)
		}
		out = append(out, h)
	}
	return out, nil
}

func (e *Extract) value(root *goquery.Selection, f field, all bool) any {
	sel := root
	if f.selector != "" {
		// the element itself may be the match
		sel = root.Filter(f.selector).AddSelection(root.Find(f.selector))
	}

	read := func(s *goquery.Selection) string {
		if f.attr != "" {
			return strings.TrimSpace(s.AttrOr(f.attr, ""))
		}
		h, err := goquery.OuterHtml(s)
		if err != nil {
			return NormalizeWhitespace(s.Text())
		}
		return NormalizeWhitespace(html.UnescapeString(e.strict.Sanitize(h)))
	}

	if !all {
		if sel.Length() == 0 {
			return nil
		}
		return read(sel.First())
	}
	values := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		values = append(values, read(s))
	})
	return values
}

func parseFields(config map[string]any) ([]field, error) {
	raw, ok := operation.GetStringMap(config, "fields")
	if !ok || len(raw) == 0 {
		return []field{{name: "text"}}, nil
	}
	out := make([]field, 0, len(raw))
	for name, expr := range raw {
		f := field{name: name, selector: expr}
		if i := strings.LastIndex(expr, "@"); i >= 0 {
			f.selector, f.attr = strings.TrimSpace(expr[:i]), strings.TrimSpace(expr[i+1:])
			if f.attr == "" {
				return nil, fmt.Errorf("field %s: empty attribute", name)
			}
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// LoadHTML parses HTML. Input that is not valid UTF-8 is converted from its
// detected charset first.
func LoadHTML(src string) (*goquery.Document, error) {
	if src == "" {
		return nil, errors.New("html content required")
	}
	if len(src) > MaxHTMLSize {
		return nil, fmt.Errorf("html exceeds maximum size of %d bytes", MaxHTMLSize)
	}

	if utf8.ValidString(src) {
		return goquery.NewDocumentFromReader(strings.NewReader(src))
	}
	data := []byte(src)
	contentType := "text/html"
	if cs := DetectCharset(data); cs != "" {
		contentType += "; charset=" + cs
	}
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return goquery.NewDocumentFromReader(strings.NewReader(src))
	}
	return goquery.NewDocumentFromReader(r)
}

// DetectCharset guesses the charset of HTML bytes. It returns "" when the
// guess is weak, leaving the choice to the HTML encoding sniffer.
func DetectCharset(data []byte) string {
	result, err := chardet.NewHtmlDetector().DetectBest(data)
	if err != nil || result == nil || result.Confidence < 50 {
		return ""
	}
	return strings.ToLower(result.Charset)
}

// NormalizeWhitespace collapses runs of whitespace into one space
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
