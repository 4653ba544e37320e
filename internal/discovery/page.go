package discovery

import (
	"fmt"
	"html"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"epubsort/internal/textutil"
)

const minPageText = 100

var (
	contentSelectors = []string{
		".content", "#content", ".post-content",
		".article-content", ".main-content", ".story-content",
	}
	blockElements = map[string]struct{}{
		"address": {}, "article": {}, "aside": {}, "blockquote": {}, "br": {}, "dd": {}, "div": {},
		"dl": {}, "dt": {}, "footer": {}, "form": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {},
		"h5": {}, "h6": {}, "header": {}, "hr": {}, "li": {}, "main": {}, "nav": {}, "ol": {},
		"p": {}, "pre": {}, "section": {}, "table": {}, "td": {}, "th": {}, "tr": {}, "ul": {},
	}
	blockSelector = blockList()
	stripPolicy   = bluemonday.StrictPolicy()
)

func blockList() string {
	names := make([]string, 0, len(blockElements))
	for name := range blockElements {
		names = append(names, name)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

// pageData is what a candidate page contributes to metadata parsing.
type pageData struct {
	Text  string
	Title string
	H1    string
}

// extractPage reads text, document title and first h1 from page HTML. Text
// comes from the first strategy that yields more than 100 characters: body,
// paragraphs, known content containers, then the tag-stripped document.
func extractPage(raw string) (pageData, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return pageData{}, "", fmt.Errorf("parse page: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	data := pageData{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		H1:    strings.TrimSpace(innerText(doc.Find("h1").First())),
	}

	if text := innerText(doc.Find("body").First()); len(text) > minPageText {
		data.Text = text
		return data, "body", nil
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := innerText(p); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if text := strings.Join(paragraphs, "\n"); len(text) > minPageText {
		data.Text = text
		return data, "paragraphs", nil
	}

	for _, selector := range contentSelectors {
		if text := innerText(doc.Find(selector).First()); len(text) > minPageText {
			data.Text = text
			return data, selector, nil
		}
	}

	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml("\n")
		s.AfterHtml("\n")
	})
	cleaned, err := doc.Html()
	if err != nil {
		cleaned = raw
	}
	data.Text = collapseLines(html.UnescapeString(stripPolicy.Sanitize(cleaned)))
	return data, "html_strip", nil
}

// innerText approximates the rendered text of a selection: block elements
// start on their own line and blank lines are dropped.
func innerText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, node *goquery.Selection) {
			name := goquery.NodeName(node)
			if name == "#text" {
				b.WriteString(node.Text())
				return
			}
			_, block := blockElements[name]
			if block {
				b.WriteByte('\n')
			}
			walk(node)
			if block {
				b.WriteByte('\n')
			}
		})
	}
	walk(sel)
	return collapseLines(b.String())
}

// collapseLines collapses spaces within each line and drops blank lines.
func collapseLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = textutil.CollapseSpaces(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
