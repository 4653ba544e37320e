package discovery

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxContainers     = 20
	maxFallbackLinks  = 60
	minFallbackResult = 5
	maxSERPResults    = 15
	minContainerText  = 5
	minFallbackText   = 10
)

// serpResult is one Google result link.
type serpResult struct {
	URL   string
	Title string
}

// extractResults pulls result links from Google SERP HTML. Result
// containers are tried first; when they yield fewer than five links, plain
// anchors fill the gap.
func extractResults(html string) ([]serpResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse serp: %w", err)
	}

	var results []serpResult
	seen := make(map[string]struct{})
	add := func(href, text string) bool {
		if _, dup := seen[href]; dup {
			return false
		}
		seen[href] = struct{}{}
		results = append(results, serpResult{URL: href, Title: text})
		return len(results) >= maxSERPResults
	}

	containers := doc.Find(".g")
	if containers.Length() == 0 {
		containers = doc.Find("[data-sokoban-container]")
	}
	containers.EachWithBreak(func(i int, div *goquery.Selection) bool {
		if i >= maxContainers {
			return false
		}
		link := div.Find("a").First()
		if link.Length() == 0 {
			return true
		}
		href, _ := link.Attr("href")
		text := strings.TrimSpace(div.Find("h3").First().Text())
		if text == "" {
			text = strings.TrimSpace(link.Text())
		}
		if !keepHref(href, "translate.google") || len([]rune(text)) < minContainerText {
			return true
		}
		return !add(href, text)
	})

	if len(results) < minFallbackResult {
		doc.Find("a").EachWithBreak(func(i int, link *goquery.Selection) bool {
			if i >= maxFallbackLinks {
				return false
			}
			href, _ := link.Attr("href")
			text := strings.TrimSpace(link.Text())
			if !keepHref(href, "translate") || len([]rune(text)) < minFallbackText {
				return true
			}
			return !add(href, text)
		})
	}
	return results, nil
}

// keepHref drops non-http links and links back into Google.
func keepHref(href, translateMarker string) bool {
	if !strings.HasPrefix(href, "http") {
		return false
	}
	for _, blocked := range []string{"google.com", "webcache", translateMarker} {
		if strings.Contains(href, blocked) {
			return false
		}
	}
	return true
}
