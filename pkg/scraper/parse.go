package scraper

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xybydy/stremio-criterion/pkg/store"
)

// ParseList parses the rows of a Criterion Collection list page ("tr.gridFilm").
// Rows without a title are skipped. Relative poster and film URLs are resolved against baseURL, if set.
func ParseList(r io.Reader, baseURL string) ([]store.Record, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse list page: %w", err)
	}

	var base *url.URL
	if baseURL != "" {
		if base, err = url.Parse(baseURL); err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
	}

	var records []store.Record
	doc.Find("tr.gridFilm").Each(func(_ int, row *goquery.Selection) {
		title := cellText(row, "td.g-title")
		if title == "" {
			return
		}
		poster, _ := row.Find("td.g-img img").First().Attr("src")
		filmURL, _ := row.Attr("data-href")
		if filmURL == "" {
			filmURL, _ = row.Find("td.g-title a").First().Attr("href")
		}

		records = append(records, store.Record{
			Title:        title,
			Poster:       resolve(base, poster),
			Year:         store.Text(cellText(row, "td.g-year")),
			Director:     store.Text(cellText(row, "td.g-director")),
			Country:      store.Text(strings.TrimSuffix(cellText(row, "td.g-country"), ",")),
			CriterionURL: resolve(base, filmURL),
		})
	})
	return records, nil
}

// cellText returns the text of the first matching cell with whitespace runs collapsed.
func cellText(row *goquery.Selection, selector string) string {
	return strings.Join(strings.Fields(row.Find(selector).First().Text()), " ")
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
