package adapters

import (
	"context"
	"fmt"
	stdhtml "html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/carlmjohnson/requests"
	"github.com/juju/errors"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
)

type scraper struct {
	transport http.RoundTripper
	now       func() time.Time
	policy    *bluemonday.Policy
}

func newScraper(transport http.RoundTripper, now func() time.Time) *scraper {
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &scraper{transport, now, policy}
}

func (s *scraper) document(ctx context.Context, url string) (*html.Node, error) {
	var body string
	err := requests.URL(url).
		Transport(s.transport).
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		return nil, errors.Annotatef(err, "fetching %s", url)
	}

	doc, err := htmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return nil, errors.Annotatef(err, "parsing %s", url)
	}
	return doc, nil
}

// rows returns the data rows of the first table after the element with the
// given id, each as a list of cell texts. Header rows are skipped.
func (s *scraper) rows(doc *html.Node, anchor string) ([][]string, error) {
	if htmlquery.FindOne(doc, fmt.Sprintf("//*[@id='%s']", anchor)) == nil {
		return nil, errors.NotFoundf("anchor #%s", anchor)
	}

	tables, err := htmlquery.QueryAll(doc, fmt.Sprintf("//*[@id='%s']/following::table", anchor))
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(tables) == 0 {
		return nil, errors.NotFoundf("table after #%s", anchor)
	}

	trs := htmlquery.Find(tables[0], ".//tr[td]")

	out := make([][]string, 0, len(trs))
	for _, tr := range trs {
		tds := htmlquery.Find(tr, "./td")
		cells := make([]string, len(tds))
		for i, td := range tds {
			cells[i] = s.cellText(td)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (s *scraper) cellText(n *html.Node) string {
	raw := htmlquery.OutputHTML(n, false)
	return compactWhitespace(stdhtml.UnescapeString(s.policy.Sanitize(raw)))
}

func compactWhitespace(s string) string {
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.Trim(s, " ")
	return s
}
