// Package extractor turns marketplace pages into typed listings. Each site is a
// Strategy; the selectors come from its YAML config, not from code.
package extractor

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pricescout/pricescout/config"
	"pricescout/pricescout/services/browser"
	"pricescout/pricescout/utils/types"

	"github.com/PuerkitoBio/goquery"
)

// Strategy knows how to search one site and read its pages.
type Strategy interface {
	ID() string
	SearchURL(q types.ProductQuery) string
	ParseListings(q types.ProductQuery, html string) ([]types.Listing, error)
	ParseImage(html string) (string, error)
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	digitsOnly    = regexp.MustCompile(`^[0-9]+$`)
)

// SiteStrategy is the selector-driven Strategy used for every configured site.
type SiteStrategy struct {
	site *config.SiteConfig
}

func NewSiteStrategy(site *config.SiteConfig) *SiteStrategy {
	return &SiteStrategy{site: site}
}

// ForSite picks the strategy for siteID out of the loaded site configs.
func ForSite(sites map[string]*config.SiteConfig, siteID string) (Strategy, error) {
	site, ok := sites[siteID]
	if !ok {
		return nil, fmt.Errorf("unknown site: %s", siteID)
	}
	return NewSiteStrategy(site), nil
}

func (s *SiteStrategy) ID() string {
	return s.site.ID
}

// SearchURL collapses whitespace runs into the site separator and drops the
// result into the {query} slot of the template.
func (s *SiteStrategy) SearchURL(q types.ProductQuery) string {
	name := whitespaceRun.ReplaceAllString(strings.TrimSpace(q.Name), s.site.Separator)
	return strings.ReplaceAll(s.site.SearchURL, "{query}", url.PathEscape(name))
}

func (s *SiteStrategy) ParseListings(q types.ProductQuery, html string) ([]types.Listing, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	sel := s.site.Selectors
	listings := []types.Listing{}
	doc.Find(sel.Result).Each(func(i int, card *goquery.Selection) {
		title := q.Name
		if sel.Title != "" {
			if t := cleanText(card.Find(sel.Title).First().Text()); t != "" {
				title = t
			}
		}

		integerText, ok := firstText(card, sel.PriceInteger)
		if !ok {
			listings = append(listings, types.Listing{Price: types.PriceUnavailable, Title: title})
			return
		}
		fractionText, _ := firstText(card, sel.PriceFraction)
		price, ok := ParsePrice(integerText, fractionText, s.site.ThousandsSeparators)
		if !ok {
			listings = append(listings, types.Listing{Price: types.PriceUnavailable, Title: title})
			return
		}

		href, _ := card.Find(sel.Link).First().Attr("href")
		listings = append(listings, types.Listing{
			Price:     price,
			Title:     title,
			DetailURL: strings.TrimSpace(href),
		})
	})
	return listings, nil
}

func (s *SiteStrategy) ParseImage(html string) (string, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return "", err
	}
	img := doc.Find(s.site.Selectors.Image).First()
	for _, attr := range []string{"src", "data-zoom", "data-src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", fmt.Errorf("%w: no image matched %q", types.ErrParse, s.site.Selectors.Image)
}

// ParsePrice combines the integer and cents parts after stripping thousands
// separators. Both parts must be plain digits; ok is false when the integer
// part is missing or is not, and a malformed cents part counts as zero.
func ParsePrice(integerText, fractionText, thousandsSeparators string) (float64, bool) {
	integerDigits := stripSeparators(integerText, thousandsSeparators)
	if !digitsOnly.MatchString(integerDigits) {
		return 0, false
	}
	integer, err := strconv.ParseFloat(integerDigits, 64)
	if err != nil {
		return 0, false
	}
	var fraction float64
	if fractionDigits := stripSeparators(fractionText, thousandsSeparators); digitsOnly.MatchString(fractionDigits) {
		if f, err := strconv.ParseFloat(fractionDigits, 64); err == nil {
			fraction = f
		}
	}
	return integer + fraction/100, true
}

func stripSeparators(s, separators string) string {
	s = strings.TrimSpace(s)
	for _, r := range separators {
		s = strings.ReplaceAll(s, string(r), "")
	}
	return s
}

func firstText(card *goquery.Selection, selector string) (string, bool) {
	if selector == "" {
		return "", false
	}
	node := card.Find(selector).First()
	if node.Length() == 0 {
		return "", false
	}
	text := strings.TrimSpace(node.Text())
	return text, text != ""
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// parseDocument rejects pages with no content at all; anything else parses.
func parseDocument(html string) (*goquery.Document, error) {
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("%w: empty page", types.ErrParse)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrParse, err)
	}
	return doc, nil
}

// Fetch navigates a fresh page of sess to the search URL for q and parses the
// listings in page order. The page is closed on every path.
func Fetch(ctx context.Context, sess browser.Session, strategy Strategy, q types.ProductQuery, timeout time.Duration) ([]types.Listing, error) {
	html, err := Load(ctx, sess, strategy.SearchURL(q), timeout)
	if err != nil {
		return nil, err
	}
	return strategy.ParseListings(q, html)
}

// Load opens a page, navigates to target under timeout and returns its HTML.
// Navigation and content failures wrap types.ErrNavigation.
func Load(ctx context.Context, sess browser.Session, target string, timeout time.Duration) (string, error) {
	stepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	page, err := sess.NewPage(stepCtx)
	if err != nil {
		return "", fmt.Errorf("%w: new page: %v", types.ErrNavigation, err)
	}
	defer page.Close()

	if err := page.Goto(stepCtx, target); err != nil {
		return "", fmt.Errorf("%w: %s: %v", types.ErrNavigation, target, err)
	}
	html, err := page.Content(stepCtx)
	if err != nil {
		return "", fmt.Errorf("%w: content of %s: %v", types.ErrNavigation, target, err)
	}
	return html, nil
}
