package enrichment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/findora/tool-radar/internal/models"
	"github.com/sirupsen/logrus"
)

// Extracted text caps, in characters
const (
	maxHomepageText = 10000
	maxPricingText  = 10000
	maxFAQText      = 5000
	maxPrivacyText  = 8000
)

var (
	pricingLinkHints = []string{"pricing", "price", "plan"}
	faqLinkHints     = []string{"faq", "help"}
	privacyLinkHints = []string{"privacy"}
)

// Scraper collects the visible text of a tool's homepage and its pricing,
// FAQ and privacy pages
type Scraper struct {
	fetcher Fetcher
	now     func() time.Time
}

// NewScraper creates a scraper over the given fetcher
func NewScraper(fetcher Fetcher) *Scraper {
	return &Scraper{fetcher: fetcher, now: time.Now}
}

// Scrape fetches rawURL and follows its pricing, FAQ and privacy links.
// Only a homepage failure is an error; secondary pages are best effort.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*models.ScrapedSite, error) {
	base, err := url.Parse(rawURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	html, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}

	site := &models.ScrapedSite{
		URL:         rawURL,
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", "")),
		ScrapedAt:   s.now(),
	}

	// links must be read before the body text is stripped
	pricingURL := findLink(doc, base, pricingLinkHints)
	faqURL := findLink(doc, base, faqLinkHints)
	privacyURL := findLink(doc, base, privacyLinkHints)

	site.HomepageText = truncate(VisibleText(doc), maxHomepageText)
	site.PricingText = site.HomepageText

	if pricingURL != "" {
		if text, err := s.pageText(ctx, pricingURL); err == nil {
			site.PricingText = text
			site.PricingURL = pricingURL
		} else {
			logrus.Warnf("Could not fetch pricing page %s: %v", pricingURL, err)
		}
	}
	site.PricingText = truncate(site.PricingText, maxPricingText)

	if faqURL != "" {
		if text, err := s.pageText(ctx, faqURL); err == nil {
			site.FAQText = truncate(text, maxFAQText)
		} else {
			logrus.Warnf("Could not fetch FAQ page %s: %v", faqURL, err)
		}
	}

	if privacyURL != "" {
		if text, err := s.pageText(ctx, privacyURL); err == nil {
			site.PrivacyText = truncate(text, maxPrivacyText)
			site.PrivacyURL = privacyURL
		} else {
			logrus.Warnf("Could not fetch privacy page %s: %v", privacyURL, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"url":     rawURL,
		"pricing": site.PricingURL != "",
		"faq":     site.FAQText != "",
		"privacy": site.PrivacyURL != "",
	}).Debug("Scraped tool website")

	return site, nil
}

func (s *Scraper) pageText(ctx context.Context, pageURL string) (string, error) {
	html, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return VisibleText(doc), nil
}

// inlineElements do not break words when their text is joined
var inlineElements = map[string]bool{
	"a": true, "abbr": true, "b": true, "code": true, "em": true, "i": true, "label": true,
	"mark": true, "small": true, "span": true, "strong": true, "sub": true, "sup": true, "u": true,
}

// VisibleText returns the body text of doc with scripts and styles removed
// and whitespace collapsed. Block elements are separated by a space. doc is modified.
func VisibleText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	var b strings.Builder
	writeText(&b, root)
	return strings.Join(strings.Fields(b.String()), " ")
}

func writeText(b *strings.Builder, s *goquery.Selection) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text":
			b.WriteString(c.Text())
		case strings.HasPrefix(name, "#"):
			// comments and doctypes
		case inlineElements[name]:
			writeText(b, c)
		default:
			b.WriteByte(' ')
			writeText(b, c)
			b.WriteByte(' ')
		}
	})
}

// findLink returns the absolute URL of the first anchor whose href contains one of hints
func findLink(doc *goquery.Document, base *url.URL, hints []string) string {
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "javascript:") {
			return true
		}
		for _, hint := range hints {
			if !strings.Contains(lower, hint) {
				continue
			}
			ref, err := url.Parse(strings.TrimSpace(href))
			if err != nil {
				return true
			}
			found = base.ResolveReference(ref).String()
			return false
		}
		return true
	})
	return found
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
