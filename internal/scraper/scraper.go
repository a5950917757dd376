// Package scraper is the default scraping collaborator: a headless-browser
// fetch of an opportunity's notice page with readability text extraction and
// an attachment-link scan.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"

	"github.com/ospreyintel/awardflow/internal/pipeline"
	"github.com/ospreyintel/awardflow/models"
)

const defaultNoticeBase = "https://sam.gov/opp"

// Scraper renders the notice page headlessly and extracts its readable text.
type Scraper struct {
	BaseURL   string
	Timeout   time.Duration
	MaxChars  int
	UserAgent string
}

// New returns a scraper with sane defaults.
func New() *Scraper {
	return &Scraper{
		BaseURL:   defaultNoticeBase,
		Timeout:   60 * time.Second,
		MaxChars:  40000,
		UserAgent: "awardflow/1.0 (+ops@ospreyintel.io)",
	}
}

// Scrape fetches and extracts the opportunity's notice page.
func (s *Scraper) Scrape(ctx context.Context, opp models.Opportunity) (*pipeline.ScrapeResult, error) {
	noticeURL, err := s.noticeURL(opp)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	html, err := s.fetchHTML(ctx, noticeURL)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", noticeURL, err)
	}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(noticeURL))
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", noticeURL, err)
	}
	text := strings.TrimSpace(article.TextContent)
	if s.MaxChars > 0 && len(text) > s.MaxChars {
		text = text[:s.MaxChars]
	}
	if text == "" {
		return nil, fmt.Errorf("no extractable text at %s", noticeURL)
	}

	return &pipeline.ScrapeResult{
		ExtractedText: text,
		AttachmentRef: firstAttachmentLink(html, noticeURL),
	}, nil
}

func (s *Scraper) noticeURL(opp models.Opportunity) (string, error) {
	if strings.TrimSpace(opp.NoticeID) == "" {
		return "", errors.New("opportunity has no notice id")
	}
	base := s.BaseURL
	if base == "" {
		base = defaultNoticeBase
	}
	return fmt.Sprintf("%s/%s/view", strings.TrimRight(base, "/"), url.PathEscape(opp.NoticeID)), nil
}

func (s *Scraper) fetchHTML(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(s.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

var attachmentExtensions = []string{".pdf", ".docx", ".doc", ".xlsx", ".zip"}

// firstAttachmentLink scans the rendered page for the first document link,
// resolved against the page URL.
func firstAttachmentLink(html, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	base := mustParseURL(pageURL)
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		lower := strings.ToLower(href)
		for _, ext := range attachmentExtensions {
			if strings.HasSuffix(lower, ext) || strings.Contains(lower, ext+"?") {
				if u, err := url.Parse(href); err == nil {
					found = base.ResolveReference(u).String()
				}
				return false
			}
		}
		return true
	})
	return found
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
