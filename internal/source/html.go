package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/octobees/turmeric-buyers/internal/entity"
)

// HTTPClient abstracts HTTP requests so collectors can be tested offline.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	maxPerPage       = 20
	directoryTimeout = 20 * time.Second
	userAgent        = "Mozilla/5.0 (compatible; turmeric-buyers/1.0)"
)

var (
	emailInText   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneInText   = regexp.MustCompile(`\+?\d[\d\s\-()]{8,18}\d`)
	websiteInText = regexp.MustCompile(`https?://[^\s<>"]+|www\.[^\s<>"]+\.[a-z]{2,}`)
)

// relevanceKeywords must appear somewhere on a page before it is mined.
var relevanceKeywords = []string{"turmeric", "haldi", "curcuma", "spice", "herb"}

// Selectors locate buyer listings and their fields within a directory page.
type Selectors struct {
	Listing  string
	Name     string
	Email    string
	Phone    string
	Location string
	Website  string
}

// Directory is a searchable business listing site. SearchURL contains a single
// %s verb that receives the escaped search term.
type Directory struct {
	Name      string
	SearchURL string
	Selectors Selectors
}

// DefaultSelectors match the common listing markup of B2B directories.
var DefaultSelectors = Selectors{
	Listing:  ".seller_detail, .company-info, .company_profile, .search-result, .lst",
	Name:     ".seller_name a, .company_name, .company-name, h3",
	Email:    `.email, [href^="mailto:"]`,
	Phone:    ".phone, .mobile, .contact-no",
	Location: ".seller_location, .location, .city, .city-name",
	Website:  `.website a, a.website, [rel="nofollow"][href^="http"]`,
}

// DefaultDirectories are the B2B directories searched when none are configured.
var DefaultDirectories = []Directory{
	{
		Name:      "tradeindia",
		SearchURL: "https://www.tradeindia.com/Seller/search.html?keyword=%s",
		Selectors: Selectors{
			Listing:  ".seller_detail, .company-info",
			Name:     ".seller_name a, .company_name",
			Email:    `.email, [href^="mailto:"]`,
			Phone:    ".phone, .mobile",
			Location: ".seller_location, .location",
		},
	},
	{
		Name:      "indiamart",
		SearchURL: "https://dir.indiamart.com/search.mp?ss=%s",
		Selectors: Selectors{
			Listing:  ".company-name-text, .lst",
			Name:     "a, .company_name",
			Email:    `.email, [href^="mailto:"]`,
			Phone:    ".contact-no, .mobile",
			Location: ".city-name, .location",
		},
	},
	{
		Name:      "exportersindia",
		SearchURL: "https://www.exportersindia.com/search.php?term=%s",
		Selectors: Selectors{
			Listing:  ".company_profile, .search-result",
			Name:     ".company_name, h3",
			Email:    `.email, [href^="mailto:"]`,
			Phone:    ".phone, .mobile",
			Location: ".location, .city",
		},
	},
}

// GenericDirectory wraps a configured search URL with the default selectors.
func GenericDirectory(searchURL string) Directory {
	name := searchURL
	if u, err := url.Parse(searchURL); err == nil && u.Hostname() != "" {
		name = strings.TrimPrefix(u.Hostname(), "www.")
	}
	return Directory{Name: name, SearchURL: searchURL, Selectors: DefaultSelectors}
}

// HTMLCollector fetches a directory search page and extracts listings.
type HTMLCollector struct {
	directory Directory
	client    HTTPClient
}

// NewHTMLCollector builds a collector; a nil client gets a default one.
func NewHTMLCollector(directory Directory, client HTTPClient) *HTMLCollector {
	if client == nil {
		client = &http.Client{Timeout: directoryTimeout}
	}
	return &HTMLCollector{directory: directory, client: client}
}

func (c *HTMLCollector) Name() string {
	return c.directory.Name
}

func (c *HTMLCollector) Collect(ctx context.Context, term string, limit int) ([]entity.CandidateRecord, error) {
	target := c.directory.SearchURL
	if strings.Contains(target, "%s") {
		target = fmt.Sprintf(target, url.QueryEscape(term))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: build request", c.Name())
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: fetch", c.Name())
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("%s: directory returned %d", c.Name(), resp.StatusCode)
	}

	records, err := ExtractListings(resp.Body, c.directory, term)
	if err != nil {
		return nil, err
	}
	return truncate(records, limit), nil
}

// ExtractListings parses a directory page. Pages that never mention turmeric
// or spices yield no records. Email and phone fall back to a scan of the
// listing text when their selectors find nothing.
func ExtractListings(r io.Reader, directory Directory, term string) ([]entity.CandidateRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: parse html", directory.Name)
	}
	if !isRelevant(doc.Text()) {
		return nil, nil
	}

	sel := directory.Selectors
	var records []entity.CandidateRecord
	doc.Find(sel.Listing).EachWithBreak(func(_ int, listing *goquery.Selection) bool {
		if len(records) >= maxPerPage {
			return false
		}
		name := firstText(listing, sel.Name)
		if len([]rune(name)) < minTermLength {
			return true
		}
		text := listing.Text()
		record := entity.CandidateRecord{
			CompanyName: name,
			Email:       extractEmail(listing, sel.Email, text),
			Phone:       extractPhone(listing, sel.Phone, text),
			Website:     extractWebsite(listing, sel.Website, text),
			City:        firstText(listing, sel.Location),
			Source:      directory.Name,
			SearchTerm:  term,
		}
		records = append(records, record)
		return true
	})
	return records, nil
}

func isRelevant(text string) bool {
	text = strings.ToLower(text)
	for _, keyword := range relevanceKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

func firstText(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(s.Find(selector).First().Text()), " ")
}

func extractEmail(s *goquery.Selection, selector, text string) string {
	if selector != "" {
		node := s.Find(selector).First()
		if href, ok := node.Attr("href"); ok && strings.HasPrefix(strings.ToLower(href), "mailto:") {
			addr := strings.TrimSpace(href[len("mailto:"):])
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if addr != "" {
				return addr
			}
		}
		if match := emailInText.FindString(node.Text()); match != "" {
			return match
		}
	}
	return emailInText.FindString(text)
}

func extractPhone(s *goquery.Selection, selector, text string) string {
	if selector != "" {
		if match := phoneInText.FindString(s.Find(selector).First().Text()); match != "" {
			return strings.TrimSpace(match)
		}
	}
	return strings.TrimSpace(phoneInText.FindString(text))
}

func extractWebsite(s *goquery.Selection, selector, text string) string {
	if selector != "" {
		if href, ok := s.Find(selector).First().Attr("href"); ok && href != "" {
			return href
		}
	}
	return websiteInText.FindString(text)
}
