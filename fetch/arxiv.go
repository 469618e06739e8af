// Package fetch downloads paper metadata and PDFs from the Arxiv Atom API.
// It is a collaborator of the retrieval core: fetched PDFs go through
// extract before ingestion.
package fetch

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/docsift/docsift"
)

const defaultBaseURL = "https://export.arxiv.org/api/query"

// maxPDFSize caps a single paper download (50 MB).
const maxPDFSize = 50 << 20

// maxFeedSize caps an Atom feed response (10 MB).
const maxFeedSize = 10 << 20

// Paper holds Arxiv paper metadata from one Atom feed entry.
type Paper struct {
	ID         string // short id, e.g. "2401.12345v2"
	Title      string
	Authors    []string
	Abstract   string
	URL        string // abs page
	PDFURL     string
	Published  time.Time
	Categories []string
}

// Client queries the Arxiv Atom API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (useful for tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates an Arxiv client with a 30-second request timeout.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search queries Arxiv by relevance and returns up to maxResults papers.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Paper, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", "relevance")
	return c.query(ctx, params)
}

// Lookup fetches metadata for a single paper by its Arxiv id. The id may be
// a bare id ("2401.12345") or a full abs URL; anything before the last slash
// is stripped.
func (c *Client) Lookup(ctx context.Context, id string) (Paper, error) {
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		id = id[i+1:]
	}
	params := url.Values{}
	params.Set("id_list", id)
	papers, err := c.query(ctx, params)
	if err != nil {
		return Paper{}, err
	}
	if len(papers) == 0 {
		return Paper{}, fmt.Errorf("arxiv: paper %s not found", id)
	}
	return papers[0], nil
}

// DownloadPDF fetches the paper's PDF bytes.
func (c *Client) DownloadPDF(ctx context.Context, p Paper) ([]byte, error) {
	if p.PDFURL == "" {
		return nil, fmt.Errorf("arxiv: paper %s has no pdf link", p.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.PDFURL, nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv: create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv: download pdf: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &docsift.ErrHTTP{Status: resp.StatusCode, Body: p.PDFURL}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFSize+1))
	if err != nil {
		return nil, fmt.Errorf("arxiv: read pdf: %w", err)
	}
	if len(data) > maxPDFSize {
		return nil, fmt.Errorf("arxiv: pdf for %s exceeds %d byte limit", p.ID, maxPDFSize)
	}
	return data, nil
}

func (c *Client) query(ctx context.Context, params url.Values) ([]Paper, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv: create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv: query failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize+1))
	if err != nil {
		return nil, fmt.Errorf("arxiv: read response: %w", err)
	}
	if len(body) > maxFeedSize {
		return nil, fmt.Errorf("arxiv: feed response exceeds %d byte limit", maxFeedSize)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &docsift.ErrHTTP{Status: resp.StatusCode, Body: string(body)}
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("arxiv: parse feed: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		papers = append(papers, e.toPaper())
	}
	return papers, nil
}

// Atom feed shapes for the Arxiv API response.

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Authors    []atomAuthor   `xml:"author"`
	Links      []atomLink     `xml:"link"`
	Categories []atomCategory `xml:"category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

func (e atomEntry) toPaper() Paper {
	p := Paper{
		Title:    collapseSpace(e.Title),
		Abstract: strings.TrimSpace(e.Summary),
		URL:      e.ID,
	}
	if i := strings.LastIndexByte(e.ID, '/'); i >= 0 {
		p.ID = e.ID[i+1:]
	} else {
		p.ID = e.ID
	}
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		p.Published = t
	}
	for _, a := range e.Authors {
		p.Authors = append(p.Authors, a.Name)
	}
	for _, l := range e.Links {
		if l.Title == "pdf" || strings.Contains(l.Href, "/pdf/") {
			p.PDFURL = l.Href
			break
		}
	}
	for _, c := range e.Categories {
		p.Categories = append(p.Categories, c.Term)
	}
	return p
}

// collapseSpace joins the multi-line titles Arxiv wraps in its feeds.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
