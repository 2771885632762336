package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/time/rate"
)

// DefaultOpenLibraryBase is the production Open Library endpoint. Tests point
// the client at an httptest server instead.
const DefaultOpenLibraryBase = "https://openlibrary.org"

var isbn13Pattern = regexp.MustCompile(`^\d{13}$`)

// NormalizeISBN strips hyphens and whitespace and verifies the result is
// exactly 13 digits. "978-0-13-468599-1" and "9780134685991" normalize to the
// same value.
func NormalizeISBN(isbn string) (string, bool) {
	clean := strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, isbn)
	if !isbn13Pattern.MatchString(clean) {
		return "", false
	}
	return clean, true
}

// EnrichmentStatus distinguishes the three lookup outcomes instead of a bare
// nil: the ISBN resolved, the ISBN has no record, or the lookup itself failed.
type EnrichmentStatus string

const (
	Enriched     EnrichmentStatus = "enriched"
	NoMatch      EnrichmentStatus = "not_found"
	LookupFailed EnrichmentStatus = "lookup_failed"
)

// Enrichment is the result of an ISBN lookup. Meta is non-nil only when
// Status is Enriched; Err is set only when Status is LookupFailed.
type Enrichment struct {
	Status EnrichmentStatus
	Meta   *BookMetadata
	Err    error
}

// BookMetadata is the normalized subset used to fill unset book fields. Raw
// carries the full decoded record for the book's metadata blob.
type BookMetadata struct {
	Title     string
	Author    string
	CoverURL  string
	PageCount int
	Raw       map[string]any
}

// volumeData matches the relevant parts of Open Library's
// /api/books?jscmd=data records.
type volumeData struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Cover struct {
		Large string `json:"large"`
	} `json:"cover"`
	NumberOfPages int `json:"number_of_pages"`
}

// MetadataClient looks up book metadata on Open Library. Requests are rate
// limited and retried with backoff on 429/5xx so a slow upstream degrades to
// a failed enrichment rather than piling up.
type MetadataClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	maxRetries int
}

func NewMetadataClient(baseURL, userAgent string, rps, maxRetries int) *MetadataClient {
	if baseURL == "" {
		baseURL = DefaultOpenLibraryBase
	}
	if rps <= 0 {
		rps = 1
	}
	return &MetadataClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
		maxRetries: maxRetries,
	}
}

// LookupISBN fetches metadata for a normalized 13-digit ISBN. It never
// returns an error to the caller; the outcome is carried in the Enrichment so
// callers can log failures without surfacing them.
func (c *MetadataClient) LookupISBN(ctx context.Context, isbn string) Enrichment {
	key := "ISBN:" + isbn
	url := fmt.Sprintf("%s/api/books?bibkeys=%s&format=json&jscmd=data", c.baseURL, key)

	var records map[string]json.RawMessage
	if err := c.get(ctx, url, &records); err != nil {
		return Enrichment{Status: LookupFailed, Err: err}
	}
	raw, ok := records[key]
	if !ok {
		return Enrichment{Status: NoMatch}
	}

	var vol volumeData
	if err := json.Unmarshal(raw, &vol); err != nil {
		return Enrichment{Status: LookupFailed, Err: err}
	}
	var blob map[string]any
	if err := json.Unmarshal(raw, &blob); err != nil {
		return Enrichment{Status: LookupFailed, Err: err}
	}

	meta := &BookMetadata{
		Title:     vol.Title,
		CoverURL:  vol.Cover.Large,
		PageCount: vol.NumberOfPages,
		Raw:       blob,
	}
	if len(vol.Authors) > 0 {
		meta.Author = vol.Authors[0].Name
	}
	return Enrichment{Status: Enriched, Meta: meta}
}

func (c *MetadataClient) get(ctx context.Context, url string, target any) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("openlibrary returned %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return lastErr
		}
		err = json.NewDecoder(resp.Body).Decode(target)
		resp.Body.Close()
		return err
	}
	return fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}
