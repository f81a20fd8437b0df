// Package catalog talks to a Scryfall-compatible card catalog over HTTP.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arcanaland/arenaswap/internal/apperr"
)

const (
	// DefaultBaseURL is the public catalog API.
	DefaultBaseURL = "https://api.scryfall.com"
	// DefaultRate is the request rate the public API asks clients to stay under.
	DefaultRate = 10.0

	cacheSize    = 512
	userAgent    = "arenaswap/1.0"
	maxImageSize = 64 << 20
)

// ImageURIs maps an image kind (png, art_crop, normal, ...) to its URL.
type ImageURIs map[string]string

// Face is one face of a multi-faced card.
type Face struct {
	Name        string    `json:"name"`
	PrintedName string    `json:"printed_name,omitempty"`
	TypeLine    string    `json:"type_line"`
	ImageURIs   ImageURIs `json:"image_uris,omitempty"`
}

// Card is the subset of a catalog card object the tools read.
type Card struct {
	OracleID        string    `json:"oracle_id"`
	Name            string    `json:"name"`
	PrintedName     string    `json:"printed_name,omitempty"`
	Set             string    `json:"set"`
	CollectorNumber string    `json:"collector_number"`
	TypeLine        string    `json:"type_line"`
	Layout          string    `json:"layout"`
	URI             string    `json:"uri"`
	ImageURIs       ImageURIs `json:"image_uris,omitempty"`
	CardFaces       []Face    `json:"card_faces,omitempty"`
}

// DisplayName is the printed name when the card has one.
func (c *Card) DisplayName() string {
	if c.PrintedName != "" {
		return c.PrintedName
	}
	return c.Name
}

// IsSaga reports whether the card is a Saga, whose art is laid out
// vertically on the right half of the card.
func (c *Card) IsSaga() bool {
	return strings.Contains(c.TypeLine, "Saga")
}

// FaceImages returns the image sets in face order: the card's own images
// when it has them, otherwise one per face.
func (c *Card) FaceImages() []ImageURIs {
	if len(c.ImageURIs) > 0 {
		return []ImageURIs{c.ImageURIs}
	}
	var out []ImageURIs
	for _, f := range c.CardFaces {
		out = append(out, f.ImageURIs)
	}
	return out
}

type searchPage struct {
	Data     []Card `json:"data"`
	HasMore  bool   `json:"has_more"`
	NextPage string `json:"next_page"`
}

type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

// Client is a rate limited catalog client with a small card cache.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	cache   *lru.Cache
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRate limits requests to perSecond. Zero or less disables pacing.
func WithRate(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the catalog at baseURL. An empty baseURL means
// DefaultBaseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperr.Validation(err, "invalid catalog url %q", baseURL)
	}
	cache, _ := lru.New(cacheSize)
	c := &Client{
		base:    base,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(DefaultRate), 1),
		cache:   cache,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Network(err, "wait for rate limit")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperr.Validation(err, "bad request url %q", rawURL)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json;q=0.9,*/*;q=0.8")

	c.logger.Debug("catalog request", zap.String("url", rawURL))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Network(err, "GET %s", rawURL)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		var ae apiError
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &ae) == nil && ae.Details != "" {
			return nil, apperr.Network(nil, "GET %s: %s: %s", rawURL, resp.Status, ae.Details)
		}
		return nil, apperr.Network(nil, "GET %s: %s", rawURL, resp.Status)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return apperr.Network(err, "decode response of %s", rawURL)
	}
	return nil
}

// SearchSet returns every card of the set code, following pagination.
func (c *Client) SearchSet(ctx context.Context, code string) ([]Card, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation(nil, "empty set code")
	}
	u := *c.base
	u.Path += "/cards/search"
	u.RawQuery = url.Values{"q": {"set:" + strings.ToLower(code)}}.Encode()

	var cards []Card
	next := u.String()
	for next != "" {
		var page searchPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		cards = append(cards, page.Data...)
		next = ""
		if page.HasMore || page.NextPage != "" {
			next = page.NextPage
		}
	}
	c.logger.Debug("set fetched", zap.String("set", code), zap.Int("cards", len(cards)))
	return cards, nil
}

// Card fetches one card by API uri. A catalog web page url
// (https://scryfall.com/card/<set>/<number>/<slug>) is accepted too.
func (c *Client) Card(ctx context.Context, ref string) (*Card, error) {
	target, err := c.cardURL(ref)
	if err != nil {
		return nil, err
	}
	if v, ok := c.cache.Get(target); ok {
		return v.(*Card), nil
	}
	var card Card
	if err := c.getJSON(ctx, target, &card); err != nil {
		return nil, err
	}
	c.cache.Add(target, &card)
	return &card, nil
}

func (c *Client) cardURL(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || u.Host == "" {
		return "", apperr.Validation(err, "invalid card url %q", ref)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if !strings.HasPrefix(u.Host, "api.") && len(parts) >= 3 && parts[0] == "card" {
		api := *c.base
		api.Path += fmt.Sprintf("/cards/%s/%s", parts[1], parts[2])
		return api.String(), nil
	}
	return u.String(), nil
}

// Download fetches the body of an image url.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, apperr.Validation(nil, "empty image url")
	}
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, apperr.Network(err, "download %s", rawURL)
	}
	return data, nil
}
