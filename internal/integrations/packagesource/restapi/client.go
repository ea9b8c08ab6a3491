package restapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/DelayWatch/internal/integrations/packagesource"
	"github.com/BearBump/DelayWatch/internal/models"
)

const defaultPackagesPath = "/api/packages"

type Client struct {
	baseURL string
	path    string
	token   string
	loc     *time.Location
	httpc   *http.Client
}

type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>".
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLocation sets the zone used for timestamps without an offset.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpc.Timeout = d
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpc = h
		}
	}
}

func New(baseURL, path string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if path == "" {
		path = defaultPackagesPath
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    path,
		loc:     time.UTC,
		httpc: &http.Client{
			Timeout:   10 * time.Second,
			Transport: &loggingTransport{next: http.DefaultTransport},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ packagesource.Source = (*Client)(nil)

func (c *Client) ListPackages(ctx context.Context) ([]models.Package, error) {
	u, err := url.Parse(c.baseURL + c.path)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("packages backend http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	dtos, err := decodePackages(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	pkgs := make([]models.Package, 0, len(dtos))
	for _, d := range dtos {
		pkgs = append(pkgs, d.toModel(c.loc))
	}
	return packagesource.Normalize(pkgs), nil
}
