// Package gateway issues REST calls for every resource kind and normalizes
// the responses.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"delegation_sync/internal/auth"
	"delegation_sync/internal/models"
)

const DefaultTimeout = 10 * time.Second

// Filters are list query parameters, e.g. {"delegation_id": "..."}.
type Filters map[string]string

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	AuthScheme string // header prefix, "Token" by default
	Transport  http.RoundTripper
}

// Client is the Remote Data Gateway.
type Client struct {
	http    *resty.Client
	session *auth.Session
	scheme  string
	now     func() time.Time
	log     *logrus.Entry
}

func New(opts Options, session *auth.Session) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.AuthScheme == "" {
		opts.AuthScheme = "Token"
	}
	if session == nil {
		session = auth.NewSession(nil, nil)
	}
	c := &Client{
		session: session,
		scheme:  opts.AuthScheme,
		now:     time.Now,
		log:     logrus.WithField("component", "gateway"),
	}
	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	if opts.Transport != nil {
		rc.SetTransport(opts.Transport)
	}
	rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if tok := c.session.Token(); tok != "" {
			req.SetHeader("Authorization", c.scheme+" "+tok)
		}
		return nil
	})
	rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if resp.StatusCode() == http.StatusUnauthorized {
			c.session.Expire("unauthorized response from " + resp.Request.URL)
		}
		return nil
	})
	c.http = rc
	return c
}

func collection(kind models.Kind) string { return "/" + kind.Path() + "/" }

func item(kind models.Kind, id string) string { return "/" + kind.Path() + "/" + id + "/" }

// List fetches every record of kind matching filters.
func (c *Client) List(ctx context.Context, kind models.Kind, filters Filters) ([]models.Record, error) {
	body, err := c.do(ctx, http.MethodGet, collection(kind), filters, nil)
	if err != nil {
		return nil, err
	}
	return Normalize(body), nil
}

func (c *Client) Get(ctx context.Context, kind models.Kind, id string) (models.Record, error) {
	body, err := c.do(ctx, http.MethodGet, item(kind, id), nil, nil)
	if err != nil {
		return nil, err
	}
	return models.Record(body), nil
}

func (c *Client) Create(ctx context.Context, kind models.Kind, payload any) (models.Record, error) {
	body, err := c.do(ctx, http.MethodPost, collection(kind), nil, payload)
	if err != nil {
		return nil, err
	}
	return models.Record(body), nil
}

// Update sends a partial update.
func (c *Client) Update(ctx context.Context, kind models.Kind, id string, partial any) (models.Record, error) {
	body, err := c.do(ctx, http.MethodPatch, item(kind, id), nil, partial)
	if err != nil {
		return nil, err
	}
	return models.Record(body), nil
}

func (c *Client) Delete(ctx context.Context, kind models.Kind, id string) error {
	_, err := c.do(ctx, http.MethodDelete, item(kind, id), nil, nil)
	return err
}

// Stats fetches the dashboard aggregates.
func (c *Client) Stats(ctx context.Context) (models.Record, error) {
	body, err := c.do(ctx, http.MethodGet, "/dashboard/stats/", nil, nil)
	if err != nil {
		return nil, err
	}
	return models.Record(body), nil
}

// Login exchanges credentials for a token and starts the session.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/auth/login/", nil, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	token := gjson.GetBytes(body, "token").String()
	if token == "" {
		return "", &Error{Kind: KindServer, Message: "login response carried no token"}
	}
	c.session.Begin(token)
	c.session.SetRole(auth.Role(gjson.GetBytes(body, "user.role").String()))
	return token, nil
}

func (c *Client) do(ctx context.Context, method, path string, query Filters, payload any) ([]byte, error) {
	if auth.Expired(c.session.Token(), c.now()) {
		c.session.Expire("token expired")
		return nil, ErrSessionExpired
	}

	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if payload != nil {
		req.SetBody(payload)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{"method": method, "path": path}).Warn("Request failed")
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, transportError(err)
	}

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode(),
		"duration": time.Since(start),
	}).Debug("Request completed")

	switch status := resp.StatusCode(); {
	case status == http.StatusUnauthorized:
		return nil, ErrSessionExpired
	case status >= 200 && status < 300:
		return resp.Body(), nil
	default:
		return nil, statusError(status, resp.Body())
	}
}

// Normalize turns a list response into records. It accepts a bare array or
// an object with a "results" array; anything else yields an empty slice.
func Normalize(body []byte) []models.Record {
	out := []models.Record{}
	if !gjson.ValidBytes(body) {
		return out
	}
	res := gjson.ParseBytes(body)
	if !res.IsArray() {
		res = res.Get("results")
		if !res.IsArray() {
			return out
		}
	}
	for _, v := range res.Array() {
		out = append(out, models.Record(v.Raw))
	}
	return out
}
