package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/DaoCloud/listcache/common/constants"
	"github.com/DaoCloud/listcache/filter"
	"github.com/DaoCloud/listcache/order"
	"github.com/DaoCloud/listcache/page"
)

type Options struct {
	// BaseURL is the server root, e.g. http://127.0.0.1:3033.
	BaseURL string
	Token   string
	Timeout time.Duration
	Debug   bool
}

// StatusError is a non 2xx answer of the server.
type StatusError struct {
	Code   int
	Status v1.Status
}

func (e *StatusError) Error() string {
	if e.Status.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Code, e.Status.Message)
	}
	return fmt.Sprintf("server returned %d", e.Code)
}

// NotFound reports whether err is a 404 of the server.
func NotFound(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.Code == http.StatusNotFound
}

// Client talks to the collection API. Requests are never retried; list
// views surface failures and wait for the next user interaction.
type Client[E any] struct {
	http       *resty.Client
	collection string
}

func NewHTTPClient(opts Options) *resty.Client {
	c := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Accept", "application/json").
		SetDebug(opts.Debug)
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	if opts.Token != "" {
		c.SetHeader(constants.AuthHeader, constants.BearerPrefix+opts.Token)
	}
	return c
}

func New[E any](collection string, opts Options) *Client[E] {
	return NewWithHTTPClient[E](collection, NewHTTPClient(opts))
}

func NewWithHTTPClient[E any](collection string, c *resty.Client) *Client[E] {
	return &Client[E]{
		http:       c,
		collection: collection,
	}
}

func (c *Client[E]) path() string {
	return constants.APIPrefix + "/" + c.collection
}

func check(resp *resty.Response, status *v1.Status) error {
	if !resp.IsError() {
		return nil
	}
	return &StatusError{Code: resp.StatusCode(), Status: *status}
}

// Fetch requests one window. It has the dispatch.FetchFunc signature.
func (c *Client[E]) Fetch(ctx context.Context, q page.Query) (page.Result[E], error) {
	res := page.Result[E]{}
	encoded, err := page.EncodeQuery(q)
	if err != nil {
		return res, err
	}
	status := v1.Status{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam(constants.QueryParam, encoded).
		SetResult(&res).
		SetError(&status).
		Get(c.path())
	if err != nil {
		return res, fmt.Errorf("list %s: %w", c.collection, err)
	}
	if err := check(resp, &status); err != nil {
		return page.Result[E]{}, err
	}
	return res, nil
}

// DownloadAll returns every row matching filters, in sort order.
func (c *Client[E]) DownloadAll(ctx context.Context, filters []filter.Descriptor, sort order.List) (page.Result[E], error) {
	return c.Fetch(ctx, page.Query{Limit: page.Unbounded, Filters: filters, Sort: sort})
}

func (c *Client[E]) Get(ctx context.Context, id string) (E, error) {
	var e E
	status := v1.Status{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&e).
		SetError(&status).
		Get(c.path() + "/{id}")
	if err != nil {
		return e, fmt.Errorf("get %s/%s: %w", c.collection, id, err)
	}
	return e, check(resp, &status)
}

// Put creates or replaces obj. Only servers started with mutations accept it.
func (c *Client[E]) Put(ctx context.Context, obj E) (E, error) {
	var e E
	status := v1.Status{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(obj).
		SetResult(&e).
		SetError(&status).
		Put(c.path())
	if err != nil {
		return e, fmt.Errorf("put %s: %w", c.collection, err)
	}
	return e, check(resp, &status)
}

func (c *Client[E]) Delete(ctx context.Context, id string) error {
	status := v1.Status{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetError(&status).
		Delete(c.path() + "/{id}")
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.collection, id, err)
	}
	return check(resp, &status)
}

// Collections lists the collection names served.
func Collections(ctx context.Context, c *resty.Client) ([]string, error) {
	res := struct {
		Collections []string `json:"collections"`
	}{}
	status := v1.Status{}
	resp, err := c.R().
		SetContext(ctx).
		SetResult(&res).
		SetError(&status).
		Get(constants.APIPrefix)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return res.Collections, check(resp, &status)
}
