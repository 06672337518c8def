// Package api is the typed client for the hotel REST API. Every call takes a context, runs under
// its own timeout and returns errors classified by the sentinels in errors.go; raw transport
// failures never reach callers unclassified.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/robertarktes/hotel-booking-web/internal/observability"
	"github.com/robertarktes/hotel-booking-web/internal/session"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodyBytes   = 10 << 20
)

type Client struct {
	baseURL string
	http    *http.Client
	tokens  session.TokenSource
	timeout time.Duration
	logger  observability.Logger
	tracer  trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l observability.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a client for baseURL. tokens supplies the bearer credential for authenticated
// endpoints; it is consulted on every call.
func New(baseURL string, tokens session.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		tokens:  tokens,
		timeout: DefaultTimeout,
		logger:  observability.NewNopLogger(),
		tracer:  otel.Tracer("hotelapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens == nil {
		c.tokens = session.Static("")
	}
	return c
}

// WithTokens returns a copy of c that authenticates with ts.
func (c *Client) WithTokens(ts session.TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type call struct {
	op          string
	method      string
	path        string
	query       url.Values
	auth        bool
	body        io.Reader
	contentType string
}

func (c *Client) do(ctx context.Context, cl call) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "hotelapi."+cl.op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", cl.method),
		attribute.String("http.route", cl.path),
	)

	start := time.Now()
	defer func() {
		observability.APIRequestDuration.WithLabelValues(cl.op).Observe(time.Since(start).Seconds())
	}()

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target, cl.body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: building request", cl.op)
	}
	req.Header.Set("Accept", "application/json")
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	if cl.auth {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: reading credential", cl.op)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		observability.APIRequestsTotal.WithLabelValues(cl.op, "transport").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.logger.WithField("operation", cl.op).WithError(err).Warn("hotel api unreachable")
		return nil, transportError(cl.op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		observability.APIRequestsTotal.WithLabelValues(cl.op, "transport").Inc()
		span.RecordError(err)
		return nil, transportError(cl.op, errors.Wrap(err, "reading body"))
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	outcome := "ok"
	if resp.StatusCode >= 300 {
		outcome = strconv.Itoa(resp.StatusCode/100) + "xx"
		span.SetStatus(codes.Error, resp.Status)
	}
	observability.APIRequestsTotal.WithLabelValues(cl.op, outcome).Inc()
	c.logger.WithField("operation", cl.op).WithField("status", resp.StatusCode).Debug("hotel api call")

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// getJSON performs a GET and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, auth bool, out interface{}) error {
	resp, err := c.do(ctx, call{op: op, method: http.MethodGet, path: path, query: query, auth: auth})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return statusError(op, resp)
	}
	return decode(op, resp, out)
}

func (c *Client) sendJSON(ctx context.Context, op, method, path string, auth bool, in interface{}) (*Response, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: encoding body", op)
	}
	return c.do(ctx, call{
		op:          op,
		method:      method,
		path:        path,
		auth:        auth,
		body:        bytes.NewReader(payload),
		contentType: "application/json",
	})
}

func decode(op string, resp *Response, out interface{}) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return errors.Wrapf(err, "%s: decoding response", op)
	}
	return nil
}

func pathID(id int64) string {
	return strconv.FormatInt(id, 10)
}
