package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tavolo/ordering/internal/log"
	"github.com/tavolo/ordering/internal/otel"
)

// TokenSource yields the bearer token attached to every outgoing request.
// An empty token means the request goes out unauthenticated.
type TokenSource interface {
	Token() (tokenType string, token string)
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		tokens:  tokens,
	}
}

func (t *Client) BaseURL() string {
	return t.baseURL
}

func (t *Client) Get(c context.Context, path string, query url.Values, out any) error {
	return t.do(c, http.MethodGet, path, query, nil, out)
}

func (t *Client) Post(c context.Context, path string, body any, out any) error {
	return t.do(c, http.MethodPost, path, nil, body, out)
}

func (t *Client) Put(c context.Context, path string, body any, out any) error {
	return t.do(c, http.MethodPut, path, nil, body, out)
}

func (t *Client) Delete(c context.Context, path string) error {
	return t.do(c, http.MethodDelete, path, nil, nil, nil)
}

// GetText issues a read expecting a text/plain response and returns the raw body.
func (t *Client) GetText(c context.Context, path string) (string, error) {
	c, span := otel.Tracer.Start(c, "Client GetText")
	defer span.End()

	req, err := t.newRequest(c, http.MethodGet, path, nil, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed requesting %s with error=%w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed reading response body with error=%w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &APIError{StatusCode: resp.StatusCode, Body: raw}
	}
	return string(raw), nil
}

func (t *Client) do(
	c context.Context,
	method string,
	path string,
	query url.Values,
	body any,
	out any,
) error {
	c, span := otel.Tracer.Start(c, "Client "+method+" "+path)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Client do").
		Str(log.KeyRequestMethod, method).
		Logger()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			err = fmt.Errorf("failed marshaling request body with error=%w", err)
			logger.Error().Err(err).Msg(err.Error())
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := t.newRequest(c, method, path, query, reader)
	if err != nil {
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger = logger.With().Str(log.KeyRequestURL, req.URL.String()).Logger()

	resp, err := t.http.Do(req)
	if err != nil {
		err = fmt.Errorf("failed requesting %s with error=%w", path, err)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed reading response body with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger = logger.With().Int(log.KeyStatusCode, resp.StatusCode).Logger()

	if resp.StatusCode >= http.StatusBadRequest {
		err := &APIError{StatusCode: resp.StatusCode, Body: raw}
		logger.Error().Err(err).Str(log.KeyResponseBody, string(raw)).Msg(err.Error())
		return err
	}
	logger.Trace().Msg("request succeeded")

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		err = fmt.Errorf("failed unmarshaling response body with error=%w", err)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	return nil
}

func (t *Client) newRequest(
	c context.Context,
	method string,
	path string,
	query url.Values,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(
		c,
		method,
		t.baseURL+"/"+strings.TrimLeft(path, "/"),
		body,
	)
	if err != nil {
		return nil, fmt.Errorf("failed creating request to %s with error=%w", path, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if method == http.MethodGet {
		// Intermediaries between the client and the ordering API cache
		// aggressively; reads carry anti-cache headers and a synthetic
		// timestamp parameter so every read reaches the origin.
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
		if query == nil {
			query = url.Values{}
		}
		query.Set("_ts", strconv.FormatInt(time.Now().UnixMilli(), 10))
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	if tokenType, token := t.tokens.Token(); token != "" {
		if tokenType == "" {
			tokenType = "Bearer"
		}
		req.Header.Set("Authorization", tokenType+" "+token)
	}
	return req, nil
}
