package dashapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Performs HTTP requests. `*http.Client` satisfies this interface.
type HttpRequestDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// A function that can modify a request before it is sent, e.g. to add authentication headers.
type RequestEditorFn func(ctx context.Context, req *http.Request) error

// A client for the dashboard REST API.
type Client struct {
	Server         string            // The base URL of the API, always ending with a slash.
	Client         HttpRequestDoer   // Performs the HTTP requests.
	RequestEditors []RequestEditorFn // Applied to every request.
	AuthEditors    []RequestEditorFn // Applied to every request that does not skip authentication.
}

// Allows setting up the client when it is created.
type ClientOption func(*Client) error

// Creates a new client for the API located at `server`.
func NewClient(server string, opts ...ClientOption) (*Client, error) {
	client := Client{
		Server: server,
	}

	for _, o := range opts {
		if err := o(&client); err != nil {
			return nil, err
		}
	}

	if !strings.HasSuffix(client.Server, "/") {
		client.Server += "/"
	}

	if client.Client == nil {
		client.Client = &http.Client{}
	}

	return &client, nil
}

// Sets the HTTP client used to perform requests.
func WithHTTPClient(doer HttpRequestDoer) ClientOption {
	return func(c *Client) error {
		c.Client = doer
		return nil
	}
}

// Adds a function modifying every request sent by the client.
func WithRequestEditorFn(fn RequestEditorFn) ClientOption {
	return func(c *Client) error {
		c.RequestEditors = append(c.RequestEditors, fn)
		return nil
	}
}

// Adds a function attaching credentials to requests. It is not applied to requests made with `SkipAuth`.
func WithAuthEditorFn(fn RequestEditorFn) ClientOption {
	return func(c *Client) error {
		c.AuthEditors = append(c.AuthEditors, fn)
		return nil
	}
}

// Options for `Client.Get`.
type GetOptions struct {
	Query    map[string]any // The query parameters. Slices are sent as repeated keys.
	SkipAuth bool           // Whether the request should be sent without credentials.
}

// Options for `Client.Post`.
type PostOptions struct {
	SkipAuth bool // Whether the request should be sent without credentials.
}

// Sends a GET request to `path`, relative to the server URL.
func (c *Client) Get(ctx context.Context, path string, opts GetOptions) (*Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, opts.Query, nil)
	if err != nil {
		return nil, err
	}

	return c.do(ctx, req, opts.SkipAuth)
}

// Sends a POST request to `path` with `body` encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body any, opts PostOptions) (*Response, error) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(ctx, req, opts.SkipAuth)
}

// Returns the URL for `path` with the encoded query parameters.
func (c *Client) URL(path string, query map[string]any) (*url.URL, error) {
	serverURL, err := url.Parse(c.Server)
	if err != nil {
		return nil, err
	}

	operationURL, err := serverURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, err
	}

	if len(query) > 0 {
		values, err := EncodeQuery(query)
		if err != nil {
			return nil, err
		}

		existing := operationURL.Query()
		for k, vs := range values {
			for _, v := range vs {
				existing.Add(k, v)
			}
		}
		operationURL.RawQuery = existing.Encode()
	}

	return operationURL, nil
}

func (c *Client) newRequest(ctx context.Context, method string, path string, query map[string]any, body io.Reader) (*http.Request, error) {
	u, err := c.URL(path, query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// Applies the editors to the request, sends it and parses the response.
func (c *Client) do(ctx context.Context, req *http.Request, skipAuth bool) (*Response, error) {
	if req.Header.Get(RequestIdHeader) == "" {
		req.Header.Set(RequestIdHeader, uuid.NewString())
	}

	for _, fn := range c.RequestEditors {
		if err := fn(ctx, req); err != nil {
			return nil, err
		}
	}

	if !skipAuth {
		for _, fn := range c.AuthEditors {
			if err := fn(ctx, req); err != nil {
				return nil, err
			}
		}
	}

	rsp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return parseResponse(req, rsp, body)
}
