package dashapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Returned (possibly wrapped) when the API answers with an error status or a body that cannot be parsed.
var ErrUnexpectedResponse = errors.New("received unexpected response from the dashboard API")

// A response from the dashboard API.
// When the body is a `{data, message}` envelope, `Data` only contains the payload. Otherwise it contains the whole body.
type Response struct {
	StatusCode int             // The HTTP status code.
	Body       []byte          // The raw body.
	Data       json.RawMessage // The payload, unwrapped from the envelope if there is one.
	Message    string          // The message from the envelope, if any.
}

// Returns the raw body as a string, mostly for diagnostics.
func (r *Response) BodyString() string {
	return string(r.Body)
}

// Describes a response with a non-2xx status code.
type APIError struct {
	Method     string // The HTTP method of the request.
	URL        string // The URL of the request.
	StatusCode int    // The HTTP status code of the response.
	Message    string // The message from the envelope, or the raw body if there is no envelope.
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return ErrUnexpectedResponse
}

// Builds a `Response` from the raw HTTP response, or returns an `APIError` if the status code is not successful.
func parseResponse(req *http.Request, rsp *http.Response, body []byte) (*Response, error) {
	data, message := unwrapEnvelope(body)

	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		if message == "" {
			message = string(body)
		}

		return nil, &APIError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: rsp.StatusCode,
			Message:    message,
		}
	}

	if len(body) > 0 && !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrUnexpectedResponse)
	}

	return &Response{
		StatusCode: rsp.StatusCode,
		Body:       body,
		Data:       data,
		Message:    message,
	}, nil
}

// Extracts the payload and message from a `{data, message}` envelope.
// A body that is not an object containing `data` is returned as the payload itself.
func unwrapEnvelope(body []byte) (json.RawMessage, string) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil, ""
	}

	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return json.RawMessage(body), ""
	}

	message := res.Get(MessageAttribute).String()

	data := res.Get(DataAttribute)
	if !data.Exists() {
		return json.RawMessage(body), message
	}

	return json.RawMessage(data.Raw), message
}

// Returns whether a payload is an empty collection: `null`, `[]` or `{}`.
func IsEmptyPayload(data json.RawMessage) bool {
	if len(data) == 0 {
		return true
	}

	res := gjson.ParseBytes(data)
	switch {
	case res.Type == gjson.Null:
		return true
	case res.IsArray():
		return len(res.Array()) == 0
	case res.IsObject():
		empty := true
		res.ForEach(func(_, _ gjson.Result) bool {
			empty = false
			return false
		})
		return empty
	default:
		return false
	}
}
