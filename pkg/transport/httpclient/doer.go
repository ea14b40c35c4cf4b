package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// Request is a transport-agnostic description of the call a Provider
// issues, independent of whether it ends up going out over net/http or
// fasthttp.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is what comes back, again independent of the underlying
// transport.
type Response struct {
	StatusCode int
	Body       []byte
}

// Doer issues one HTTP request and returns its response or an error.
// net/http and fasthttp both satisfy it through the adapters below,
// mirroring the source library's pluggable WinHTTP/libcurl backend.
type Doer interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// netHTTPDoer issues requests through the standard library's http.Client.
type netHTTPDoer struct {
	client *http.Client
}

// NewNetHTTPDoer builds a Doer backed by http.Client. A nil client uses
// http.DefaultClient.
func NewNetHTTPDoer(client *http.Client) Doer {
	if client == nil {
		client = http.DefaultClient
	}
	return &netHTTPDoer{client: client}
}

func (d *netHTTPDoer) Do(ctx context.Context, req Request) (Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("httpclient: build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("httpclient: read response: %w", err)
	}
	return Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// fastHTTPDoer issues requests through valyala/fasthttp, for console-class
// callers that care about per-call allocation.
type fastHTTPDoer struct {
	client *fasthttp.Client
}

// NewFastHTTPDoer builds a Doer backed by a fasthttp.Client. A nil client
// builds one with fasthttp's own defaults.
func NewFastHTTPDoer(client *fasthttp.Client) Doer {
	if client == nil {
		client = &fasthttp.Client{}
	}
	return &fastHTTPDoer{client: client}
}

func (d *fastHTTPDoer) Do(ctx context.Context, req Request) (Response, error) {
	fReq := fasthttp.AcquireRequest()
	fResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(fReq)
	defer fasthttp.ReleaseResponse(fResp)

	fReq.SetRequestURI(req.URL)
	fReq.Header.SetMethod(req.Method)
	for k, v := range req.Headers {
		fReq.Header.Set(k, v)
	}
	if len(req.Body) > 0 {
		fReq.SetBody(req.Body)
	}

	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	var err error
	if timeout > 0 {
		err = d.client.DoTimeout(fReq, fResp, timeout)
	} else {
		err = d.client.Do(fReq, fResp)
	}
	if err != nil {
		return Response{}, err
	}

	body := make([]byte, len(fResp.Body()))
	copy(body, fResp.Body())
	return Response{StatusCode: fResp.StatusCode(), Body: body}, nil
}
