package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/klauern/wikisync/internal/logging"
	"github.com/klauern/wikisync/internal/model"
)

// DefaultTimeout bounds a single RPC call.
const DefaultTimeout = 30 * time.Second

// maxResponseSize bounds the size of a response body.
const maxResponseSize = 128 << 20

// ClientOptions configures a Client.
type ClientOptions struct {
	// Timeout bounds each call. Zero selects DefaultTimeout.
	Timeout time.Duration
	// RetryMax is the number of retries after a failed attempt. Calls are
	// never retried unless this is set.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// HTTPClient overrides the underlying HTTP client.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the RPC surface of one remote wiki.
type Client struct {
	wiki     string
	endpoint string
	http     *retryablehttp.Client
	logger   *slog.Logger
	nextID   atomic.Int64
}

// NewClient returns a client for the wiki at baseURL. wiki names the remote
// in errors and logs.
func NewClient(wiki, baseURL string, opts ClientOptions) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse url of wiki %q: %w", wiki, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("url of wiki %q must be absolute: %q", wiki, baseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 500 * time.Millisecond
	}
	if opts.RetryWaitMax < opts.RetryWaitMin {
		opts.RetryWaitMax = 4 * opts.RetryWaitMin
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = opts.Timeout

	c := &Client{
		wiki:     wiki,
		endpoint: base.JoinPath(Path).String(),
		logger:   logger.With(logging.Wiki(wiki)),
		http: &retryablehttp.Client{
			HTTPClient:   httpClient,
			RetryMax:     max(opts.RetryMax, 0),
			RetryWaitMin: opts.RetryWaitMin,
			RetryWaitMax: opts.RetryWaitMax,
			Backoff:      retryablehttp.DefaultBackoff,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		},
	}
	c.http.Logger = c.logger
	return c, nil
}

// Wiki returns the name the client was created for.
func (c *Client) Wiki() string { return c.wiki }

// Identity calls wikisync.identity.
func (c *Client) Identity(ctx context.Context) (IdentityResult, error) {
	var res IdentityResult
	err := c.call(ctx, MethodIdentity, struct{}{}, &res)
	return res, err
}

// ListPages calls wikisync.listPages.
func (c *Client) ListPages(ctx context.Context, opts ListOptions) ([]PageEntry, error) {
	var res []PageEntry
	err := c.call(ctx, MethodListPages, opts, &res)
	return res, err
}

// GetDiff calls wikisync.getDiff.
func (c *Client) GetDiff(ctx context.Context, params DiffParams) (DiffResult, error) {
	var res DiffResult
	err := c.call(ctx, MethodGetDiff, params, &res)
	return res, err
}

// MergeDiff calls wikisync.mergeDiff.
func (c *Client) MergeDiff(ctx context.Context, params MergeParams) (MergeResult, error) {
	var res MergeResult
	err := c.call(ctx, MethodMergeDiff, params, &res)
	return res, err
}

// call performs one JSON-RPC request. Transport failures and gateway errors
// are returned as *model.RemoteUnavailableError; everything the remote
// answered is a *Fault, *MethodNotFoundError or *ProtocolError.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}
	id := c.nextID.Add(1)
	body, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: rawParams, ID: id})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		c.logger.Debug("rpc transport failure", logging.Operation(method), logging.Err(err))
		return &model.RemoteUnavailableError{Wiki: c.wiki, Operation: method, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &model.RemoteUnavailableError{Wiki: c.wiki, Operation: method, Err: fmt.Errorf("read response: %w", err)}
	}
	c.logger.Debug("rpc call",
		logging.Operation(method),
		slog.Int("status", resp.StatusCode),
		logging.Duration(time.Since(start)))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &model.RemoteUnavailableError{Wiki: c.wiki, Operation: method, Err: fmt.Errorf("http status %s", resp.Status)}
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return &MethodNotFoundError{Method: method}
	default:
		return &ProtocolError{Method: method, Err: fmt.Errorf("http status %s", resp.Status)}
	}

	var envelope response
	if err := json.Unmarshal(data, &envelope); err != nil {
		return &ProtocolError{Method: method, Err: err}
	}
	if envelope.JSONRPC != "2.0" || envelope.ID != id {
		return &ProtocolError{Method: method, Err: errors.New("response does not match request")}
	}
	if e := envelope.Error; e != nil {
		switch {
		case e.Code == codeMethodNotFound:
			return &MethodNotFoundError{Method: method}
		case e.Data != nil && e.Data.Fault != "":
			return &Fault{Code: e.Data.Fault, Message: e.Message}
		default:
			return &Fault{Code: FaultInternal, Message: fmt.Sprintf("%s (code %d)", e.Message, e.Code)}
		}
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return &ProtocolError{Method: method, Err: err}
	}
	return nil
}

// Support is the outcome of a capability handshake.
type Support struct {
	Supported bool
	// Reason explains why the remote is not supported.
	Reason   string
	Identity IdentityResult
}

// Handshake asks the remote who it is and whether it speaks a compatible
// protocol. An unsupported remote is reported in Support, not as an error;
// the error is non-nil only when the remote could not be reached.
func (c *Client) Handshake(ctx context.Context) (Support, error) {
	ident, err := c.Identity(ctx)
	var (
		unavailable *model.RemoteUnavailableError
		notFound    *MethodNotFoundError
		protoErr    *ProtocolError
		fault       *Fault
	)
	switch {
	case err == nil:
	case errors.As(err, &unavailable):
		return Support{}, err
	case errors.As(err, &notFound):
		return Support{Reason: "the remote wiki does not offer wiki synchronization"}, nil
	case errors.As(err, &protoErr):
		return Support{Reason: fmt.Sprintf("the remote wiki answered with an unrecognized response: %v", protoErr.Err)}, nil
	case errors.As(err, &fault):
		return Support{Reason: fmt.Sprintf("the remote wiki refused the identity request: %s", fault.Message)}, nil
	default:
		return Support{}, err
	}

	switch {
	case ident.IWID == "":
		return Support{Reason: "the remote wiki did not report an IWID", Identity: ident}, nil
	case ident.ProtocolVersion < ProtocolVersion:
		return Support{
			Reason:   fmt.Sprintf("the remote wiki speaks protocol version %d, version %d is required", ident.ProtocolVersion, ProtocolVersion),
			Identity: ident,
		}, nil
	}
	return Support{Supported: true, Identity: ident}, nil
}
