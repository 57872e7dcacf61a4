// Package x402 provides an HTTP client that pays for resources guarded by the x402
// payment protocol.
//
// A Client sends a request unchanged. When the server answers 402 Payment Required with
// a payment challenge, the client checks the price against its spend cap, signs an
// EIP-3009 authorization for the first offered option and resends the request with the
// payment attached. If the server reports that settlement failed, the client waits
// briefly and tries once more with a freshly signed authorization.
package x402

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/primsh/x402fetch/channel"
	"github.com/primsh/x402fetch/clients"
	"github.com/primsh/x402fetch/logger"
	"github.com/primsh/x402fetch/metrics"
	"github.com/primsh/x402fetch/signer"
	"github.com/primsh/x402fetch/types"
	"github.com/primsh/x402fetch/utils"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	Version = "1.0.0"

	// DefaultTimeout bounds each send when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	// SettlementRetryDelay is the wait before re-signing after a settlement failure.
	SettlementRetryDelay = 2 * time.Second

	// bodyLimit caps how much of a response body is drained before closing it or
	// inspected for the settlement-failure marker.
	bodyLimit = 64 << 10

	maxRedirects = 10
)

// ErrClientClosed is returned by payments attempted after Close.
var ErrClientClosed = errors.New("x402: client closed")

var paymentHeaders = []string{types.HeaderPaymentSignature, types.HeaderLegacyPayment}

// Client is a payment-aware HTTP client. It is safe for concurrent use.
type Client struct {
	config   types.FetchConfig
	network  types.NetworkConfig
	spendCap SpendCap
	source   *signer.Source

	logger     logger.Logger
	metrics    metrics.Recorder
	registerer prometheus.Registerer
	timeout    time.Duration
	httpClient *http.Client

	identity signer.Identity
	keystore signer.Keystore
	scheme   channel.Scheme
	caller   clients.ContractCaller

	sleep func(ctx context.Context, d time.Duration) error

	chOnce sync.Once
	ch     *channel.Channel
	chErr  error
	closed atomic.Bool
}

// New validates cfg and resolves the network and signing source. Keystore identities are
// not loaded until the first payment.
func New(cfg types.FetchConfig, opts ...Option) (*Client, error) {
	if err := utils.ValidateFetchConfig(&cfg); err != nil {
		return nil, err
	}

	c := &Client{
		config:  cfg,
		timeout: cfg.Timeout,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logger.NoopLogger{}
		if cfg.LogLevel != "" {
			c.logger = logger.NewZapLogger(cfg.LogLevel)
		}
	}

	if c.metrics == nil {
		c.metrics = metrics.NoopRecorder{}
		if cfg.EnableMetrics {
			rec, err := metrics.NewPrometheusRecorder(c.registerer)
			if err != nil {
				return nil, err
			}
			c.metrics = rec
		}
	}

	network, err := clients.ResolveNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	c.network = network

	c.spendCap = NewSpendCap(cfg.MaxPayment)

	source, err := signer.Resolve(signer.Sources{
		Identity:   c.identity,
		PrivateKey: cfg.PrivateKey,
		Keystore:   cfg.Keystore,
		Store:      c.keystore,
	})
	if err != nil {
		return nil, err
	}
	c.source = source

	switch {
	case c.httpClient == nil:
		timeout := c.timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout, CheckRedirect: stripPaymentOnRedirect}
	case c.httpClient.CheckRedirect == nil:
		hc := *c.httpClient
		hc.CheckRedirect = stripPaymentOnRedirect
		c.httpClient = &hc
	}

	c.logger.Debug("x402 client ready", map[string]any{
		"version":       Version,
		"network":       network.Network.String(),
		"signer_source": string(source.Kind()),
		"max_payment":   c.spendCap.String(),
	})

	return c, nil
}

// Network returns the network payments are signed for.
func (c *Client) Network() types.NetworkConfig {
	return c.network
}

// Fetch builds a request and runs it through Do.
func (c *Client) Fetch(
	ctx context.Context,
	method, url string,
	body []byte,
	header http.Header,
) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		req.Header[k] = append([]string(nil), vs...)
	}

	return c.Do(req)
}

// Do sends req, paying for it if the server asks. It makes at most three sends: the
// original request, the paid retry and, after a settlement failure, one re-signed retry.
//
// A 402 response is returned as a value, not an error, whenever the flow ends on one.
// Errors are returned for spend-cap violations, signing failures and transport failures.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()
	labels := map[string]string{"network": c.network.Network.String()}
	defer func() {
		c.metrics.ObserveLatency(metrics.OperationFetch, time.Since(start), labels)
	}()

	fields := map[string]any{
		"call_id": uuid.NewString(),
		"method":  req.Method,
		"url":     req.URL.String(),
	}

	body, err := readBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(req, body, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	challenge := utils.ChallengeHeader(resp.Header)
	if challenge == "" {
		c.logger.Debug("402 without payment challenge", fields)
		return resp, nil
	}

	required, err := utils.DecodePaymentRequired(challenge)
	if err != nil {
		c.logger.Warn("unreadable payment challenge", logger.Merge(fields, map[string]any{"error": err}))
		return resp, nil
	}

	requirement, err := utils.SelectRequirement(required)
	if err != nil {
		return resp, nil
	}
	c.metrics.IncCounter(metrics.EventPaymentChallenge, labels)

	fields = logger.Merge(fields, map[string]any{
		"scheme":  requirement.Scheme,
		"network": requirement.Network,
		"pay_to":  requirement.PayTo,
	})

	if err := c.spendCap.Check(requirement); err != nil {
		discard(resp)
		if IsSpendCapExceeded(err) {
			c.metrics.IncCounter(metrics.EventSpendCapExceeded, labels)
		}
		c.logger.Warn("payment refused", logger.Merge(fields, map[string]any{"error": err}))
		return nil, err
	}

	ch, err := c.paymentChannel(ctx)
	if err != nil {
		discard(resp)
		return nil, err
	}

	discard(resp)
	resp, err = c.payAndSend(ctx, ch, req, body, required.X402Version, requirement, fields, labels)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired || !c.config.SettlementRecovery() {
		return resp, nil
	}

	failed, err := settlementFailed(resp)
	if err != nil {
		return nil, err
	}
	if !failed {
		return resp, nil
	}

	c.metrics.IncCounter(metrics.EventSettlementRetry, labels)
	c.logger.Warn("settlement failed, retrying with a new authorization", logger.Merge(fields, map[string]any{
		"delay": SettlementRetryDelay.String(),
	}))

	discard(resp)
	if err := c.sleep(ctx, SettlementRetryDelay); err != nil {
		return nil, err
	}

	return c.payAndSend(ctx, ch, req, body, required.X402Version, requirement, fields, labels)
}

// HTTPClient returns an *http.Client whose transport runs every request through Do.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Transport: roundTripperFunc(c.Do)}
}

// Close releases the payment channel. Payments attempted afterwards fail with ErrClientClosed.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.chOnce.Do(func() {
		c.chErr = ErrClientClosed
	})
	if c.ch != nil {
		c.ch.Close()
	}
}

// paymentChannel resolves the signing identity and builds the channel exactly once.
// Concurrent callers wait for the same result, including a failed one.
func (c *Client) paymentChannel(ctx context.Context) (*channel.Channel, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	c.chOnce.Do(func() {
		// one caller's cancellation must not poison the shared result
		buildCtx := context.WithoutCancel(ctx)

		id, err := c.source.Identity(buildCtx)
		if err != nil {
			c.chErr = err
			return
		}

		c.ch, c.chErr = channel.Build(buildCtx, id, c.network, c.scheme, c.caller)
		if c.chErr == nil {
			c.logger.Info("payment channel ready", map[string]any{
				"payer":         c.ch.Address(),
				"network":       c.network.Network.String(),
				"signer_source": string(c.source.Kind()),
			})
		}
	})
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.ch, c.chErr
}

func (c *Client) payAndSend(
	ctx context.Context,
	ch *channel.Channel,
	req *http.Request,
	body []byte,
	x402Version int,
	requirement types.PaymentRequirements,
	fields map[string]any,
	labels map[string]string,
) (*http.Response, error) {
	payload, err := ch.CreateAuthorization(ctx, x402Version, requirement)
	if err != nil {
		return nil, err
	}

	headers, err := ch.EncodeHeaders(payload)
	if err != nil {
		return nil, err
	}

	amount, _ := utils.ParseAtomic(requirement.AtomicAmount())

	c.metrics.IncCounter(metrics.EventPaymentSigned, labels)
	c.logger.Info("payment authorization signed", logger.Merge(fields, map[string]any{
		"payer":  payload.Payload.Authorization.From,
		"amount": utils.FormatDecimal(amount),
		"nonce":  payload.Payload.Authorization.Nonce,
	}))

	return c.send(req, body, headers)
}

// send issues one attempt: a clone of req with its own header map, the buffered body and
// the payment headers set over whatever the caller supplied.
func (c *Client) send(req *http.Request, body []byte, payment map[string]string) (*http.Response, error) {
	attempt := req.Clone(req.Context())
	if attempt.Header == nil {
		attempt.Header = make(http.Header)
	}
	for k, v := range payment {
		attempt.Header.Set(k, v)
	}

	if body != nil {
		attempt.Body = io.NopCloser(bytes.NewReader(body))
		attempt.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		attempt.ContentLength = int64(len(body))
	}

	return c.httpClient.Do(attempt)
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

// settlementFailed reads the body of resp, leaving an unread copy in its place.
// Bodies larger than bodyLimit never carry the marker and are handed back as a replay
// of the bytes read followed by the rest of the stream.
func settlementFailed(resp *http.Response) (bool, error) {
	head, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit+1))
	if err != nil {
		resp.Body.Close()
		return false, err
	}

	if len(head) > bodyLimit {
		resp.Body = replayBody{
			Reader: io.MultiReader(bytes.NewReader(head), resp.Body),
			Closer: resp.Body,
		}
		return false, nil
	}

	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(head))
	return utils.IsSettlementFailure(head), nil
}

type replayBody struct {
	io.Reader
	io.Closer
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, bodyLimit))
	resp.Body.Close()
}

// stripPaymentOnRedirect keeps signed authorizations on the host that asked for them.
func stripPaymentOnRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}
	if req.URL.Host != via[0].URL.Host {
		for _, h := range paymentHeaders {
			req.Header.Del(h)
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
