package x402

import (
	"net/http"
	"time"

	"github.com/primsh/x402fetch/channel"
	"github.com/primsh/x402fetch/clients"
	"github.com/primsh/x402fetch/logger"
	"github.com/primsh/x402fetch/metrics"
	"github.com/primsh/x402fetch/signer"
	"github.com/prometheus/client_golang/prometheus"
)

type Option func(*Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

// WithRegisterer selects where Prometheus collectors are registered when metrics are enabled.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

// WithTimeout bounds each individual send. It is ignored when WithHTTPClient is used.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) {
		c.timeout = t
	}
}

// WithHTTPClient replaces the client used for every send. A client without a redirect
// policy gets one that drops payment headers on cross-host redirects.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithIdentity supplies the signing identity directly. It takes precedence over every
// configured key source.
func WithIdentity(id signer.Identity) Option {
	return func(c *Client) {
		c.identity = id
	}
}

// WithKeystore replaces the file keystore used for keystore references.
func WithKeystore(ks signer.Keystore) Option {
	return func(c *Client) {
		c.keystore = ks
	}
}

// WithScheme replaces the default exact EVM scheme.
func WithScheme(s channel.Scheme) Option {
	return func(c *Client) {
		c.scheme = s
	}
}

// WithContractCaller replaces the RPC-backed chain reader.
func WithContractCaller(cc clients.ContractCaller) Option {
	return func(c *Client) {
		c.caller = cc
	}
}
