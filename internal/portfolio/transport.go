// Package portfolio is the Portfolio Gateway of spec.md §4.6: a thin
// client over the third-party NFT/token indexer. Grounded on the
// gallery-so simplehash/opensea providers (in the retrieved pack) for the
// API-key-injecting http.RoundTripper and net/url query-builder shape, and
// on the Contract Gateway's retry/backoff convention for the transient-vs-
// terminal error split.
package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/medashooter/gateway/internal/events"
	"github.com/medashooter/gateway/internal/hotcache"
)

const (
	cacheTTL      = 5 * time.Minute
	cacheSize     = 4096
	apiKeyHeader  = "X-API-KEY"
	maxRetries    = 2
	initialDelay  = 50 * time.Millisecond
	maxDelay      = 500 * time.Millisecond
)

// apiKeyTransport injects the indexer API key on every outbound request,
// the same shape as gallery-so's simplehash authMiddleware.
type apiKeyTransport struct {
	next   http.RoundTripper
	apiKey string
}

func (t *apiKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set(apiKeyHeader, t.apiKey)
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(r)
}

// Provider is the Portfolio Gateway. Construct with NewProvider.
type Provider struct {
	httpClient *http.Client
	baseURL    string
	log        *zap.SugaredLogger

	erc20Cache *hotcache.Cache[ERC20Portfolio]
	nftCache   *hotcache.Cache[NFTCollectionsResponse]
	emitter    *events.Emitter

	// purgeRelated, if set, is invoked by Refresh to evict the Contract
	// Gateway's own cached entries for the same wallet (spec.md §4.6).
	// Wiring is optional; when unset, Refresh purges only this Provider's
	// own caches.
	purgeRelated func(wallet string)
}

// NewProvider builds a Provider against baseURL (the indexer's API root),
// authenticating every request with apiKey. emitter receives a
// TypeIndexerCall event after every outbound call, for the api_usage
// audit log; pass nil to disable auditing.
func NewProvider(baseURL, apiKey string, httpClient *http.Client, emitter *events.Emitter, log *zap.SugaredLogger) *Provider {
	c := *httpClient
	c.Transport = &apiKeyTransport{next: httpClient.Transport, apiKey: apiKey}
	return &Provider{
		httpClient: &c,
		baseURL:    baseURL,
		log:        log,
		erc20Cache: hotcache.New[ERC20Portfolio](cacheSize, cacheTTL),
		nftCache:   hotcache.New[NFTCollectionsResponse](cacheSize, cacheTTL),
		emitter:    emitter,
	}
}

// SetPurgeRelated wires a callback Refresh invokes to evict related
// Contract Gateway cache entries for the refreshed wallet.
func (p *Provider) SetPurgeRelated(fn func(wallet string)) {
	p.purgeRelated = fn
}

func cacheKey(wallet, chain string) string {
	return wallet + ":" + chain
}

// Ping issues one lightweight HEAD request against the indexer's base URL
// to confirm it is reachable, for the /health endpoint. It goes through the
// same client as every other call, so it carries the API key header; any
// HTTP status counts as reachable.
// It bypasses doGet's retry/backoff and audit emission entirely — a health
// probe should fail fast and not itself show up as indexer traffic.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// doGet issues one authenticated GET, retrying transport failures and
// non-2xx upstream responses up to maxRetries times. RateLimited and
// Unauthorized responses are never retried, per spec.md §4.6.
func (p *Provider) doGet(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	started := time.Now()
	body, err := p.doGetOnce(ctx, endpoint, query)
	p.emitIndexerCall(endpoint, time.Since(started), err)
	return body, err
}

func (p *Provider) doGetOnce(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	u := p.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	var body []byte
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initialDelay),
		backoff.WithMaxInterval(maxDelay),
	), maxRetries)

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = &TransportError{Err: err}
			return lastErr
		}
		defer resp.Body.Close()

		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			lastErr = &TransportError{Err: readErr}
			return lastErr
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body = raw
			return nil
		case resp.StatusCode == http.StatusUnauthorized:
			lastErr = &UnauthorizedError{}
			return backoff.Permanent(lastErr)
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = &RateLimitedError{RetryAfter: resp.Header.Get("Retry-After")}
			return backoff.Permanent(lastErr)
		default:
			lastErr = &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
			return lastErr
		}
	}

	if err := backoff.Retry(op, b); err != nil {
		return nil, lastErr
	}
	return body, nil
}

func (p *Provider) emitIndexerCall(endpoint string, dur time.Duration, err error) {
	if p.emitter == nil {
		return
	}
	data := map[string]any{
		"endpoint":    endpoint,
		"duration_ms": dur.Milliseconds(),
		"success":     err == nil,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	p.emitter.Emit(events.Event{Type: events.TypeIndexerCall, Data: data})
}

func (p *Provider) decodeJSON(raw []byte, into any) error {
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("decoding indexer response: %w", err)
	}
	return nil
}
