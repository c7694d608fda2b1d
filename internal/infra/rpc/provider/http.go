package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/textchain/internal/infra/rpc/circuitbreaker"
	"github.com/vietddude/textchain/internal/metrics"
)

// Options tune an HTTPProvider.
type Options struct {
	Chain        string                // metrics label
	Timeout      time.Duration         // per HTTP request (10s)
	RateLimitRPS float64               // 0 disables client-side limiting
	Breaker      circuitbreaker.Config // zero value takes breaker defaults
}

// HTTPProvider implements RPCProvider for JSON-RPC over HTTP.
type HTTPProvider struct {
	name       string
	chain      string
	endpoint   string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	limiter    *rate.Limiter

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int
}

// NewHTTPProvider creates a new HTTP-based RPC provider.
func NewHTTPProvider(name, endpoint string, opts Options) *HTTPProvider {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	p := &HTTPProvider{
		name:     name,
		chain:    opts.Chain,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		health: HealthStatus{
			Available:     true,
			Circuit:       circuitbreaker.StateClosed.String(),
			LastSuccessAt: time.Now(),
		},
	}

	onChange := opts.Breaker.OnStateChange
	opts.Breaker.OnStateChange = func(from, to circuitbreaker.State) {
		metrics.CircuitState.WithLabelValues(p.chain, p.name).Set(float64(to))
		if onChange != nil {
			onChange(from, to)
		}
	}
	p.breaker = circuitbreaker.New(opts.Breaker)

	if opts.RateLimitRPS > 0 {
		burst := int(opts.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	return p
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call makes a single JSON-RPC call.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	start := time.Now()
	body, err := p.post(ctx, method, rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return nil, err
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.recordFailure("decode", err)
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != nil {
		p.recordFailure("rpc", resp.Error)
		return nil, resp.Error
	}

	p.recordSuccess(method, time.Since(start))
	return resp.Result, nil
}

// BatchCall makes multiple RPC calls in one request.
func (p *HTTPProvider) BatchCall(ctx context.Context, requests []BatchRequest) ([]BatchResponse, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	batch := make([]rpcRequest, len(requests))
	for i, req := range requests {
		params := req.Params
		if params == nil {
			params = []any{}
		}
		batch[i] = rpcRequest{JSONRPC: "2.0", Method: req.Method, Params: params, ID: i + 1}
	}

	start := time.Now()
	body, err := p.post(ctx, "batch", batch)
	if err != nil {
		return nil, err
	}

	var raw []rpcResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		p.recordFailure("decode", err)
		return nil, fmt.Errorf("parse batch response: %w", err)
	}

	// servers may answer a batch out of order
	responses := make([]BatchResponse, len(requests))
	seen := make([]bool, len(requests))
	for _, r := range raw {
		i := r.ID - 1
		if i < 0 || i >= len(requests) {
			continue
		}
		seen[i] = true
		if r.Error != nil {
			responses[i] = BatchResponse{Error: r.Error}
			continue
		}
		responses[i] = BatchResponse{Result: r.Result}
	}
	for i, ok := range seen {
		if !ok {
			responses[i] = BatchResponse{Error: fmt.Errorf("missing response for %s", requests[i].Method)}
		}
	}

	p.recordSuccess("batch", time.Since(start))
	return responses, nil
}

// post sends one HTTP request and returns the body of a 200 response.
func (p *HTTPProvider) post(ctx context.Context, method string, payload any) ([]byte, error) {
	if err := p.breaker.Allow(); err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(p.chain, p.name, "circuit_open").Inc()
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	metrics.RPCCallsTotal.WithLabelValues(p.chain, p.name, method).Inc()

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// caller gave up; the endpoint is not at fault
			return nil, fmt.Errorf("rpc call: %w", ctx.Err())
		}
		p.recordFailure("network", err)
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		err := fmt.Errorf("rate limited (429), retry after: %s", resp.Header.Get("Retry-After"))
		p.recordFailure("throttled", err)
		return nil, err
	case http.StatusForbidden:
		err := errors.New("ip blocked (403)")
		p.recordFailure("blocked", err)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.recordFailure("network", err)
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200))
		p.recordFailure("http", err)
		return nil, err
	}
	return body, nil
}

// Name returns the provider's name.
func (p *HTTPProvider) Name() string {
	return p.name
}

// Health returns the provider's health status.
func (p *HTTPProvider) Health() HealthStatus {
	p.mu.RLock()
	h := p.health
	p.mu.RUnlock()

	h.Circuit = p.breaker.State().String()
	h.Available = h.Available && p.breaker.State() != circuitbreaker.StateOpen
	return h
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *HTTPProvider) recordSuccess(method string, latency time.Duration) {
	p.breaker.Success()
	metrics.RPCLatency.WithLabelValues(p.chain, p.name, method).Observe(latency.Seconds())

	p.mu.Lock()
	defer p.mu.Unlock()

	p.successCount++
	p.requestCount++
	p.totalLatency += latency
	p.health.LastSuccessAt = time.Now()
	p.health.Available = true
	p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	p.health.Latency = p.totalLatency / time.Duration(p.successCount)
}

func (p *HTTPProvider) recordFailure(kind string, err error) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		// the endpoint answered; only the request was bad
		p.breaker.Success()
	} else {
		p.breaker.Failure()
	}
	metrics.RPCErrorsTotal.WithLabelValues(p.chain, p.name, kind).Inc()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.failureCount++
	p.requestCount++
	p.health.LastFailureAt = time.Now()
	p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	if p.health.ErrorRate > 0.5 {
		p.health.Available = false
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
