package statsnet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ResolverConfig configures the DNS servers used to find the collector
type ResolverConfig struct {
	CacheTTL     time.Duration
	Timeout      time.Duration
	UDPServers   []string
	TLSServers   []string
	DoHEndpoints []string

	// SkipSystem leaves the system resolver out of the race
	SkipSystem bool
}

type dnsCacheEntry struct {
	ips []string
	ttl time.Time
}

// Resolver looks up A records by racing every configured resolver and
// taking the first answer. Answers are cached per host.
type Resolver struct {
	cfg    ResolverConfig
	logger *zap.Logger
	group  singleflight.Group

	mutex     sync.Mutex
	cache     map[string]dnsCacheEntry
	resolved  map[string][]string
	listeners []func(host string, ips []string)
	now       func() time.Time
}

// NewResolver creates a resolver; zero durations get defaults
func NewResolver(cfg ResolverConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.CacheTTL = pickDuration(cfg.CacheTTL, 10*time.Minute)
	cfg.Timeout = pickDuration(cfg.Timeout, 800*time.Millisecond)
	return &Resolver{
		cfg:      cfg,
		logger:   logger,
		cache:    make(map[string]dnsCacheEntry),
		resolved: make(map[string][]string),
		now:      time.Now,
	}
}

func pickDuration(v time.Duration, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func (r *Resolver) onChange(fn func(host string, ips []string)) {
	r.mutex.Lock()
	r.listeners = append(r.listeners, fn)
	r.mutex.Unlock()
}

// LookupHost returns the IPv4 addresses of host
func (r *Resolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{host}, nil
	}

	r.mutex.Lock()
	ce, ok := r.cache[host]
	r.mutex.Unlock()
	if ok && r.now().Before(ce.ttl) {
		return ce.ips, nil
	}

	v, err, _ := r.group.Do(host, func() (any, error) {
		return r.refresh(ctx, host)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Forget drops the cached answer for host so the next lookup hits the network
func (r *Resolver) Forget(host string) {
	r.mutex.Lock()
	delete(r.cache, host)
	r.mutex.Unlock()
}

func (r *Resolver) refresh(ctx context.Context, host string) ([]string, error) {
	ips, err := r.resolveFastest(ctx, host)
	if err != nil || len(ips) == 0 {
		r.logger.Warn("DNS lookup failed", zap.String("host", host), zap.Error(err))
		if err == nil {
			err = fmt.Errorf("statsnet: no addresses for %s", host)
		}
		return nil, err
	}
	slices.Sort(ips)

	r.mutex.Lock()
	r.cache[host] = dnsCacheEntry{ips: ips, ttl: r.now().Add(r.cfg.CacheTTL)}
	prev, seen := r.resolved[host]
	changed := seen && !slices.Equal(prev, ips)
	r.resolved[host] = ips
	listeners := slices.Clone(r.listeners)
	r.mutex.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(host, ips)
		}
	}
	return ips, nil
}

// DialContext returns a dial function for http.Transport that connects to
// the addresses found by the resolver, trying each in turn.
func (r *Resolver) DialContext(d *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := r.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}

		var errs []error
		for _, ip := range ips {
			conn, err := d.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				return conn, nil
			}
			errs = append(errs, err)
		}
		// every address failed, the next dial should resolve again
		r.Forget(host)
		return nil, errors.Join(errs...)
	}
}

// resolveFastest queries all configured resolvers concurrently and returns first success
func (r *Resolver) resolveFastest(ctx context.Context, host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	type result struct {
		ips []string
		err error
	}

	attempts := len(r.cfg.UDPServers) + len(r.cfg.TLSServers) + len(r.cfg.DoHEndpoints)
	if !r.cfg.SkipSystem {
		attempts++
	}
	if attempts == 0 {
		return nil, errors.New("statsnet: no resolvers configured")
	}
	ch := make(chan result, attempts)
	var wg sync.WaitGroup

	spawn := func(fn func() ([]string, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ips, err := fn()
			ch <- result{ips, err}
		}()
	}

	for _, srv := range r.cfg.UDPServers {
		spawn(func() ([]string, error) { return resolveExchange(ctx, host, srv, "udp", r.cfg.Timeout) })
	}
	for _, srv := range r.cfg.TLSServers {
		spawn(func() ([]string, error) { return resolveExchange(ctx, host, srv, "tcp-tls", r.cfg.Timeout) })
	}
	for _, ep := range r.cfg.DoHEndpoints {
		spawn(func() ([]string, error) { return resolveDoH(ctx, host, ep) })
	}
	if !r.cfg.SkipSystem {
		spawn(func() ([]string, error) {
			netIPs, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
			ips := make([]string, 0, len(netIPs))
			for _, ip := range netIPs {
				ips = append(ips, ip.String())
			}
			return ips, err
		})
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	var firstErr error
	for i := 0; i < attempts; i++ {
		select {
		case res := <-ch:
			if res.err == nil && len(res.ips) > 0 {
				return res.ips, nil
			}
			if firstErr == nil {
				firstErr = res.err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if firstErr == nil {
		firstErr = errors.New("statsnet: no dns result")
	}
	return nil, firstErr
}

func resolveExchange(ctx context.Context, host, server, network string, timeout time.Duration) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	c := &dns.Client{Net: network, Timeout: timeout}
	resp, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, fmt.Errorf("%s dns %s: %w", network, server, err)
	}
	return answerIPs(resp)
}

func resolveDoH(ctx context.Context, host, endpoint string) ([]string, error) {
	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(host), dns.TypeA)
	payload, err := q.Pack()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/dns-message")
	req.Header.Set("Accept", "application/dns-message")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("doh status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var msg dns.Msg
	if err := msg.Unpack(body); err != nil {
		return nil, err
	}
	return answerIPs(&msg)
}

func answerIPs(resp *dns.Msg) ([]string, error) {
	if resp == nil {
		return nil, errors.New("empty dns response")
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns rcode: %s", dns.RcodeToString[resp.Rcode])
	}
	ips := make([]string, 0, len(resp.Answer))
	for _, ans := range resp.Answer {
		if a, ok := ans.(*dns.A); ok {
			ips = append(ips, a.A.String())
		}
	}
	return ips, nil
}
