package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lcabon/resq/core/logger"
	"github.com/lcabon/resq/core/model"
	corerouting "github.com/lcabon/resq/core/routing"
)

// Config defines the routing service endpoints.
type Config struct {
	// BaseURL is the primary OSRM-compatible endpoint.
	BaseURL string `json:"base_url"`
	// FallbackURL, when set, is tried after a transport failure of the
	// primary endpoint.
	FallbackURL string `json:"fallback_url"`
	// CacheTTLSeconds bounds how long a routed leg may be served from the
	// in-process cache.
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
	// TimeoutSeconds bounds each HTTP request.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = 300
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("routing base_url is required")
	}
	return nil
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

type cacheEntry struct {
	plan    corerouting.TravelPlan
	expires time.Time
}

// HTTPPlanner routes legs over an OSRM-compatible HTTP service, with an
// in-process response cache and an optional fallback endpoint.
type HTTPPlanner struct {
	cfg    Config
	client *http.Client
	log    logger.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewHTTPPlanner creates a planner for the configured endpoints.
func NewHTTPPlanner(cfg Config, log logger.Logger) (*HTTPPlanner, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPPlanner{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:    log,
		cache:  make(map[string]cacheEntry),
	}, nil
}

// Plan implements corerouting.Planner. The endpoint that ultimately
// served the leg is logged so a fallback success stays auditable.
func (p *HTTPPlanner) Plan(ctx context.Context, origin, destination model.Location, mode string) (corerouting.TravelPlan, error) {
	key := fmt.Sprintf("%s|%.6f,%.6f|%.6f,%.6f", mode, origin.Lon, origin.Lat, destination.Lon, destination.Lat)
	if plan, ok := p.cached(key); ok {
		plan.CacheHit = true
		return plan, nil
	}

	plan, err := p.request(ctx, p.cfg.BaseURL, origin, destination, mode)
	if err != nil && p.cfg.FallbackURL != "" {
		var terr *corerouting.TransportError
		if errors.As(err, &terr) {
			p.log.Warnf("primary routing endpoint failed, trying fallback: %v", err)
			plan, err = p.request(ctx, p.cfg.FallbackURL, origin, destination, mode)
			if err == nil {
				p.log.Infof("route served by fallback endpoint %s", p.cfg.FallbackURL)
			}
		}
	}
	if err != nil {
		return corerouting.TravelPlan{}, err
	}
	p.store(key, plan)
	return plan, nil
}

func (p *HTTPPlanner) request(ctx context.Context, base string, origin, destination model.Location, mode string) (corerouting.TravelPlan, error) {
	url := fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?overview=false",
		base, mode, origin.Lon, origin.Lat, destination.Lon, destination.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return corerouting.TravelPlan{}, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return corerouting.TravelPlan{}, &corerouting.TransportError{Op: "plan", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return corerouting.TravelPlan{}, &corerouting.TransportError{
			Op:  "plan",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return corerouting.TravelPlan{}, fmt.Errorf("decode route response: %w", err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return corerouting.TravelPlan{}, fmt.Errorf("no route found (code %s)", body.Code)
	}
	return corerouting.TravelPlan{
		DistanceMeters:  body.Routes[0].Distance,
		DurationSeconds: body.Routes[0].Duration,
	}, nil
}

func (p *HTTPPlanner) cached(key string) (corerouting.TravelPlan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.cache[key]
	if !ok || time.Now().After(e.expires) {
		return corerouting.TravelPlan{}, false
	}
	return e.plan, true
}

func (p *HTTPPlanner) store(key string, plan corerouting.TravelPlan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[key] = cacheEntry{
		plan:    plan,
		expires: time.Now().Add(time.Duration(p.cfg.CacheTTLSeconds) * time.Second),
	}
}
