// Package labels resolves address roles from an external label provider and
// caches them. Provider labels are normalized into the closed RoleCategory
// set at this boundary; lookup failures degrade to "no role", they never
// block classification.
package labels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/whalewatch/whaletx/internal/cache"
	"github.com/whalewatch/whaletx/internal/classify"
	"github.com/whalewatch/whaletx/internal/domain/model"
)

// Provider is the external label collaborator. A nil role with nil error
// means the provider does not know the address.
type Provider interface {
	LookupRole(ctx context.Context, chain model.Chain, address string) (*model.AddressRole, error)
}

const defaultTimeout = 10 * time.Second

// HTTPProvider talks to a label service over HTTP.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	source     string
	logger     *slog.Logger
}

func NewHTTPProvider(source, baseURL, apiKey string, logger *slog.Logger) *HTTPProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProvider{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		source:     source,
		logger:     logger.With("component", "labels", "source", source),
	}
}

type wireRole struct {
	Label      string            `json:"label"`
	Category   string            `json:"role_category"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata"`
}

func (p *HTTPProvider) LookupRole(ctx context.Context, chain model.Chain, address string) (*model.AddressRole, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("chain", chain.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/labels?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("label lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("label lookup: http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read label response: %w", err)
	}
	var wire wireRole
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal label response: %w", err)
	}
	if wire.Label == "" && wire.Category == "" {
		return nil, nil
	}

	return normalizeWire(address, p.source, wire), nil
}

// normalizeWire maps the provider shape onto AddressRole. Providers that
// already speak the category enum are trusted; otherwise the label text is
// run through the keyword normalizer.
func normalizeWire(address, source string, wire wireRole) *model.AddressRole {
	category := model.RoleCategory(strings.ToUpper(wire.Category))
	switch category {
	case model.RolePersonal, model.RoleExchange, model.RoleDex,
		model.RoleBridge, model.RoleMarketMaker, model.RoleUnknown:
		// Closed-set value straight from the provider.
	default:
		category = classify.NormalizeLabel(wire.Label)
	}
	return &model.AddressRole{
		Address:    strings.ToLower(address),
		Label:      wire.Label,
		Category:   category,
		Confidence: model.ClampConfidence(wire.Confidence),
		Source:     source,
		Metadata:   wire.Metadata,
	}
}

// Resolver wraps a Provider with a TTL cache. Negative answers are cached
// too, so unknown addresses do not hammer the provider.
type Resolver struct {
	provider Provider
	cache    *cache.TTLCache[string, *model.AddressRole]
	logger   *slog.Logger
}

func NewResolver(provider Provider, capacity int, ttl time.Duration, logger *slog.Logger) *Resolver {
	if capacity <= 0 {
		capacity = 8192
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		provider: provider,
		cache:    cache.NewTTL[string, *model.AddressRole](capacity, ttl),
		logger:   logger.With("component", "label_resolver"),
	}
}

// Resolve returns the role for an address, or nil when unknown or the
// provider failed. Concurrent misses for one key may race to fill the
// cache; last write wins, which is acceptable for TTL-bounded data.
func (r *Resolver) Resolve(ctx context.Context, chain model.Chain, address string) *model.AddressRole {
	key := chain.String() + ":" + strings.ToLower(address)
	if role, ok := r.cache.Get(key); ok {
		return role
	}

	role, err := r.provider.LookupRole(ctx, chain, address)
	if err != nil {
		r.logger.Debug("label lookup failed", "address", address, "err", err)
		return nil
	}
	r.cache.Set(key, role)
	return role
}
