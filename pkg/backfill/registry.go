package backfill

import (
	"fmt"

	"github.com/rxtech-lab/argo-backfill/pkg/cache"
	"github.com/rxtech-lab/argo-backfill/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-backfill/pkg/utils"
)

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
}

// CacheInfo contains metadata about a cache backend.
type CacheInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Embedded    bool   `json:"embedded"`
}

// providerRegistry holds metadata about all supported providers.
var providerRegistry = map[provider.ProviderType]ProviderInfo{
	provider.ProviderBinance: {
		Name:         string(provider.ProviderBinance),
		DisplayName:  "Binance",
		Description:  "Cryptocurrency exchange with public OHLCV kline data for crypto trading pairs",
		RequiresAuth: false,
	},
	provider.ProviderPolygon: {
		Name:         string(provider.ProviderPolygon),
		DisplayName:  "Polygon.io",
		Description:  "US stock market data provider with historical OHLCV aggregates",
		RequiresAuth: true,
	},
}

// cacheRegistry holds metadata about all supported cache backends.
var cacheRegistry = map[cache.CacheType]CacheInfo{
	cache.CacheTypeDuckDB: {
		Name:        string(cache.CacheTypeDuckDB),
		DisplayName: "DuckDB",
		Description: "Embedded analytical database stored in a single file; supports CSV and Parquet export",
		Embedded:    true,
	},
	cache.CacheTypeMemory: {
		Name:        string(cache.CacheTypeMemory),
		DisplayName: "In-Memory",
		Description: "Process-local store for tests and short-lived tooling; nothing survives a restart",
		Embedded:    true,
	},
	cache.CacheTypePostgres: {
		Name:        string(cache.CacheTypePostgres),
		DisplayName: "PostgreSQL",
		Description: "Server-backed store for shared deployments, connected via DSN",
		Embedded:    false,
	},
	cache.CacheTypeClickHouse: {
		Name:        string(cache.CacheTypeClickHouse),
		DisplayName: "ClickHouse",
		Description: "Column-oriented store for large candle volumes, connected via DSN",
		Embedded:    false,
	},
}

// GetSupportedProviders returns a list of all supported provider names.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[provider.ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, fmt.Errorf("unsupported provider: %s", providerName)
	}

	return info, nil
}

// GetSupportedCaches returns a list of all supported cache backend names.
func GetSupportedCaches() []string {
	caches := make([]string, 0, len(cacheRegistry))
	for cacheType := range cacheRegistry {
		caches = append(caches, string(cacheType))
	}

	return caches
}

// GetCacheInfo returns metadata for a specific cache backend.
func GetCacheInfo(cacheName string) (CacheInfo, error) {
	info, exists := cacheRegistry[cache.CacheType(cacheName)]
	if !exists {
		return CacheInfo{}, fmt.Errorf("unsupported cache backend: %s", cacheName)
	}

	return info, nil
}

// GetClientConfigSchema returns the JSON schema for embedding the full client
// configuration in tool output.
func GetClientConfigSchema() (string, error) {
	//nolint:exhaustruct // Empty config for schema generation
	return utils.ToJSONSchema(&ClientConfig{})
}

// GetProviderKeychainFields returns the config field names that hold secrets
// for a provider.
func GetProviderKeychainFields(providerName string) ([]string, error) {
	if _, exists := providerRegistry[provider.ProviderType(providerName)]; !exists {
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}

	//nolint:exhaustruct // Empty config for field introspection
	return utils.GetKeychainFields(provider.Config{}), nil
}

// GetCacheKeychainFields returns the config field names that hold secrets
// for a cache backend.
func GetCacheKeychainFields(cacheName string) ([]string, error) {
	if _, exists := cacheRegistry[cache.CacheType(cacheName)]; !exists {
		return nil, fmt.Errorf("unsupported cache backend: %s", cacheName)
	}

	//nolint:exhaustruct // Empty config for field introspection
	return utils.GetKeychainFields(cache.Config{}), nil
}
