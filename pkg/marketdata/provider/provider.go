// Package provider fetches OHLCV candles from upstream market data APIs.
// Providers are read-only collaborators: the backfill engine decides what to
// fetch and where it is stored.
package provider

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderBinance ProviderType = "binance"
	ProviderPolygon ProviderType = "polygon"
)

// Config holds the configuration for constructing a provider.
type Config struct {
	Type ProviderType `json:"type" yaml:"type" jsonschema:"title=Provider Type,enum=binance,enum=polygon" validate:"required,oneof=binance polygon"`
	// APIKey authenticates against providers that require one (polygon).
	APIKey string `json:"apiKey,omitempty" yaml:"apiKey,omitempty" jsonschema:"title=API Key" validate:"required_if=Type polygon" keychain:"true"`
	// BaseURL overrides the upstream endpoint. Tests point this at a mock server.
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty" jsonschema:"title=Base URL" validate:"omitempty,url"`
}

// Provider fetches candles from an upstream market data API.
type Provider interface {
	// FetchCandles returns the candles for symbol at granularity inside the
	// half-open window [Start, End). A None window requests only the latest
	// candle. Returned candles carry bucket open times in UTC, ordered
	// ascending.
	FetchCandles(ctx context.Context, symbol string, granularity types.Granularity, window optional.Option[types.TimeRange]) ([]types.Candle, error)

	// Name returns the provider identifier.
	Name() string
}

// NewProvider creates a market data provider from the given configuration.
func NewProvider(config Config, log *logger.Logger) (Provider, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid provider configuration: %w", err)
	}

	switch config.Type {
	case ProviderBinance:
		return NewBinanceClient(config.BaseURL, log), nil
	case ProviderPolygon:
		return NewPolygonClient(config.APIKey, log)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", config.Type)
	}
}
