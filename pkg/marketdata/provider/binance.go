package provider

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
)

// binancePageLimit is the maximum number of klines a single request returns.
// Larger windows are walked page by page.
const binancePageLimit = 500

// BinanceKlinesService abstracts the Binance klines query builder for testing.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Limit(limit int) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceAPIClient abstracts the Binance client for testing.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
}

// realBinanceAPIClient wraps the actual binance.Client.
type realBinanceAPIClient struct {
	client *binance.Client
}

func (r *realBinanceAPIClient) NewKlinesService() BinanceKlinesService {
	return &realBinanceKlinesService{service: r.client.NewKlinesService()}
}

type realBinanceKlinesService struct {
	service *binance.KlinesService
}

func (s *realBinanceKlinesService) Symbol(symbol string) BinanceKlinesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realBinanceKlinesService) Interval(interval string) BinanceKlinesService {
	s.service = s.service.Interval(interval)

	return s
}

func (s *realBinanceKlinesService) StartTime(startTime int64) BinanceKlinesService {
	s.service = s.service.StartTime(startTime)

	return s
}

func (s *realBinanceKlinesService) EndTime(endTime int64) BinanceKlinesService {
	s.service = s.service.EndTime(endTime)

	return s
}

func (s *realBinanceKlinesService) Limit(limit int) BinanceKlinesService {
	s.service = s.service.Limit(limit)

	return s
}

func (s *realBinanceKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

// BinanceClient fetches candles from the Binance spot klines API. Public
// kline data requires no API key.
type BinanceClient struct {
	apiClient BinanceAPIClient
	log       *logger.Logger
}

var _ Provider = (*BinanceClient)(nil)

// NewBinanceClient creates a Binance provider. A non-empty baseURL overrides
// the API endpoint; tests use it to target a mock server.
func NewBinanceClient(baseURL string, log *logger.Logger) *BinanceClient {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}

	return &BinanceClient{
		apiClient: &realBinanceAPIClient{client: client},
		log:       log,
	}
}

// NewBinanceClientWithAPI creates a Binance provider with a custom API
// client. This is used for testing with mock clients.
func NewBinanceClientWithAPI(apiClient BinanceAPIClient, log *logger.Logger) *BinanceClient {
	return &BinanceClient{
		apiClient: apiClient,
		log:       log,
	}
}

// Name implements Provider.
func (c *BinanceClient) Name() string {
	return string(ProviderBinance)
}

// FetchCandles implements Provider.
func (c *BinanceClient) FetchCandles(ctx context.Context, symbol string, granularity types.Granularity, window optional.Option[types.TimeRange]) ([]types.Candle, error) {
	interval, err := binanceInterval(granularity)
	if err != nil {
		return nil, err
	}

	if window.IsNone() {
		return c.fetchLatest(ctx, symbol, interval)
	}

	fetchRange := window.Unwrap()
	if !fetchRange.IsValid() {
		return nil, errors.Newf(errors.ErrCodeInvalidTimeRange, "fetch window start %s is not before end %s", fetchRange.Start, fetchRange.End)
	}

	// Binance filters klines by open time with inclusive bounds; trim the end
	// by a millisecond to keep the window half-open.
	endMillis := fetchRange.End.UnixMilli() - 1

	var candles []types.Candle

	currentStart := fetchRange.Start.UnixMilli()

	for {
		klines, err := c.apiClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(currentStart).
			EndTime(endMillis).
			Limit(binancePageLimit).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeProviderFetchFailed, err, "failed to fetch %s %s klines from binance", symbol, interval)
		}

		candles = append(candles, convertKlines(symbol, klines)...)

		// Last page: no data or a short page.
		if len(klines) < binancePageLimit {
			break
		}

		// Resume after the last kline's close time to avoid duplicates.
		currentStart = klines[len(klines)-1].CloseTime + 1
		if currentStart > endMillis {
			break
		}
	}

	c.log.Debug("fetched binance klines",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Time("start", fetchRange.Start),
		zap.Time("end", fetchRange.End),
		zap.Int("count", len(candles)),
	)

	return candles, nil
}

// fetchLatest returns the most recent kline, which may still be forming.
func (c *BinanceClient) fetchLatest(ctx context.Context, symbol string, interval string) ([]types.Candle, error) {
	klines, err := c.apiClient.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(1).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeProviderFetchFailed, err, "failed to fetch latest %s %s kline from binance", symbol, interval)
	}

	return convertKlines(symbol, klines), nil
}

// convertKlines converts Binance kline rows to candles keyed by open time.
func convertKlines(symbol string, klines []*binance.Kline) []types.Candle {
	candles := make([]types.Candle, 0, len(klines))

	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		candles = append(candles, types.Candle{
			Symbol: symbol,
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	return candles
}

// binanceInterval converts a granularity to the Binance kline interval string.
// Binance intervals: 1m, 3m, 5m, 15m, 30m, 1h, 2h, 4h, 6h, 8h, 12h, 1d, 3d, 1w, 1M.
func binanceInterval(granularity types.Granularity) (string, error) {
	switch granularity {
	case types.GranularityOneMinute,
		types.GranularityFiveMinutes,
		types.GranularityFifteenMinutes,
		types.GranularityOneHour,
		types.GranularitySixHours,
		types.GranularityOneDay:
		// Supported granularities map one-to-one onto Binance interval names.
		return string(granularity), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidGranularity, "unsupported granularity for binance: %s", granularity)
	}
}
