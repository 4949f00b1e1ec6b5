package provider

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-backfill/internal/logger"
	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/pkg/errors"
)

// polygonPageLimit is the maximum aggregate page size; the iterator paginates
// past it transparently.
const polygonPageLimit = 50000

// PolygonAggsIterator abstracts the aggregates iterator for testing.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient abstracts the Polygon client for testing.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

// realPolygonAPIClient wraps the actual polygon.Client.
type realPolygonAPIClient struct {
	client *polygon.Client
}

func (r *realPolygonAPIClient) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return r.client.ListAggs(ctx, params, options...)
}

// PolygonClient fetches candles from the Polygon.io aggregates API.
type PolygonClient struct {
	apiClient PolygonAPIClient
	log       *logger.Logger
}

var _ Provider = (*PolygonClient)(nil)

// NewPolygonClient creates a Polygon provider. An API key is required.
func NewPolygonClient(apiKey string, log *logger.Logger) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon api key is required")
	}

	return &PolygonClient{
		apiClient: &realPolygonAPIClient{client: polygon.New(apiKey)},
		log:       log,
	}, nil
}

// NewPolygonClientWithAPI creates a Polygon provider with a custom API
// client. This is used for testing with mock clients.
func NewPolygonClientWithAPI(apiClient PolygonAPIClient, log *logger.Logger) *PolygonClient {
	return &PolygonClient{
		apiClient: apiClient,
		log:       log,
	}
}

// Name implements Provider.
func (c *PolygonClient) Name() string {
	return string(ProviderPolygon)
}

// FetchCandles implements Provider.
func (c *PolygonClient) FetchCandles(ctx context.Context, symbol string, granularity types.Granularity, window optional.Option[types.TimeRange]) ([]types.Candle, error) {
	if window.IsNone() {
		return c.fetchLatest(ctx, symbol, granularity)
	}

	fetchRange := window.Unwrap()
	if !fetchRange.IsValid() {
		return nil, errors.Newf(errors.ErrCodeInvalidTimeRange, "fetch window start %s is not before end %s", fetchRange.Start, fetchRange.End)
	}

	candles, err := c.listAggs(ctx, symbol, granularity, fetchRange)
	if err != nil {
		return nil, err
	}

	c.log.Debug("fetched polygon aggregates",
		zap.String("symbol", symbol),
		zap.String("granularity", granularity.String()),
		zap.Time("start", fetchRange.Start),
		zap.Time("end", fetchRange.End),
		zap.Int("count", len(candles)),
	)

	return candles, nil
}

// fetchLatest queries the last two buckets and returns the most recent
// aggregate. Polygon has no single-candle endpoint, so a short trailing
// window stands in for one.
func (c *PolygonClient) fetchLatest(ctx context.Context, symbol string, granularity types.Granularity) ([]types.Candle, error) {
	now := time.Now().UTC()

	candles, err := c.listAggs(ctx, symbol, granularity, types.NewTimeRange(now.Add(-2*granularity.Duration()), now))
	if err != nil {
		return nil, err
	}

	if len(candles) == 0 {
		return nil, nil
	}

	return candles[len(candles)-1:], nil
}

func (c *PolygonClient) listAggs(ctx context.Context, symbol string, granularity types.Granularity, fetchRange types.TimeRange) ([]types.Candle, error) {
	multiplier, timespan, err := polygonTimespan(granularity)
	if err != nil {
		return nil, err
	}

	// From/To bound aggregate start timestamps inclusively; trim the end by a
	// millisecond to keep the window half-open.
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(fetchRange.Start),
		To:         models.Millis(fetchRange.End.Add(-time.Millisecond)),
	}.WithLimit(polygonPageLimit)

	iter := c.apiClient.ListAggs(ctx, params)

	var candles []types.Candle

	for iter.Next() {
		agg := iter.Item()
		candles = append(candles, types.Candle{
			Symbol: symbol,
			Time:   time.Time(agg.Timestamp).UTC(),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if iter.Err() != nil {
		return nil, errors.Wrapf(errors.ErrCodeProviderFetchFailed, iter.Err(), "failed to fetch %s %s aggregates from polygon", symbol, granularity)
	}

	return candles, nil
}

// polygonTimespan converts a granularity to a Polygon multiplier and timespan.
func polygonTimespan(granularity types.Granularity) (int, models.Timespan, error) {
	switch granularity {
	case types.GranularityOneMinute:
		return 1, models.Minute, nil
	case types.GranularityFiveMinutes:
		return 5, models.Minute, nil
	case types.GranularityFifteenMinutes:
		return 15, models.Minute, nil
	case types.GranularityOneHour:
		return 1, models.Hour, nil
	case types.GranularitySixHours:
		return 6, models.Hour, nil
	case types.GranularityOneDay:
		return 1, models.Day, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidGranularity, "unsupported granularity for polygon: %s", granularity)
	}
}
