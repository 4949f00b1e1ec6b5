package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/argo-backfill/internal/types"
)

// DataGenerator produces synthetic candle series for unit tests and for the
// mock upstream server in the end-to-end suite. Prices follow a geometric
// random walk; bucket times always sit on the granularity's aligned grid so
// the series stores cleanly into any cache backend.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how candles are generated.
type GeneratorConfig struct {
	// Symbol is the instrument symbol (e.g., "BTCUSDT")
	Symbol string
	// StartTime is the open time of the first candle; it is aligned down to
	// the granularity's bucket grid
	StartTime time.Time
	// Granularity is the bucket size of the generated series
	Granularity types.Granularity
	// Count is the number of candles to generate
	Count int
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% typical per-bucket move)
	Volatility float64
	// Trend is the drift factor (-0.01 to 0.01 for bearish to bullish)
	Trend float64
	// VolumeBase is the average volume per candle
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "BTCUSDT",
		StartTime:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Granularity:    types.GranularityOneMinute,
		Count:          1440,
		InitialPrice:   100.0,
		Volatility:     0.002, // 0.2% per candle
		Trend:          0.0,   // neutral
		VolumeBase:     10000,
		VolumeVariance: 0.3,
	}
}

// Generate creates a candle series based on the configuration.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.Candle {
	candles := make([]types.Candle, config.Count)
	price := config.InitialPrice
	bucket := config.Granularity.Align(config.StartTime)
	step := config.Granularity.Duration()

	for i := range candles {
		candles[i] = g.nextCandle(config, bucket, price)
		price = candles[i].Close
		bucket = bucket.Add(step)
	}

	return candles
}

// nextCandle rolls one bucket of the random walk starting at the given open
// price.
func (g *DataGenerator) nextCandle(config GeneratorConfig, bucket time.Time, open float64) types.Candle {
	drift := config.Trend / float64(config.Count)

	close := open * (1 + config.Volatility*g.rng.NormFloat64() + drift)
	if close <= 0 {
		close = open * 0.99 // Prevent negative prices
	}

	// Wicks extend slightly beyond the open-close body.
	high := math.Max(open, close) + math.Abs(g.rng.Float64()*config.Volatility*open*0.5)

	low := math.Min(open, close) - math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
	if low <= 0 {
		low = math.Min(open, close) * 0.99
	}

	volume := config.VolumeBase * (1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance)
	if volume < 0 {
		volume = config.VolumeBase * 0.1
	}

	return types.Candle{
		Symbol: config.Symbol,
		Time:   bucket,
		Open:   roundToDecimals(open, 4),
		High:   roundToDecimals(high, 4),
		Low:    roundToDecimals(low, 4),
		Close:  roundToDecimals(close, 4),
		Volume: roundToDecimals(volume, 2),
	}
}

// GenerateWindow creates candles for every aligned bucket inside the
// half-open window [Start, End).
func (g *DataGenerator) GenerateWindow(symbol string, granularity types.Granularity, window types.TimeRange) []types.Candle {
	start := granularity.Align(window.Start)
	if start.Before(window.Start) {
		start = start.Add(granularity.Duration())
	}

	count := int(window.End.Sub(start) / granularity.Duration())
	if count <= 0 {
		return nil
	}

	config := DefaultConfig()
	config.Symbol = symbol
	config.StartTime = start
	config.Granularity = granularity
	config.Count = count

	return g.Generate(config)
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
