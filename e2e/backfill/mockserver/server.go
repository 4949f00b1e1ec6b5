// Package mockserver provides a mock Binance klines server for backfill
// end-to-end tests. It serves deterministic candle data over the REST API the
// backfill engine consumes, and records every request so tests can assert on
// fetch behavior.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/rxtech-lab/argo-backfill/internal/types"
	"github.com/rxtech-lab/argo-backfill/mocks"
)

// defaultLimit is the number of klines returned when no limit is given.
const defaultLimit = 500

// maxLimit is the largest number of klines one request can return.
const maxLimit = 1000

// KlineRequest records one parsed klines request.
type KlineRequest struct {
	Symbol    string
	Interval  string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// ServerConfig holds configuration for the mock server.
type ServerConfig struct {
	// Seed makes the generated candle data reproducible. Repeating a request
	// with the same window always returns the same payload.
	Seed int64
	// Latency delays every klines response, for exercising concurrent
	// fetching.
	Latency time.Duration
}

// MockKlinesServer serves the Binance klines REST endpoint with generated
// candle data.
type MockKlinesServer struct {
	mu sync.RWMutex

	// HTTP server
	httpServer *http.Server
	listener   net.Listener

	config ServerConfig

	// Request tracking
	requests       []KlineRequest
	failRemaining  int
	activeRequests int
	peakConcurrent int
}

// NewMockKlinesServer creates a new mock klines server.
func NewMockKlinesServer(config ServerConfig) *MockKlinesServer {
	return &MockKlinesServer{
		mu:             sync.RWMutex{},
		httpServer:     nil,
		listener:       nil,
		config:         config,
		requests:       make([]KlineRequest, 0),
		failRemaining:  0,
		activeRequests: 0,
		peakConcurrent: 0,
	}
}

// Start starts the mock server on the given address.
// If address is empty or ":0", a random available port is used.
func (s *MockKlinesServer) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	router := mux.NewRouter()
	router.HandleFunc("/api/v3/klines", s.handleKlines).Methods("GET")

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

// Stop stops the mock server.
func (s *MockKlinesServer) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Address returns the address the server is listening on.
func (s *MockKlinesServer) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the base URL for the server.
func (s *MockKlinesServer) BaseURL() string {
	return "http://" + s.Address()
}

// FailNext makes the next n klines requests fail with an internal server
// error.
func (s *MockKlinesServer) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRemaining = n
}

// RequestCount returns how many klines requests the server has seen.
func (s *MockKlinesServer) RequestCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.requests)
}

// Requests returns a copy of all recorded klines requests.
func (s *MockKlinesServer) Requests() []KlineRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]KlineRequest, len(s.requests))
	copy(result, s.requests)
	return result
}

// PeakConcurrent returns the highest number of klines requests that were in
// flight at the same time.
func (s *MockKlinesServer) PeakConcurrent() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peakConcurrent
}

// Reset clears the request log and failure injection.
func (s *MockKlinesServer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = make([]KlineRequest, 0)
	s.failRemaining = 0
	s.peakConcurrent = 0
}

// handleKlines handles GET /api/v3/klines
func (s *MockKlinesServer) handleKlines(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	interval := r.URL.Query().Get("interval")
	startTimeStr := r.URL.Query().Get("startTime")
	endTimeStr := r.URL.Query().Get("endTime")
	limitStr := r.URL.Query().Get("limit")

	if symbol == "" || interval == "" {
		http.Error(w, "Missing required parameters", http.StatusBadRequest)
		return
	}

	granularity, err := types.ParseGranularity(interval)
	if err != nil {
		http.Error(w, "Invalid interval", http.StatusBadRequest)
		return
	}

	// Parse times; Binance treats both bounds as inclusive open-time filters.
	var startTime, endTime time.Time
	if startTimeStr != "" {
		ms, _ := strconv.ParseInt(startTimeStr, 10, 64)
		startTime = time.UnixMilli(ms).UTC()
	}
	if endTimeStr != "" {
		ms, _ := strconv.ParseInt(endTimeStr, 10, 64)
		endTime = time.UnixMilli(ms).UTC()
	} else {
		endTime = time.Now().UTC()
	}

	limit := defaultLimit
	if limitStr != "" {
		limit, _ = strconv.Atoi(limitStr)
		if limit <= 0 {
			limit = defaultLimit
		}
		if limit > maxLimit {
			limit = maxLimit
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, KlineRequest{
		Symbol:    symbol,
		Interval:  interval,
		StartTime: startTime,
		EndTime:   endTime,
		Limit:     limit,
	})

	s.activeRequests++
	if s.activeRequests > s.peakConcurrent {
		s.peakConcurrent = s.activeRequests
	}

	shouldFail := s.failRemaining > 0
	if shouldFail {
		s.failRemaining--
	}

	latency := s.config.Latency
	seed := s.config.Seed
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.activeRequests--
		s.mu.Unlock()
	}()

	if latency > 0 {
		time.Sleep(latency)
	}

	if shouldFail {
		http.Error(w, "Internal error; unable to process your request", http.StatusInternalServerError)
		return
	}

	duration := granularity.Duration()

	// Without a start bound Binance returns the most recent klines up to the
	// limit, including the still-forming bucket.
	var window types.TimeRange
	if startTime.IsZero() {
		anchor := granularity.Align(endTime)
		window = types.TimeRange{
			Start: anchor.Add(-time.Duration(limit-1) * duration),
			End:   anchor.Add(duration),
		}
	} else {
		// Inclusive end bound becomes a half-open window.
		window = types.TimeRange{
			Start: startTime,
			End:   endTime.Add(time.Millisecond),
		}
	}

	// A fresh generator seeded from the window keeps repeated requests for
	// the same window byte-identical.
	generator := mocks.NewDataGenerator(windowSeed(seed, symbol, granularity, window.Start))
	candles := generator.GenerateWindow(symbol, granularity, window)

	if len(candles) > limit {
		candles = candles[:limit]
	}

	// Convert to Binance kline format: [openTime, open, high, low, close, volume, closeTime, ...]
	klines := make([][]any, 0, len(candles))
	for _, candle := range candles {
		closeTime := candle.Time.Add(duration).UnixMilli() - 1
		klines = append(klines, []any{
			candle.Time.UnixMilli(),                        // Open time
			strconv.FormatFloat(candle.Open, 'f', 8, 64),   // Open
			strconv.FormatFloat(candle.High, 'f', 8, 64),   // High
			strconv.FormatFloat(candle.Low, 'f', 8, 64),    // Low
			strconv.FormatFloat(candle.Close, 'f', 8, 64),  // Close
			strconv.FormatFloat(candle.Volume, 'f', 8, 64), // Volume
			closeTime, // Close time
			"0",       // Quote asset volume
			0,         // Number of trades
			"0",       // Taker buy base asset volume
			"0",       // Taker buy quote asset volume
			"0",       // Ignore
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(klines)
}

// windowSeed derives a per-window seed so every distinct request window gets
// its own reproducible series.
func windowSeed(base int64, symbol string, granularity types.Granularity, start time.Time) int64 {
	seed := base + start.UnixMilli() + int64(granularity.Duration()/time.Millisecond)
	for _, b := range []byte(symbol) {
		seed += int64(b)
	}

	return seed
}
