package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidGranularity   ErrorCode = 102
	ErrCodeInvalidTimeRange     ErrorCode = 103
	ErrCodeMissingParameter     ErrorCode = 104
	ErrCodeInvalidPolicy        ErrorCode = 105
	ErrCodeInvalidSymbol        ErrorCode = 106

	// Cache errors (200-299)
	ErrCodeCacheOpenFailed     ErrorCode = 200
	ErrCodeCacheQueryFailed    ErrorCode = 201
	ErrCodeCacheWriteFailed    ErrorCode = 202
	ErrCodeCacheSchemaMismatch ErrorCode = 203
	ErrCodeCacheExportFailed   ErrorCode = 204
	ErrCodeCacheClosed         ErrorCode = 205
	ErrCodeInvalidCacheType    ErrorCode = 206

	// Provider errors (700-799)
	ErrCodeProviderFetchFailed ErrorCode = 700
	ErrCodeProviderParseFailed ErrorCode = 701
	ErrCodeInvalidProvider     ErrorCode = 702
	ErrCodeEmptyResponse       ErrorCode = 703

	// Engine errors (800-899)
	ErrCodeEngineNotRunning     ErrorCode = 800
	ErrCodeEngineStopped        ErrorCode = 801
	ErrCodeInitialLoadFailed    ErrorCode = 802
	ErrCodeTaskFailed           ErrorCode = 803
	ErrCodeDuplicateTask        ErrorCode = 804
	ErrCodeEngineAlreadyRunning ErrorCode = 805
)
