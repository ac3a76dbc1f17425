package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidCommand       ErrorCode = 102
	ErrCodeInvalidCriteria      ErrorCode = 103
	ErrCodeInvalidPeriod        ErrorCode = 104
	ErrCodeInvalidSymbol        ErrorCode = 105

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound    ErrorCode = 200
	ErrCodeDataUnavailable ErrorCode = 201
	ErrCodeQueryFailed     ErrorCode = 202
	ErrCodeStaleData       ErrorCode = 203
	ErrCodeDuplicateSymbol ErrorCode = 204

	// Indicator/computation errors (300-399)
	ErrCodeComputation            ErrorCode = 300
	ErrCodeNonMonotonicSeries     ErrorCode = 301
	ErrCodeHighWaterMarkDecreased ErrorCode = 302

	// Ledger errors (500-599)
	ErrCodeInvalidOrder     ErrorCode = 500
	ErrCodeLotNotFound      ErrorCode = 501
	ErrCodeOversell         ErrorCode = 502
	ErrCodeLotAlreadyExists ErrorCode = 503

	// Backtest errors (600-699)
	ErrCodeBacktestFailed      ErrorCode = 600
	ErrCodeBacktestEmptySeries ErrorCode = 601

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 701
	ErrCodeInvalidProvider       ErrorCode = 702

	// Job errors (800-899)
	ErrCodeJobCancelled  ErrorCode = 800
	ErrCodeJobSuperseded ErrorCode = 801
)
