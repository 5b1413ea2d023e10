package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration validation errors (100-199)
	ErrCodeInvalidConfiguration  ErrorCode = 100
	ErrCodeInvalidWingWidth      ErrorCode = 101
	ErrCodeNoEntryTimes          ErrorCode = 102
	ErrCodeEntryOutsideSession   ErrorCode = 103
	ErrCodeExitBeforeEntry       ErrorCode = 104
	ErrCodeInvalidStrikePolicy   ErrorCode = 105
	ErrCodeInvalidDeltaThreshold ErrorCode = 106
	ErrCodeInvalidProfitTarget   ErrorCode = 107
	ErrCodeInvalidEntryWindow    ErrorCode = 108
	ErrCodeMissingTicker         ErrorCode = 109

	// Quote store errors (200-299)
	ErrCodeStoreUnavailable ErrorCode = 200
	ErrCodeQueryFailed      ErrorCode = 201
	ErrCodeCorruptRecord    ErrorCode = 202
	ErrCodeStoreClosed      ErrorCode = 203

	// Engine errors (300-399)
	ErrCodeNoQuoteStore      ErrorCode = 300
	ErrCodeNoCalendar        ErrorCode = 301
	ErrCodeNoResultsFolder   ErrorCode = 302
	ErrCodeEngineNotReady    ErrorCode = 303
	ErrCodeReportWriteFailed ErrorCode = 304
)
