package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField  Code = "REQUIRED_FIELD"
	CodeInvalidInput   Code = "INVALID_INPUT"
	CodeInvalidFormat  Code = "INVALID_FORMAT"
	CodeNotFound       Code = "NOT_FOUND"
	CodeConfiguration  Code = "CONFIGURATION_ERROR"
	CodeInternalError  Code = "INTERNAL_ERROR"
	CodeUnknownError   Code = "UNKNOWN_ERROR"
	CodeServiceTimeout Code = "SERVICE_TIMEOUT"
)

// Provider errors. Absorbed at the aggregator boundary.
const (
	CodeProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	CodeProviderHTTPError   Code = "PROVIDER_HTTP_ERROR"
	CodeInvalidQuote        Code = "INVALID_QUOTE"
	CodeContractCallFailed  Code = "CONTRACT_CALL_FAILED"
	CodeEthereumRPCError    Code = "ETHEREUM_RPC_ERROR"
	CodeRateLimitExceeded   Code = "RATE_LIMIT_EXCEEDED"

	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)

// Analysis errors. Surfaced to the caller of Recommend.
const (
	CodeInsufficientData Code = "INSUFFICIENT_DATA"
	CodeAnalysisFailure  Code = "ANALYSIS_FAILURE"
)
