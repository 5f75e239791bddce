package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:  "Required field is missing",
	CodeInvalidInput:   "Invalid trade request",
	CodeInvalidFormat:  "Invalid data format",
	CodeNotFound:       "Resource not found",
	CodeConfiguration:  "Configuration error",
	CodeInternalError:  "Internal error",
	CodeUnknownError:   "An unknown error occurred",
	CodeServiceTimeout: "Request deadline exceeded",

	CodeProviderUnavailable: "Quote provider unavailable after retries",
	CodeProviderHTTPError:   "Quote provider returned an error response",
	CodeInvalidQuote:        "Quote provider returned malformed data",
	CodeContractCallFailed:  "Smart contract call failed",
	CodeEthereumRPCError:    "Ethereum RPC call failed",
	CodeRateLimitExceeded:   "Rate limit exceeded",

	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",

	CodeInsufficientData: "Not enough gas or route data to make a recommendation",
	CodeAnalysisFailure:  "Recommendation analysis failed",
}
