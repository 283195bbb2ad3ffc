package fetcher

// Result represents the outcome of fetching a single ticker.
// It's designed to be sent through channels from worker goroutines
// to a coordinator that renders the rows.
type Result struct {
	// Ticker is the normalized symbol that was requested
	Ticker Ticker

	// Quote is the fetched quote
	Quote Quote

	// Error contains any error that occurred during the fetch operation.
	// If Error is not nil, Quote should be considered invalid.
	Error error
}
