package model

// ItemError names one item that blocked a bulk operation.
type ItemError struct {
	ItemID string `json:"itemId"`
	Reason string `json:"reason"`
}

// BulkResult is the uniform response of every bulk operation.
type BulkResult struct {
	ProcessedCount int         `json:"processedCount"`
	Errors         []ItemError `json:"errors"`
}
