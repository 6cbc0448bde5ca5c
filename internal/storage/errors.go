package storage

import "fmt"

// ProviderError represents a non-zero result code returned inside an
// otherwise successful HTTP response from the storage provider.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("storage provider error (code %d): %s", e.Code, e.Message)
}
