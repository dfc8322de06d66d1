package helper

import "fmt"

// NewError wraps err with the operation that failed.
// It returns nil if err is nil.
func NewError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("error %s: %w", operation, err)
}
