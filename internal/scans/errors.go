package scans

import "fmt"

// ValidationError marks input that must be reported inline next to the
// offending field. Nothing is persisted or sent when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DeliveryError wraps a mail transport failure. Non-fatal: the request still
// completes and the caller shows an error flash.
type DeliveryError struct {
	To       string
	Filename string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver %s to %s: %v", e.Filename, e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
