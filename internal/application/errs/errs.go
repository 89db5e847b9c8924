package errs

import "fmt"

type ValidationError struct {
	Err error
}

func (t ValidationError) Error() string {
	return fmt.Sprintf("validation error: %v", t.Err)
}

type TransientError struct {
	Err error
}

func (t TransientError) Error() string {
	return fmt.Sprintf("transient error: %v", t.Err)
}

func (t TransientError) Unwrap() error {
	return t.Err
}

type RejectedError struct {
	Status int
	Err    error
}

func (t RejectedError) Error() string {
	return fmt.Sprintf("rejected with status %d: %v", t.Status, t.Err)
}

type TimeoutError struct {
	Err error
}

func (t TimeoutError) Error() string {
	return fmt.Sprintf("deadline exceeded: %v", t.Err)
}
