package specdecode

import "errors"

var (
	// ErrUnsupported marks operations a worker kind never supports. It is a
	// wiring defect, not a runtime condition, and must not be retried.
	ErrUnsupported = errors.New("operation not supported")

	ErrInvalidSampleLen = errors.New("sample length must be non-negative")
	ErrInvalidNumLevels = errors.New("number of levels must be non-negative")
)

// ErrLoRANotSupported is returned by every adapter call on a draft worker.
var ErrLoRANotSupported error = unsupportedError{msg: "LoRA is not supported for proposer workers"}

type unsupportedError struct {
	msg string
}

func (e unsupportedError) Error() string {
	return e.msg
}

func (e unsupportedError) Unwrap() error {
	return ErrUnsupported
}

// Unsupported returns an error that matches ErrUnsupported with errors.Is.
func Unsupported(msg string) error {
	return unsupportedError{msg: msg}
}
