package core

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded is returned before any side effect when the caller has
// used up their daily message quota.
var ErrQuotaExceeded = errors.New("daily message quota exceeded")

// MalformedClassificationError reports that the routing model's output could
// not be parsed into a classification. It is never retried or guessed
// around; the turn fails with it and no assistant message is persisted.
type MalformedClassificationError struct {
	Raw string // the raw model output that failed to parse
	Err error
}

func (e *MalformedClassificationError) Error() string {
	return fmt.Sprintf("malformed classification output: %v", e.Err)
}

func (e *MalformedClassificationError) Unwrap() error {
	return e.Err
}

// IsMalformedClassification reports whether err is (or wraps) a
// classification parse failure.
func IsMalformedClassification(err error) bool {
	var mce *MalformedClassificationError
	return errors.As(err, &mce)
}
