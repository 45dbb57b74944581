package filament

import "errors"

// ErrNilEffect is returned when RunEffect, Watch, or WatchEffect is called
// with a nil function. This is a caller bug and is surfaced immediately
// rather than swallowed.
var ErrNilEffect = errors.New("filament: effect function is nil")

// ErrNilSource is returned when Watch is called with a nil source getter.
var ErrNilSource = errors.New("filament: watch source is nil")

// ErrSubscriberDisposed is reported through a subscriber's error handler
// when an operation that requires a live subscriber is attempted after
// disposal. Triggering a disposed subscriber itself is only a warning,
// never an error.
var ErrSubscriberDisposed = errors.New("filament: subscriber is disposed")
