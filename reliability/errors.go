package reliability

import "errors"

// ErrStreamClosed is returned by Send when Close has been called and the
// caller was blocked waiting for a window slot.
var ErrStreamClosed = errors.New("reliability: stream closed")
