package channel

import "errors"

// ErrDisconnected is returned by Send/Recv once Close has been called and
// the buffer has been drained.
var ErrDisconnected = errors.New("channel: disconnected")
