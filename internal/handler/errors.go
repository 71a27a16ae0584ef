package handler

import "errors"

// errSessionGone signals the WS push loop that the session vanished and
// the connection has already been closed.
var errSessionGone = errors.New("session gone")
