package domain

import "errors"

// ErrTransportWrite is reported when a command could not be written to the transport.
// A run that hits it becomes Failed and the write is never retried.
var ErrTransportWrite = errors.New("transport write failed")

// ErrUIUnavailable is returned when a UI request cannot be answered because the front end went away.
var ErrUIUnavailable = errors.New("ui unavailable")

// ErrInvalidStep is returned when a macro contains a step that cannot be executed.
var ErrInvalidStep = errors.New("invalid step definition")

// ErrRunActive is returned when a run is started on a transport that already has one in progress.
var ErrRunActive = errors.New("a macro run is already active")

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ErrUnknownRequest is returned when replying to a request ID that is not pending.
var ErrUnknownRequest = errors.New("unknown ui request")

// ErrAlreadyAnswered is returned when a second reply is posted for the same request.
var ErrAlreadyAnswered = errors.New("ui request already answered")

// ErrWithdrawn is returned when replying to a request the run stopped waiting for.
var ErrWithdrawn = errors.New("ui request withdrawn")

// ErrStopped is returned by blocking waits that were interrupted by a stop request.
var ErrStopped = errors.New("stop requested")

// ErrMacroNotFound is returned when no macro with the requested name exists.
var ErrMacroNotFound = errors.New("macro not found")

// ErrInvalidReply is returned when a reply does not fit the kind of request it answers.
var ErrInvalidReply = errors.New("reply does not match request")
