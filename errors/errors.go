package errors

import "fmt"

var (
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrUsernameTaken   = fmt.Errorf("username already taken")
	ErrInvalidUsername = fmt.Errorf("invalid username")
	ErrUnknownHandle   = fmt.Errorf("unknown connection handle")
	ErrNotConnected    = fmt.Errorf("not connected")
	ErrNotRegistered   = fmt.Errorf("username not registered yet")
	ErrClientStopped   = fmt.Errorf("client stopped")
)
