// Package event defines the pushes a connection can receive from the relay.
// Push names double as wire frame types, matching the duplex contract.
package event

import (
	"chatty-relay/domain"
)

type Kind string

const (
	KindReceiveMessage     Kind = "ReceiveMessage"
	KindUserConnected      Kind = "UserConnected"
	KindUserDisconnected   Kind = "UserDisconnected"
	KindUsernameRegistered Kind = "UsernameRegistered"
	KindErrorMessage       Kind = "ErrorMessage"
)

// Push is a server-to-client notification delivered through an EventSink.
type Push interface {
	PushKind() Kind
}

// MessageReceived carries a routed or replayed message.
type MessageReceived struct {
	Message domain.Message
}

func (MessageReceived) PushKind() Kind { return KindReceiveMessage }

// UserConnected announces a new physical connection by its opaque handle.
type UserConnected struct {
	Handle string
}

func (UserConnected) PushKind() Kind { return KindUserConnected }

// UserDisconnected announces that a registered identity left.
type UserDisconnected struct {
	User domain.User
}

func (UserDisconnected) PushKind() Kind { return KindUserDisconnected }

// UsernameRegistered confirms a successful registration to its owner.
type UsernameRegistered struct {
	Username string
}

func (UsernameRegistered) PushKind() Kind { return KindUsernameRegistered }

// ErrorNotice is an informational failure pushed to a single connection.
// It is data, not a fault: never stored, never retried.
type ErrorNotice struct {
	Text string
}

func (ErrorNotice) PushKind() Kind { return KindErrorMessage }
