// Package domain contains core concepts of the chat relay.
// This file defines User identities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

// RecipientAll is the reserved username addressing every registered connection.
const RecipientAll = "all"

// SystemUser is the sender of server-synthesized notices (joins, leaves).
var SystemUser = User{Username: "System"}

// User is an immutable username wrapper. Equality is by value.
// An empty username means "not yet registered".
type User struct {
	Username string `json:"username"`
}

func NewUser(username string) User {
	return User{Username: username}
}

func (u User) IsRegistered() bool {
	return u.Username != ""
}
