// Package session defines the session and user models shared by the
// coordinator, credential stores, and permission resolution.
//
// A Session is created atomically on successful login or refresh, replaced
// wholesale on refresh, and destroyed atomically on logout or refresh-token
// expiry. Nothing in this package talks to storage or the network.
package session
