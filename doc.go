// Package authkit manages the session and credential lifecycle for clients
// of a REST backend: it issues login requests, stores and monitors
// short-lived access tokens and longer-lived refresh tokens, renews them
// before expiry, warns ahead of expiry, forces logout on unrecoverable
// expiry, and throttles repeated failed logins.
//
// The central type is [Coordinator], built once per process via [Builder]
// and passed by reference to any consumer. It owns the
// authenticated/unauthenticated state machine and is the only writer of the
// persisted session; the credential store, session clock, and permission
// resolver are read-only collaborators.
//
// Rendering, routing, and business-entity APIs are out of scope: consumers
// observe the coordinator through [Coordinator.Snapshot] and
// [Coordinator.Subscribe] and invoke login, logout, refresh, and the
// permission checks. Tokens are treated as opaque strings; verifying their
// signatures is the backend's responsibility.
package authkit
