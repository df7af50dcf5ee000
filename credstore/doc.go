// Package credstore persists the current session's tokens, user record, and
// expiry timestamps across process restarts.
//
// Storage is split into two tiers: a token tier holding the access and
// refresh tokens, and a state tier holding the user record and both expiry
// instants. Revocation can therefore be implemented by clearing the token
// tier alone while expiry bookkeeping survives for display purposes.
//
// Stores are dumb persistence adapters: no network validation, no token
// inspection, no business logic. A partial or unparseable record is treated
// as absence, never healed field by field.
package credstore
