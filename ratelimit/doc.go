// Package ratelimit tracks failed login attempts per identity and enforces
// a temporary lockout.
//
// The policy is a hard reset, not a leaky bucket: once an identity reaches
// the attempt budget it stays locked until the window since its most recent
// failure elapses, at which point the counter resets to zero. Identities
// are independent; a lockout for one never affects another.
package ratelimit
