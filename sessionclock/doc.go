// Package sessionclock watches the stored expiry instants and raises
// lifecycle events: renewal due, renewal overdue, and unrecoverable expiry.
//
// Two independent tickers run per clock. The policy tick (default 60s)
// classifies the session and drives refresh/logout decisions; the display
// tick (default 1s) publishes a remaining-time countdown for presentation
// only and never triggers a state transition. Keeping them separate avoids
// firing refresh logic sixty times more often than necessary. Both tickers
// are cancelled together by Stop so no tick can fire against a cleared
// session.
//
// The clock only ever reads expiries; it never mutates the session.
package sessionclock
