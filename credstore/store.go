package credstore

import (
	"context"
	"errors"

	"github.com/ferrytech/authkit/session"
)

// Well-known state-tier keys. Every implementation persists the state tier
// under these four names so that deployments can inspect or migrate stored
// sessions without implementation-specific knowledge.
const (
	KeyUser          = "user"
	KeyAccessExpiry  = "access_expiry"
	KeyRefreshExpiry = "refresh_expiry"
	KeyPersistent    = "persistent"
)

// ErrStoreUnavailable indicates the persistence backend could not be
// reached. It is distinct from an absent session, which Load reports as
// (nil, nil).
var ErrStoreUnavailable = errors.New("credential store unavailable")

// Store is the persistence contract for the current session.
//
// Load returns (nil, nil) when no session is stored or when the stored
// record is incomplete or unparseable; it never returns a partially
// populated session. Clear is idempotent and removes both tiers.
type Store interface {
	// Store writes the session atomically: tokens to the token tier,
	// user and expiries to the state tier. persistent selects long-lived
	// retention; when false the token tier is kept session-only.
	Store(ctx context.Context, sess *session.Session, persistent bool) error

	// Load reconstructs the stored session, or returns (nil, nil) when
	// absent or malformed.
	Load(ctx context.Context) (*session.Session, error)

	// Clear removes all fields from both tiers. Safe to call repeatedly.
	Clear(ctx context.Context) error
}

// stateRecord is the serialized state tier shared by the file and memory
// implementations.
type stateRecord struct {
	User          session.User `json:"user"`
	AccessExpiry  string       `json:"access_expiry"`
	RefreshExpiry string       `json:"refresh_expiry"`
	Persistent    bool         `json:"persistent"`
}

// tokenRecord is the serialized token tier.
type tokenRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
