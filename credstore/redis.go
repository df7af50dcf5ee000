package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ferrytech/authkit/session"
)

const (
	tokenKeySuffix = ":tokens"
	stateKeySuffix = ":state"

	tokenFieldAccess  = "access_token"
	tokenFieldRefresh = "refresh_token"
)

// Redis is a [Store] backed by a Redis hash pair, for headless deployments
// where several processes share one coordinator identity (kiosk terminals,
// depot gateways). The token tier and state tier live in separate hashes so
// revocation can DEL one key without touching the other.
//
// Sessions stored with persistent=false carry a TTL expiring with the
// refresh token; persistent sessions are kept until cleared.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis-backed store. prefix namespaces the two hashes,
// e.g. "authkit:depot-7".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "authkit"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) tokenKey() string { return r.prefix + tokenKeySuffix }
func (r *Redis) stateKey() string { return r.prefix + stateKeySuffix }

// Store implements [Store].
func (r *Redis) Store(ctx context.Context, sess *session.Session, persistent bool) error {
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.tokenKey(), r.stateKey())
	pipe.HSet(ctx, r.tokenKey(),
		tokenFieldAccess, sess.AccessToken,
		tokenFieldRefresh, sess.RefreshToken,
	)
	pipe.HSet(ctx, r.stateKey(),
		KeyUser, string(userJSON),
		KeyAccessExpiry, sess.AccessExpiry.Format(time.RFC3339Nano),
		KeyRefreshExpiry, sess.RefreshExpiry.Format(time.RFC3339Nano),
		KeyPersistent, boolField(persistent),
	)
	if !persistent {
		pipe.PExpireAt(ctx, r.tokenKey(), sess.RefreshExpiry)
		pipe.PExpireAt(ctx, r.stateKey(), sess.RefreshExpiry)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Load implements [Store].
func (r *Redis) Load(ctx context.Context) (*session.Session, error) {
	tokenFields, err := r.client.HGetAll(ctx, r.tokenKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	stateFields, err := r.client.HGetAll(ctx, r.stateKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(tokenFields) == 0 || len(stateFields) == 0 {
		return nil, nil
	}

	tokens := &tokenRecord{
		AccessToken:  tokenFields[tokenFieldAccess],
		RefreshToken: tokenFields[tokenFieldRefresh],
	}
	state := &stateRecord{
		AccessExpiry:  stateFields[KeyAccessExpiry],
		RefreshExpiry: stateFields[KeyRefreshExpiry],
		Persistent:    stateFields[KeyPersistent] == "1",
	}
	if err := json.Unmarshal([]byte(stateFields[KeyUser]), &state.User); err != nil {
		return nil, nil
	}

	return assembleSession(tokens, state)
}

// Clear implements [Store].
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.tokenKey(), r.stateKey()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
