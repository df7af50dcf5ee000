package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ferrytech/authkit"
	"github.com/ferrytech/authkit/session"
)

// grantResponse is the success payload of /login and /refresh. Expiries
// are ISO-8601 strings; userDetails is absent on refresh responses from
// some deployments.
type grantResponse struct {
	Token              string    `json:"token"`
	RefreshToken       string    `json:"refreshToken"`
	UserDetails        *wireUser `json:"userDetails"`
	TokenExpiry        string    `json:"tokenExpiry"`
	RefreshTokenExpiry string    `json:"refreshTokenExpiry"`
}

// wireUser tolerates the two role encodings seen in the wild: a bare role
// identifier string, or an embedded role record with its own permissions.
type wireUser struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	DisplayName string   `json:"displayName"`
	Role        wireRole `json:"role"`
	Permissions []string `json:"permissions"`
}

type wireRole struct {
	ID          string
	Name        string
	Permissions []string
}

// UnmarshalJSON accepts either "role": "admin" or
// "role": {"id": ..., "name": ..., "permissions": [...]}.
func (r *wireRole) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		r.ID = id
		return nil
	}

	var record struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("role field: %w", err)
	}
	r.ID = record.ID
	r.Name = record.Name
	r.Permissions = record.Permissions
	return nil
}

func (u *wireUser) toUser() *session.User {
	if u == nil {
		return nil
	}
	user := &session.User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Role:        u.Role.ID,
		Permissions: append([]string(nil), u.Permissions...),
	}
	if u.Role.Name != "" || len(u.Role.Permissions) > 0 {
		user.RoleDetail = &session.RoleRecord{
			ID:          u.Role.ID,
			Name:        u.Role.Name,
			Permissions: append([]string(nil), u.Role.Permissions...),
		}
	}
	return user
}

// toGrant normalizes a wire payload into a [authkit.TokenGrant], deriving
// missing expiries from the tokens' exp claims when the fallback is
// enabled.
func (c *Client) toGrant(payload grantResponse) (*authkit.TokenGrant, error) {
	if payload.Token == "" || payload.RefreshToken == "" {
		return nil, fmt.Errorf("response missing tokens: %w", authkit.ErrMalformedGrant)
	}

	accessExpiry, err := c.parseExpiry(payload.TokenExpiry, payload.Token)
	if err != nil {
		return nil, fmt.Errorf("tokenExpiry: %w", err)
	}
	refreshExpiry, err := c.parseExpiry(payload.RefreshTokenExpiry, payload.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refreshTokenExpiry: %w", err)
	}

	return &authkit.TokenGrant{
		AccessToken:   payload.Token,
		RefreshToken:  payload.RefreshToken,
		User:          payload.UserDetails.toUser(),
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// parseExpiry reads an ISO-8601 field, falling back to the token's exp
// claim when the field is empty and the fallback is enabled.
func (c *Client) parseExpiry(raw, token string) (time.Time, error) {
	if raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", authkit.ErrMalformedGrant, err)
		}
		return at, nil
	}

	if !c.jwtFallback {
		return time.Time{}, authkit.ErrMalformedGrant
	}
	return expiryFromClaims(token)
}

// expiryFromClaims decodes the token without signature verification and
// returns its exp claim. Scheduling input only, never an authorization
// decision.
func expiryFromClaims(token string) (time.Time, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", authkit.ErrMalformedGrant, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: token has no exp claim", authkit.ErrMalformedGrant)
	}
	return claims.ExpiresAt.Time, nil
}
