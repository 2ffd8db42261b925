package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// AccessTokenPayload is what an issuer knows about the caller.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	Email  string
	JTI    string
}

// AccessTokenClaims is the signed body of an access token.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	Email  string         `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims pass; jwt calls it during parse.
func (c *AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("missing user_id")
	}
	if !c.Role.IsValid() {
		return errors.New("unknown role " + string(c.Role))
	}
	if c.Subject != c.UserID.String() {
		return errors.New("subject does not match user_id")
	}
	return nil
}
