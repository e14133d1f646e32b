package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const (
	RoleAuthenticated = "authenticated"
	RoleService       = "service_role"
)

type AppMetadata struct {
	SubscriptionTier string `json:"subscription_tier,omitempty"`
}

// Claims follows the Supabase access token layout: the user id is the
// subject and the subscription tier lives in app_metadata.
type Claims struct {
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwtlib.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

func GenerateToken(userID, email, role, tier string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:       email,
		Role:        role,
		AppMetadata: AppMetadata{SubscriptionTier: tier},
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" && claims.Role != RoleService {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
