package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"ai_orchestrator/internal/models"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// CallerClaims identifies the caller of the orchestration API.
type CallerClaims struct {
	CallerID       string
	OrganizationID string
	Tier           models.Tier
	PlatformAdmin  bool
	ExpiresAt      time.Time
}

// GenerateCallerJWT signs claims with HS256 and returns the token and its expiry.
func GenerateCallerJWT(claims CallerClaims, secret []byte, ttl time.Duration) (string, int64, error) {
	if claims.CallerID == "" {
		return "", 0, fmt.Errorf("caller id is required")
	}
	expirationTime := time.Now().Add(ttl).Unix()
	mapClaims := jwt.MapClaims{
		"sub":  claims.CallerID, // Subject: caller
		"tier": string(claims.Tier),
		"exp":  expirationTime,
	}
	if claims.OrganizationID != "" {
		mapClaims["org"] = claims.OrganizationID
	}
	if claims.PlatformAdmin {
		mapClaims["platform_admin"] = true
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	signedToken, err := token.SignedString(secret)
	if err != nil {
		return "", 0, err
	}
	return signedToken, expirationTime, nil
}

// ValidateCallerJWT verifies a token and extracts the caller claims.
// Unknown tiers are mapped to the lowest tier.
func ValidateCallerJWT(tokenString string, secret []byte) (*CallerClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if _, hasExp := mapClaims["exp"]; !hasExp {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}

	claims := &CallerClaims{CallerID: sub}
	claims.OrganizationID, _ = mapClaims["org"].(string)
	tier, _ := mapClaims["tier"].(string)
	claims.Tier = models.ParseTier(tier)
	claims.PlatformAdmin, _ = mapClaims["platform_admin"].(bool)
	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return claims, nil
}
