package authUtils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// TokenIssuer identifies tokens minted by this service.
const TokenIssuer = "ecohunt"

const defaultTokenTTL = 72 * time.Hour

// SessionTokenTTL returns the token lifetime, overridable through
// AUTH_TOKEN_TTL_HOURS.
func SessionTokenTTL() time.Duration {
	if hours, err := strconv.Atoi(os.Getenv("AUTH_TOKEN_TTL_HOURS")); err == nil && hours > 0 {
		return time.Duration(hours) * time.Hour
	}
	return defaultTokenTTL
}

// IssueSessionToken mints the signed session token the auth middleware
// accepts, carrying the user ID the claim workflow and group handlers
// resolve the acting user from.
func IssueSessionToken(userID string) (string, error) {
	secretStr := os.Getenv("JWT_SECRET")
	if secretStr == "" {
		return "", fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iss":     TokenIssuer,
		"iat":     now.Unix(),
		"exp":     now.Add(SessionTokenTTL()).Unix(),
	})

	return token.SignedString([]byte(secretStr))
}
