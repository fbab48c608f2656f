package jwt

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	tokenTypeAccess = "access"
	tokenTypeStream = "stream"

	streamTokenTTL = 5 * time.Minute
)

// Claims is what the API reads from a verified access token.
type Claims struct {
	UserID string
	Role   user.Role
}

type Service interface {
	GenerateAccessToken(userID string, role user.Role) (token string, expiresAt int64, err error)
	GenerateStreamToken(userID string) (token string, expiresIn int, err error)
	ValidateStreamToken(tokenString string) (userID string, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenTTL time.Duration
	tokenAuth      *jwtauth.JWTAuth
	now            func() time.Time
}

// NewJWTService signs HS256 tokens with secretKey. accessTokenTTL is a
// duration string such as "15m".
func NewJWTService(secretKey string, accessTokenTTL string) (*JWTService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	ttl, err := time.ParseDuration(accessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid access token ttl %q: %w", accessTokenTTL, err)
	}
	return &JWTService{
		accessTokenTTL: ttl,
		tokenAuth:      jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
		now:            time.Now,
	}, nil
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func (j *JWTService) GenerateAccessToken(userID string, role user.Role) (token string, expiresAt int64, err error) {
	expiresAt = j.now().Add(j.accessTokenTTL).Unix()
	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id": userID,
		"role":    string(role),
		"type":    tokenTypeAccess,
		"exp":     expiresAt,
	})
	return tokenString, expiresAt, err
}

// GenerateStreamToken issues a short-lived token for the event stream,
// which browsers open without an Authorization header.
func (j *JWTService) GenerateStreamToken(userID string) (token string, expiresIn int, err error) {
	expiresAt := j.now().Add(streamTokenTTL).Unix()
	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id": userID,
		"type":    tokenTypeStream,
		"exp":     expiresAt,
	})
	if err != nil {
		return "", 0, err
	}
	return tokenString, int(streamTokenTTL.Seconds()), nil
}

// ValidateStreamToken verifies a stream token and returns its user ID.
func (j *JWTService) ValidateStreamToken(tokenString string) (userID string, err error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return "", err
	}
	if tokenType, ok := token.Get("type"); !ok || tokenType != tokenTypeStream {
		return "", jwt.ErrInvalidJWT()
	}
	return stringClaim(token.PrivateClaims(), "user_id")
}

// ClaimsFrom extracts the access-token claims jwtauth placed in the map.
func ClaimsFrom(claims map[string]interface{}) (Claims, error) {
	if tokenType, _ := claims["type"].(string); tokenType != tokenTypeAccess {
		return Claims{}, jwt.ErrInvalidJWT()
	}
	userID, err := stringClaim(claims, "user_id")
	if err != nil {
		return Claims{}, err
	}
	role, err := stringClaim(claims, "role")
	if err != nil {
		return Claims{}, err
	}
	return Claims{UserID: userID, Role: user.Role(role)}, nil
}

func stringClaim(claims map[string]interface{}, key string) (string, error) {
	v, ok := claims[key].(string)
	if !ok || v == "" {
		return "", jwt.ErrInvalidJWT()
	}
	return v, nil
}
