package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lms-dashboard/domain/core/entities"
	"lms-dashboard/domain/core/valueobjects"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMissingToken     = errors.New("missing authentication token")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// Claims are the dashboard claims issued by the LMS. The subject carries the
// numeric user id.
type Claims struct {
	Role        string  `json:"role"`
	BranchID    *int64  `json:"branch_id,omitempty"`
	BusinessIDs []int64 `json:"business_ids,omitempty"`
	jwt.RegisteredClaims
}

// Viewer converts validated claims into the dashboard viewer
func (c *Claims) Viewer() (*entities.Viewer, error) {
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: subject must be a user id", ErrInvalidClaims)
	}
	role, err := valueobjects.ParseRole(c.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
	return &entities.Viewer{
		UserID:      userID,
		Role:        role,
		BranchID:    c.BranchID,
		BusinessIDs: c.BusinessIDs,
	}, nil
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningMethod string   // RS256 or HS256
	PublicKey     string   // For RS256
	SecretKey     string   // For HS256
	Issuer        string   // Expected issuer
	Audience      []string // Expected audience
}

// JWTValidator handles JWT validation
type JWTValidator struct {
	publicKey     *rsa.PublicKey
	secretKey     []byte
	signingMethod jwt.SigningMethod
	issuer        string
	audience      []string
	clock         clockwork.Clock
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(config JWTConfig, clock clockwork.Clock) (*JWTValidator, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	validator := &JWTValidator{
		issuer:   config.Issuer,
		audience: config.Audience,
		clock:    clock,
	}

	switch config.SigningMethod {
	case "RS256":
		validator.signingMethod = jwt.SigningMethodRS256
		if config.PublicKey == "" {
			return nil, errors.New("public key required for RS256")
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(config.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		validator.publicKey = key
	case "HS256", "":
		validator.signingMethod = jwt.SigningMethodHS256
		if config.SecretKey == "" {
			return nil, errors.New("secret key required for HS256")
		}
		validator.secretKey = []byte(config.SecretKey)
	default:
		return nil, fmt.Errorf("unsupported signing method: %s", config.SigningMethod)
	}

	return validator, nil
}

// ValidateToken validates a JWT token and returns the claims
func (v *JWTValidator) ValidateToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithValidMethods([]string{v.signingMethod.Alg()}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		switch v.signingMethod {
		case jwt.SigningMethodRS256:
			return v.publicKey, nil
		default:
			return v.secretKey, nil
		}
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidClaims)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if len(v.audience) > 0 && !hasAudience(claims.Audience, v.audience) {
		return nil, fmt.Errorf("%w: invalid audience", ErrInvalidClaims)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing user ID", ErrInvalidClaims)
	}

	return claims, nil
}

// Authenticate validates the token and resolves the viewer in one step
func (v *JWTValidator) Authenticate(tokenString string) (*entities.Viewer, error) {
	claims, err := v.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return claims.Viewer()
}

// JWTGenerator issues dashboard tokens. The LMS normally does this; the
// generator exists for the CLI and for tests.
type JWTGenerator struct {
	secretKey  []byte
	issuer     string
	audience   []string
	expiryTime time.Duration
	clock      clockwork.Clock
}

// NewJWTGenerator creates an HS256 generator
func NewJWTGenerator(secret, issuer string, audience []string, expiry time.Duration, clock clockwork.Clock) (*JWTGenerator, error) {
	if secret == "" {
		return nil, errors.New("secret key required for HS256")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JWTGenerator{
		secretKey:  []byte(secret),
		issuer:     issuer,
		audience:   audience,
		expiryTime: expiry,
		clock:      clock,
	}, nil
}

// GenerateToken signs a token for the viewer
func (g *JWTGenerator) GenerateToken(viewer entities.Viewer) (string, error) {
	now := g.clock.Now()
	claims := &Claims{
		Role:        viewer.Role.String(),
		BranchID:    viewer.BranchID,
		BusinessIDs: viewer.BusinessIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   strconv.FormatInt(viewer.UserID, 10),
			Audience:  g.audience,
			ExpiresAt: jwt.NewNumericDate(now.Add(g.expiryTime)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secretKey)
}

type contextKey string

const viewerContextKey contextKey = "viewer"

// ViewerFromContext extracts the authenticated viewer
func ViewerFromContext(ctx context.Context) (*entities.Viewer, bool) {
	viewer, ok := ctx.Value(viewerContextKey).(*entities.Viewer)
	return viewer, ok && viewer != nil
}

// WithViewer adds the viewer to context
func WithViewer(ctx context.Context, viewer *entities.Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey, viewer)
}

func hasAudience(have jwt.ClaimStrings, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
