package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/PIYUSH-GIRI23/zipp-clip/core"
	"github.com/PIYUSH-GIRI23/zipp-clip/ports"
)

const (
	// DefaultIssuer and DefaultAudience are stamped into every token
	// and required back at parse time.
	DefaultIssuer   = "zipp-auth"
	DefaultAudience = "zipp-users"

	// DefaultAccessWindow is the access token validity for a normal login.
	DefaultAccessWindow = 7 * 24 * time.Hour

	// DefaultExtendedAccessWindow is the access token validity under
	// the remember-me policy.
	DefaultExtendedAccessWindow = 30 * 24 * time.Hour

	// DefaultRefreshWindow is the refresh token validity.
	DefaultRefreshWindow = 90 * 24 * time.Hour
)

// Config holds the signing material and token windows. It is built
// once at process start and passed in explicitly; the codec never
// reads ambient process state at call time.
type Config struct {
	Secret               []byte
	Issuer               string
	Audience             string
	AccessWindow         time.Duration
	ExtendedAccessWindow time.Duration
	RefreshWindow        time.Duration
}

// JWTCodec implements ports.Codec with HS256-signed JWTs.
type JWTCodec struct {
	cfg Config
}

// NewJWTCodec validates the configuration and fills unset windows with
// the defaults. A missing secret is a construction error; callers treat
// it as fatal at startup rather than a per-request condition.
func NewJWTCodec(cfg Config) (*JWTCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.AccessWindow <= 0 {
		cfg.AccessWindow = DefaultAccessWindow
	}
	if cfg.ExtendedAccessWindow <= 0 {
		cfg.ExtendedAccessWindow = DefaultExtendedAccessWindow
	}
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = DefaultRefreshWindow
	}
	return &JWTCodec{cfg: cfg}, nil
}

var _ ports.Codec = (*JWTCodec)(nil)

// Mint produces a signed token for the subject. The window is taken as
// given, negative included, so callers can mint already-expired tokens
// when exercising the expiry path.
func (j *JWTCodec) Mint(subject string, kind core.TokenKind, window time.Duration) (string, error) {
	if subject == "" {
		return "", core.ErrInvalidSubject
	}

	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    j.cfg.Issuer,
			Audience:  jwt.ClaimStrings{j.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(window)),
			ID:        uuid.New().String(),
		},
		Kind: string(kind),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// MintPair mints the access/refresh pair for a login or renewal.
func (j *JWTCodec) MintPair(subject string, rememberMe bool) (core.TokenPair, error) {
	accessWindow := j.cfg.AccessWindow
	if rememberMe {
		accessWindow = j.cfg.ExtendedAccessWindow
	}

	access, err := j.Mint(subject, core.KindAccess, accessWindow)
	if err != nil {
		return core.TokenPair{}, err
	}
	refresh, err := j.Mint(subject, core.KindRefresh, j.cfg.RefreshWindow)
	if err != nil {
		return core.TokenPair{}, err
	}

	return core.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    windowLabel(accessWindow),
	}, nil
}

// MintRefresh mints a lone refresh token for rotation.
func (j *JWTCodec) MintRefresh(subject string) (string, string, error) {
	refresh, err := j.Mint(subject, core.KindRefresh, j.cfg.RefreshWindow)
	if err != nil {
		return "", "", err
	}
	return refresh, windowLabel(j.cfg.RefreshWindow), nil
}

// Parse verifies signature, issuer, and audience and returns the
// decoded claims. The jwt library's error shapes are mapped to the
// closed core set here, once, so no caller branches on library errors.
func (j *JWTCodec) Parse(tokenStr string) (core.TokenClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.cfg.Issuer),
		jwt.WithAudience(j.cfg.Audience),
	)

	token, err := parser.ParseWithClaims(tokenStr, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return j.cfg.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.TokenClaims{}, core.ErrTokenExpired
		}
		return core.TokenClaims{}, core.ErrTokenMalformed
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return core.TokenClaims{}, core.ErrTokenMalformed
	}
	return claimsToCore(claims), nil
}

// DecodeUnsafe extracts claims without verifying signature or expiry.
// Returns nil when the token cannot be decoded at all. Only used to
// recover a subject for targeted history cleanup; never authorizes.
func (j *JWTCodec) DecodeUnsafe(tokenStr string) *core.TokenClaims {
	claims := &sessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil
	}
	decoded := claimsToCore(claims)
	return &decoded
}

func claimsToCore(claims *sessionClaims) core.TokenClaims {
	out := core.TokenClaims{
		Subject: claims.Subject,
		Kind:    core.TokenKind(claims.Kind),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out
}

// windowLabel renders a validity window the way clients display it:
// "7 days", "30 days", "90 days".
func windowLabel(window time.Duration) string {
	days := int(window.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
