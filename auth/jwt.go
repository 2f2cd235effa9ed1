package auth

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"classroom-auction/domain"
)

var ErrUnauthorized = errors.New("unauthorized")

// Roles carried in tokens.
const (
	RoleAuctioneer  = "auctioneer"
	RoleParticipant = "participant"
)

const issuer = "classroom-auction"

// ParseRole accepts the classroom names as aliases.
func ParseRole(v string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case RoleAuctioneer, "teacher", "host":
		return RoleAuctioneer, true
	case RoleParticipant, "student", "":
		return RoleParticipant, true
	}
	return "", false
}

type Claims struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`

	jwt.RegisteredClaims
}

// Audience maps the role onto the observer class events are rendered for.
func (c Claims) Audience() domain.Audience {
	if c.Role == RoleAuctioneer {
		return domain.AudienceAuctioneer
	}
	return domain.AudienceParticipant
}

type JWT struct {
	Secret   []byte
	TokenTTL time.Duration
}

func (j JWT) Sign(claims Claims) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.NotBefore == nil {
		claims.NotBefore = jwt.NewNumericDate(now.Add(-5 * time.Second))
	}
	if claims.ExpiresAt == nil {
		expiresAt = now.Add(j.TokenTTL)
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	} else {
		expiresAt = claims.ExpiresAt.Time
	}
	if claims.Issuer == "" {
		claims.Issuer = issuer
	}
	if claims.Subject == "" {
		claims.Subject = claims.Identity
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}
	return s, expiresAt, nil
}

func (j JWT) Verify(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.Secret, nil
	})
	if err != nil {
		return Claims{}, errors.Wrap(ErrUnauthorized, err.Error())
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || c.Identity == "" {
		return Claims{}, errors.Wrap(ErrUnauthorized, "invalid token")
	}
	if _, ok := ParseRole(c.Role); !ok {
		return Claims{}, errors.Wrap(ErrUnauthorized, "unknown role")
	}
	return *c, nil
}

// Authenticator is the login stub: any identity may join as a participant,
// the auctioneer role needs the shared host password.
type Authenticator struct {
	JWT          JWT
	HostPassword string
}

func (a Authenticator) Login(identity, role, password string) (string, time.Time, Claims, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", time.Time{}, Claims{}, errors.Wrap(ErrUnauthorized, "identity required")
	}
	r, ok := ParseRole(role)
	if !ok {
		return "", time.Time{}, Claims{}, errors.Wrapf(ErrUnauthorized, "unknown role %q", role)
	}
	if r == RoleAuctioneer && a.HostPassword != "" &&
		subtle.ConstantTimeCompare([]byte(password), []byte(a.HostPassword)) != 1 {
		return "", time.Time{}, Claims{}, errors.Wrap(ErrUnauthorized, "wrong host password")
	}
	claims := Claims{Identity: identity, Role: r}
	tok, exp, err := a.JWT.Sign(claims)
	return tok, exp, claims, err
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
