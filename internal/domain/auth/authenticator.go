package auth

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
)

// Authenticator derives a Principal from an incoming request.
type Authenticator interface {
	Authenticate(r *http.Request) (Principal, error)
}

// Mode selects an Authenticator implementation.
type Mode string

const (
	ModeDev Mode = "dev"
	ModeJWT Mode = "jwt"
)

// Config is the startup configuration for New.
type Config struct {
	Mode       Mode
	Production bool
	Secret     string
	DevRole    Role
	DevBarID   string
	DevSubject string
}

// New builds the Authenticator for cfg. The dev bypass is refused in
// production.
func New(cfg Config) (Authenticator, error) {
	switch cfg.Mode {
	case ModeDev:
		if cfg.Production {
			return nil, errors.New("dev auth mode is not allowed in production")
		}
		role := cfg.DevRole
		if role == "" {
			role = RoleAdmin
		}
		subject := cfg.DevSubject
		if subject == "" {
			subject = "dev"
		}
		return &DevBypass{Principal: Principal{Subject: subject, Role: role, BarID: cfg.DevBarID}}, nil
	case ModeJWT, "":
		if cfg.Secret == "" {
			return nil, errors.New("jwt auth mode requires a secret")
		}
		return NewJWTAuthenticator([]byte(cfg.Secret)), nil
	default:
		return nil, errors.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// DevBypass treats every request as the configured principal.
type DevBypass struct {
	Principal Principal
}

// Authenticate implements Authenticator.
func (d *DevBypass) Authenticate(*http.Request) (Principal, error) {
	return d.Principal, nil
}

// JWTAuthenticator validates HS256 bearer tokens signed with a shared secret.
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator returns a JWTAuthenticator for secret.
func NewJWTAuthenticator(secret []byte) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret}
}

// Authenticate implements Authenticator.
func (a *JWTAuthenticator) Authenticate(r *http.Request) (Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Principal{}, ErrUnauthenticated
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return Principal{}, ErrUnauthenticated
	}

	claims, err := ParseToken(a.secret, token)
	if err != nil {
		return Principal{}, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Principal{}, ErrForbidden
	}
	return Principal{
		Subject: claims.Subject,
		Email:   claims.Email,
		Role:    role,
		BarID:   claims.BarID,
	}, nil
}
