// Package auth decodes the stored id_token into the current user's identity
// and mints tokens for the mock backend.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"taskbin/internal/config"
)

var (
	// ErrNoCredential means no usable id_token is stored.
	ErrNoCredential = errors.New("not logged in")

	// ErrExpired means the stored id_token has expired.
	ErrExpired = errors.New("credential expired")
)

// Identity is the authenticated user.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Token  string // raw id_token, sent as the bearer credential
}

// Decoder turns an id_token into an Identity. Without a JWKS the claims are
// read unverified and the backend remains the authority.
type Decoder struct {
	jwks   *keyfunc.JWKS
	parser *jwt.Parser
	now    func() time.Time
}

// NewDecoder returns a Decoder. A non-empty jwksURL enables RS256 signature
// verification against the provider's key set.
func NewDecoder(jwksURL string) (*Decoder, error) {
	d := &Decoder{now: time.Now}
	if jwksURL == "" {
		d.parser = jwt.NewParser()
		return d, nil
	}
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	d.jwks = jwks
	d.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	return d, nil
}

// Close stops the JWKS background refresh, if any.
func (d *Decoder) Close() {
	if d.jwks != nil {
		d.jwks.EndBackground()
	}
}

// Decode parses token and extracts the identity claims.
func (d *Decoder) Decode(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoCredential
	}

	claims := jwt.MapClaims{}
	var err error
	if d.jwks != nil {
		_, err = d.parser.ParseWithClaims(token, claims, d.jwks.Keyfunc)
	} else {
		_, _, err = d.parser.ParseUnverified(token, claims)
	}
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return Identity{}, ErrExpired
		}
		return Identity{}, fmt.Errorf("invalid credential: %w", err)
	}
	if !claims.VerifyExpiresAt(d.now().Unix(), false) {
		return Identity{}, ErrExpired
	}

	id := identityFromClaims(claims)
	if id.UserID == "" {
		return Identity{}, errors.New("invalid credential: no subject or email")
	}
	id.Token = token
	return id, nil
}

func identityFromClaims(claims jwt.MapClaims) Identity {
	str := func(key string) string {
		s, _ := claims[key].(string)
		return s
	}
	id := Identity{
		UserID: str("sub"),
		Email:  str("email"),
		Name:   str("name"),
	}
	if id.UserID == "" {
		id.UserID = id.Email
	}
	if id.Name == "" {
		id.Name = id.Email
	}
	return id
}

// Load reads and decodes the stored credential. A credential that cannot be
// decoded is removed so the next login starts clean.
func Load(cfg *config.Config, d *Decoder) (Identity, error) {
	if !cfg.HasCredential() {
		return Identity{}, ErrNoCredential
	}
	token, err := cfg.ReadCredential()
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read credential: %w", err)
	}
	id, err := d.Decode(token)
	if err != nil {
		if errors.Is(err, ErrExpired) {
			return Identity{}, err
		}
		_ = cfg.RemoveCredential()
		return Identity{}, fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	return id, nil
}

// MockUserID derives a stable user id from an email address.
func MockUserID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
}

// MintMock signs an HS256 id_token accepted by the mock backend.
func MintMock(secret, email, name string, ttl time.Duration) (string, error) {
	if email == "" {
		return "", errors.New("email required")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   MockUserID(email),
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if name != "" {
		claims["name"] = name
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyMock checks an HS256 token minted with secret and returns its identity.
func VerifyMock(secret, token string) (Identity, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Identity{}, err
	}
	id := identityFromClaims(claims)
	if id.UserID == "" {
		return Identity{}, errors.New("missing sub")
	}
	id.Token = token
	return id, nil
}
