package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Auth path names, recorded on the resolved identity and forwarded as
// checkout session metadata.
const (
	PathCookie = "cookie"
	PathBearer = "bearer"
)

// ErrNoCredential means a strategy found nothing to verify. The chain
// treats it as "try the next strategy", not as a rejection.
var ErrNoCredential = errors.New("no credential present")

// Identity is the authenticated caller resolved for one request.
type Identity struct {
	UserID string
	Email  string
	Path   string
}

// Resolver resolves the current user from one kind of request credential.
type Resolver interface {
	Name() string
	Resolve(r *http.Request) (*Identity, error)
}

// CookieResolver verifies the identity provider's session cookie.
type CookieResolver struct {
	verifier *Verifier
	cookie   string
}

func NewCookieResolver(verifier *Verifier, cookieName string) *CookieResolver {
	return &CookieResolver{verifier: verifier, cookie: cookieName}
}

func (c *CookieResolver) Name() string { return PathCookie }

func (c *CookieResolver) Resolve(r *http.Request) (*Identity, error) {
	ck, err := r.Cookie(c.cookie)
	if err != nil || ck.Value == "" {
		return nil, ErrNoCredential
	}
	claims, err := c.verifier.Verify(ck.Value)
	if err != nil {
		return nil, fmt.Errorf("session cookie: %w", err)
	}
	return identityFrom(claims, c.Name())
}

// BearerResolver verifies an Authorization: Bearer token.
type BearerResolver struct {
	verifier *Verifier
}

func NewBearerResolver(verifier *Verifier) *BearerResolver {
	return &BearerResolver{verifier: verifier}
}

func (b *BearerResolver) Name() string { return PathBearer }

func (b *BearerResolver) Resolve(r *http.Request) (*Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrNoCredential
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errors.New("invalid authorization header")
	}
	claims, err := b.verifier.Verify(parts[1])
	if err != nil {
		return nil, fmt.Errorf("bearer token: %w", err)
	}
	return identityFrom(claims, b.Name())
}

// Chain tries its resolvers in order and short-circuits on the first
// success. A strategy failure falls through to the next strategy, so a
// bad cookie does not block a valid bearer token.
type Chain struct {
	resolvers []Resolver
}

func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

// Resolve returns the first identity any strategy yields. When nothing
// resolves, the most specific failure is returned: the last verification
// error if any strategy saw a credential, ErrNoCredential otherwise.
func (c *Chain) Resolve(r *http.Request) (*Identity, error) {
	err := ErrNoCredential
	for _, res := range c.resolvers {
		identity, resErr := res.Resolve(r)
		if resErr == nil {
			return identity, nil
		}
		if !errors.Is(resErr, ErrNoCredential) {
			err = resErr
		}
	}
	return nil, err
}

func identityFrom(claims *Claims, path string) (*Identity, error) {
	if claims.Subject == "" {
		return nil, errors.New("token missing subject claim")
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email, Path: path}, nil
}
