package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"salon/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault = "x-api-key"
	authorizationHeader = "authorization"
	permRead            = "read:dashboard"
	permWrite           = "write:dashboard"
	clientKeyUnknown    = "unknown"
)

var (
	errMissingCredentials = errors.New("missing credentials")
	errInvalidAPIKey      = errors.New("invalid api key")
	errInvalidToken       = errors.New("invalid or expired token")
	errPermissionDenied   = errors.New("permission denied")
)

// Claims are the bearer token claims issued by the identity provider.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Principal is an authenticated dashboard caller.
type Principal struct {
	Subject     string
	// Permissions пустой = полный доступ
	Permissions []string
}

func (p *Principal) Allows(perm string) bool {
	if perm == "" || len(p.Permissions) == 0 {
		return true
	}
	for _, granted := range p.Permissions {
		if strings.TrimSpace(granted) == perm {
			return true
		}
	}
	return false
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller set by the auth middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// Authenticator accepts either a configured API key or an HS256 bearer token.
type Authenticator struct {
	cfg    config.APIAuthConfig
	parser *jwt.Parser
}

func NewAuthenticator(cfg config.APIAuthConfig) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.JWT.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWT.Issuer))
	}
	if cfg.JWT.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.JWT.Audience))
	}
	return &Authenticator{cfg: cfg, parser: jwt.NewParser(opts...)}
}

func (a *Authenticator) Enabled() bool { return a.cfg.Enabled }

func (a *Authenticator) apiKeyHeader() string {
	h := strings.ToLower(strings.TrimSpace(a.cfg.HeaderAPIKey))
	if h == "" {
		return apiKeyHeaderDefault
	}
	return h
}

// Authenticate checks apiKey first and falls back to the Authorization value.
func (a *Authenticator) Authenticate(apiKey, authorization string) (*Principal, error) {
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		return a.checkAPIKey(apiKey)
	}
	token, ok := bearerToken(authorization)
	if !ok {
		return nil, errMissingCredentials
	}
	return a.checkToken(token)
}

func (a *Authenticator) checkAPIKey(apiKey string) (*Principal, error) {
	for _, client := range a.cfg.APIKeys {
		if subtle.ConstantTimeCompare([]byte(client.Key), []byte(apiKey)) == 1 {
			return &Principal{Subject: "key:" + client.Name, Permissions: client.Permissions}, nil
		}
	}
	return nil, errInvalidAPIKey
}

func (a *Authenticator) checkToken(raw string) (*Principal, error) {
	if a.cfg.JWT.Secret == "" {
		return nil, errInvalidToken
	}
	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(a.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	subject := claims.Subject
	if subject == "" {
		subject = claims.Email
	}
	return &Principal{Subject: subject}, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// Middleware guards dashboard routes. Reads need read:dashboard, writes write:dashboard.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		p, err := a.Authenticate(r.Header.Get(a.apiKeyHeader()), r.Header.Get(authorizationHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="dashboard"`)
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if !p.Allows(requiredPermissionHTTP(r)) {
			writeError(w, http.StatusForbidden, errPermissionDenied.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

func requiredPermissionHTTP(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return permRead
	default:
		return permWrite
	}
}

// AuthInterceptor applies the same credentials and per-client limits to gRPC calls.
type AuthInterceptor struct {
	auth    *Authenticator
	limiter *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{
		auth:    NewAuthenticator(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

// publicMethods are reachable without credentials (liveness probes).
var publicMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if a.auth.Enabled() && !publicMethods[info.FullMethod] {
			p, err := a.checkAuth(ctx)
			if err != nil {
				return nil, err
			}
			ctx = withPrincipal(ctx, p)
		}
		if !a.limiter.allow(a.clientKey(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}

		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) checkAuth(ctx context.Context) (*Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	p, err := a.auth.Authenticate(first(md.Get(a.auth.apiKeyHeader())), first(md.Get(authorizationHeader)))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	if !p.Allows(permRead) {
		return nil, status.Error(codes.PermissionDenied, errPermissionDenied.Error())
	}
	return p, nil
}

func (a *AuthInterceptor) clientKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if apiKey := first(md.Get(a.auth.apiKeyHeader())); apiKey != "" {
		return apiKey
	}

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
