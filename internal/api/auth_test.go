package api

import (
	"context"
	"testing"
	"time"

	"salon/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestAuthenticator(t *testing.T) {
	auth := NewAuthenticator(testAPIConfig().Auth)

	t.Run("APIKey", func(t *testing.T) {
		p, err := auth.Authenticate(testAPIKey, "")
		require.NoError(t, err)
		assert.Equal(t, "key:owner", p.Subject)
		assert.True(t, p.Allows(permWrite))
	})

	t.Run("ReadOnlyKey", func(t *testing.T) {
		p, err := auth.Authenticate(testReadOnlyKey, "")
		require.NoError(t, err)
		assert.True(t, p.Allows(permRead))
		assert.False(t, p.Allows(permWrite))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		_, err := auth.Authenticate("nope", "Bearer "+signToken(t, testJWTSecret, validClaims()))
		assert.ErrorIs(t, err, errInvalidAPIKey)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := auth.Authenticate("", "")
		assert.ErrorIs(t, err, errMissingCredentials)
		_, err = auth.Authenticate("", "Basic abc")
		assert.ErrorIs(t, err, errMissingCredentials)
	})

	t.Run("Token", func(t *testing.T) {
		p, err := auth.Authenticate("", "Bearer "+signToken(t, testJWTSecret, validClaims()))
		require.NoError(t, err)
		assert.Equal(t, "owner", p.Subject)
	})

	t.Run("TokenSubjectFallsBackToEmail", func(t *testing.T) {
		claims := validClaims()
		claims.Subject = ""
		p, err := auth.Authenticate("", "bearer "+signToken(t, testJWTSecret, claims))
		require.NoError(t, err)
		assert.Equal(t, "owner@example.com", p.Subject)
	})

	cases := map[string]func(c *Claims) string{
		"WrongSecret": func(c *Claims) string { return signToken(t, "other", *c) },
		"Expired": func(c *Claims) string {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
			return signToken(t, testJWTSecret, *c)
		},
		"NoExpiry": func(c *Claims) string {
			c.ExpiresAt = nil
			return signToken(t, testJWTSecret, *c)
		},
		"WrongIssuer": func(c *Claims) string {
			c.Issuer = "https://evil.example.com"
			return signToken(t, testJWTSecret, *c)
		},
		"WrongAlgorithm": func(c *Claims) string {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, c).SignedString([]byte(testJWTSecret))
			require.NoError(t, err)
			return token
		},
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			claims := validClaims()
			_, err := auth.Authenticate("", "Bearer "+build(&claims))
			assert.ErrorIs(t, err, errInvalidToken)
		})
	}

	t.Run("NoSecretRejectsTokens", func(t *testing.T) {
		cfg := testAPIConfig().Auth
		cfg.JWT.Secret = ""
		_, err := NewAuthenticator(cfg).Authenticate("", "Bearer "+signToken(t, testJWTSecret, validClaims()))
		assert.ErrorIs(t, err, errInvalidToken)
	})
}

func TestAuthInterceptor(t *testing.T) {
	cfg := testAPIConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 100, Burst: 200}

	interceptor := NewAuthInterceptor(&cfg).Unary()
	handler := func(ctx context.Context, req any) (any, error) {
		p, ok := PrincipalFromContext(ctx)
		if !ok {
			return "anonymous", nil
		}
		return p.Subject, nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/List"}

	t.Run("Success", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", testAPIKey))
		resp, err := interceptor(ctx, "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "key:owner", resp)
	})

	t.Run("BearerToken", func(t *testing.T) {
		md := metadata.Pairs("authorization", "Bearer "+signToken(t, testJWTSecret, validClaims()))
		resp, err := interceptor(metadata.NewIncomingContext(context.Background(), md), "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "owner", resp)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "bad"))
		_, err := interceptor(ctx, "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		cfg := testAPIConfig()
		cfg.Auth.APIKeys = []config.APIClientKey{{Key: "writer", Name: "w", Permissions: []string{permWrite}}}
		icpt := NewAuthInterceptor(&cfg).Unary()
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "writer"))
		_, err := icpt(ctx, "req", info, handler)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("PublicHealthCheck", func(t *testing.T) {
		check := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
		resp, err := interceptor(context.Background(), "req", check, handler)
		assert.NoError(t, err)
		assert.Equal(t, "anonymous", resp)
	})

	t.Run("RateLimit", func(t *testing.T) {
		cfg := testAPIConfig()
		cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}
		icpt := NewAuthInterceptor(&cfg).Unary()
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", testAPIKey))

		_, err := icpt(ctx, "req", info, handler)
		require.NoError(t, err)
		_, err = icpt(ctx, "req", info, handler)
		assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	})
}

func TestChainUnaryInterceptors(t *testing.T) {
	var order []string
	mk := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
			order = append(order, name)
			return next(ctx, req)
		}
	}
	chain := ChainUnaryInterceptors(mk("logging"), mk("auth"))
	resp, err := chain(context.Background(), "req", &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
		order = append(order, "handler")
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, []string{"logging", "auth", "handler"}, order)
}
