package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/tandemlabs/tandem/internal/api/v1"
	"github.com/tandemlabs/tandem/internal/auth"
	"github.com/tandemlabs/tandem/internal/config"
	"github.com/tandemlabs/tandem/internal/domain"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:     strings.Repeat("s", 32),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// ---------------------------------------------------------------------------
// POST /auth/register
// ---------------------------------------------------------------------------

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := newMockDataStore()
		var created *domain.User
		store.users.createFunc = func(_ context.Context, u *domain.User) error {
			created = u
			return nil
		}
		v1.RegisterAuthRoutes(api, store, testJWTConfig())

		resp := api.Post("/auth/register", map[string]any{
			"email":    "Alice@Example.com",
			"name":     "Alice",
			"password": "correct horse",
		})

		require.Equal(t, http.StatusCreated, resp.Code)
		require.NotNil(t, created)
		assert.Equal(t, "alice@example.com", created.Email, "email is normalized")
		assert.Equal(t, "member", created.Role)
		assert.NotEqual(t, "correct horse", created.PasswordHash, "password is stored hashed")
		assert.True(t, auth.VerifyPassword(created.PasswordHash, "correct horse"))

		var out struct {
			tokenPair
			User v1.UserBody `json:"user"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		assert.Equal(t, created.ID, out.User.ID)

		claims, err := auth.ValidateToken(testJWTConfig().Secret, out.AccessToken)
		require.NoError(t, err)
		assert.False(t, claims.IsRefresh())
	})

	t.Run("duplicate_email", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := newMockDataStore()
		store.users.getByEmailFunc = func(_ context.Context, _ string) (*domain.User, error) {
			return &domain.User{ID: uuid.New()}, nil
		}
		createCalled := false
		store.users.createFunc = func(_ context.Context, _ *domain.User) error {
			createCalled = true
			return nil
		}
		v1.RegisterAuthRoutes(api, store, testJWTConfig())

		resp := api.Post("/auth/register", map[string]any{
			"email":    "alice@example.com",
			"name":     "Alice",
			"password": "correct horse",
		})

		assert.Equal(t, http.StatusConflict, resp.Code)
		assert.False(t, createCalled)
	})

	t.Run("short_password", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, newMockDataStore(), testJWTConfig())

		resp := api.Post("/auth/register", map[string]any{
			"email":    "alice@example.com",
			"name":     "Alice",
			"password": "short",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// POST /auth/login
// ---------------------------------------------------------------------------

func loginFixture(t *testing.T, password string) *domain.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return &domain.User{
		ID:           uuid.New(),
		Email:        "alice@example.com",
		Name:         "Alice",
		Role:         "member",
		PasswordHash: hash,
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		user := loginFixture(t, "correct horse")
		_, api := humatest.New(t)
		store := newMockDataStore()
		store.users.getByEmailFunc = func(_ context.Context, email string) (*domain.User, error) {
			assert.Equal(t, "alice@example.com", email)
			return user, nil
		}
		v1.RegisterAuthRoutes(api, store, testJWTConfig())

		resp := api.Post("/auth/login", map[string]any{
			"email":    "alice@example.com",
			"password": "correct horse",
		})

		require.Equal(t, http.StatusOK, resp.Code)
		var out struct {
			tokenPair
			User v1.UserBody `json:"user"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		assert.Equal(t, user.ID, out.User.ID)
		assert.NotEmpty(t, out.AccessToken)

		claims, err := auth.ValidateToken(testJWTConfig().Secret, out.RefreshToken)
		require.NoError(t, err)
		assert.True(t, claims.IsRefresh())
	})

	t.Run("wrong_password", func(t *testing.T) {
		t.Parallel()

		user := loginFixture(t, "correct horse")
		_, api := humatest.New(t)
		store := newMockDataStore()
		store.users.getByEmailFunc = func(_ context.Context, _ string) (*domain.User, error) {
			return user, nil
		}
		v1.RegisterAuthRoutes(api, store, testJWTConfig())

		resp := api.Post("/auth/login", map[string]any{
			"email":    "alice@example.com",
			"password": "battery staple",
		})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("unknown_email", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, newMockDataStore(), testJWTConfig())

		resp := api.Post("/auth/login", map[string]any{
			"email":    "nobody@example.com",
			"password": "whatever!",
		})

		// Indistinguishable from a wrong password.
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// POST /auth/refresh
// ---------------------------------------------------------------------------

func TestRefresh(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		user := loginFixture(t, "correct horse")
		refresh, err := auth.IssueRefreshToken(cfg.Secret, user.ID, user.Name, user.Role, cfg.RefreshTTL)
		require.NoError(t, err)

		_, api := humatest.New(t)
		store := newMockDataStore()
		store.users.getByIDFunc = func(_ context.Context, id uuid.UUID) (*domain.User, error) {
			assert.Equal(t, user.ID, id)
			return user, nil
		}
		v1.RegisterAuthRoutes(api, store, cfg)

		resp := api.Post("/auth/refresh", map[string]any{"refreshToken": refresh})

		require.Equal(t, http.StatusOK, resp.Code)
		var out tokenPair
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))

		claims, err := auth.ValidateToken(cfg.Secret, out.AccessToken)
		require.NoError(t, err)
		assert.False(t, claims.IsRefresh())
		assert.Equal(t, user.ID.String(), claims.UserID)
	})

	t.Run("access_token_rejected", func(t *testing.T) {
		t.Parallel()

		access, err := auth.IssueAccessToken(cfg.Secret, uuid.New(), "Alice", "member", cfg.AccessTTL)
		require.NoError(t, err)

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, newMockDataStore(), cfg)

		resp := api.Post("/auth/refresh", map[string]any{"refreshToken": access})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("deleted_user", func(t *testing.T) {
		t.Parallel()

		refresh, err := auth.IssueRefreshToken(cfg.Secret, uuid.New(), "Ghost", "member", cfg.RefreshTTL)
		require.NoError(t, err)

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, newMockDataStore(), cfg)

		resp := api.Post("/auth/refresh", map[string]any{"refreshToken": refresh})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("garbage_token", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAuthRoutes(api, newMockDataStore(), cfg)

		resp := api.Post("/auth/refresh", map[string]any{"refreshToken": "not-a-jwt"})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}
