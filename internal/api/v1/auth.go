package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/tandemlabs/tandem/internal/auth"
	"github.com/tandemlabs/tandem/internal/config"
	"github.com/tandemlabs/tandem/internal/domain"
)

// UserBody is the public view of a user returned by the auth endpoints.
type UserBody struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
}

func userBody(u *domain.User) UserBody {
	return UserBody{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, AvatarURL: u.AvatarURL}
}

type RegisterInput struct {
	Body struct {
		Email    string `json:"email" format:"email"`
		Name     string `json:"name" minLength:"1"`
		Password string `json:"password" minLength:"8"`
	}
}

type RegisterOutput struct {
	Status int
	Body   struct {
		User         UserBody `json:"user"`
		AccessToken  string   `json:"accessToken"`
		RefreshToken string   `json:"refreshToken"`
	}
}

type LoginInput struct {
	Body struct {
		Email    string `json:"email" format:"email"`
		Password string `json:"password" minLength:"1"`
	}
}

type LoginOutput struct {
	Body struct {
		User         UserBody `json:"user"`
		AccessToken  string   `json:"accessToken"`
		RefreshToken string   `json:"refreshToken"`
	}
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refreshToken" minLength:"1"`
	}
}

type RefreshOutput struct {
	Body struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
}

// RegisterAuthRoutes serves registration, login, and token refresh. These are
// the only REST routes outside the bearer-auth group; the tokens they mint
// authenticate every other surface, websocket included.
func RegisterAuthRoutes(api huma.API, store DataStore, jwtCfg config.JWTConfig) {
	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Create an account",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *RegisterInput) (*RegisterOutput, error) {
		email := strings.ToLower(strings.TrimSpace(input.Body.Email))

		if _, err := store.Users().GetByEmail(ctx, email); err == nil {
			return nil, huma.Error409Conflict("email already registered")
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error500InternalServerError("failed to check email", err)
		}

		hash, err := auth.HashPassword(input.Body.Password)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to hash password", err)
		}

		now := time.Now()
		user := &domain.User{
			ID:           uuid.New(),
			Email:        email,
			Name:         input.Body.Name,
			Role:         "member",
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := store.Users().Create(ctx, user); err != nil {
			return nil, huma.Error500InternalServerError("failed to create user", err)
		}

		out := &RegisterOutput{Status: http.StatusCreated}
		out.Body.User = userBody(user)
		if out.Body.AccessToken, out.Body.RefreshToken, err = issueTokens(user, jwtCfg); err != nil {
			return nil, huma.Error500InternalServerError("failed to issue tokens", err)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Exchange credentials for tokens",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
		email := strings.ToLower(strings.TrimSpace(input.Body.Email))

		user, err := store.Users().GetByEmail(ctx, email)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error401Unauthorized("invalid credentials")
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load user", err)
		}
		if !auth.VerifyPassword(user.PasswordHash, input.Body.Password) {
			return nil, huma.Error401Unauthorized("invalid credentials")
		}

		out := &LoginOutput{}
		out.Body.User = userBody(user)
		if out.Body.AccessToken, out.Body.RefreshToken, err = issueTokens(user, jwtCfg); err != nil {
			return nil, huma.Error500InternalServerError("failed to issue tokens", err)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		Summary:     "Rotate a refresh token",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
		claims, err := auth.ValidateToken(jwtCfg.Secret, input.Body.RefreshToken)
		if err != nil || !claims.IsRefresh() {
			return nil, huma.Error401Unauthorized("invalid refresh token")
		}
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return nil, huma.Error401Unauthorized("invalid refresh token")
		}

		// Re-read the user so revoked accounts and role changes take effect
		// on rotation.
		user, err := store.Users().GetByID(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error401Unauthorized("invalid refresh token")
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load user", err)
		}

		out := &RefreshOutput{}
		if out.Body.AccessToken, out.Body.RefreshToken, err = issueTokens(user, jwtCfg); err != nil {
			return nil, huma.Error500InternalServerError("failed to issue tokens", err)
		}
		return out, nil
	})
}

func issueTokens(u *domain.User, cfg config.JWTConfig) (access, refresh string, err error) {
	access, err = auth.IssueAccessToken(cfg.Secret, u.ID, u.Name, u.Role, cfg.AccessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = auth.IssueRefreshToken(cfg.Secret, u.ID, u.Name, u.Role, cfg.RefreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
