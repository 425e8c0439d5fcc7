package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/fastsns/sns-backend/api/responses"
	"github.com/fastsns/sns-backend/api/validators"
	"github.com/fastsns/sns-backend/internal/users"
	"github.com/fastsns/sns-backend/pkg/auth"
	"github.com/fastsns/sns-backend/pkg/config"
	"github.com/fastsns/sns-backend/pkg/db"
	"github.com/fastsns/sns-backend/pkg/db/models"
	pkgerrors "github.com/fastsns/sns-backend/pkg/errors"
	"github.com/fastsns/sns-backend/pkg/logger"
	"github.com/fastsns/sns-backend/pkg/security"
)

// UsersStore is the slice of the users repository the auth endpoints need.
// The cache-fronted repository satisfies it so logins prime the user cache.
type UsersStore interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByUserName(ctx context.Context, userName string) (*models.User, error)
}

type registerUserRequest struct {
	UserName string `json:"user_name" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	UserName string `json:"user_name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string         `json:"token"`
	User  *users.UserDTO `json:"user"`
}

// RegisterUser onboards a new user and returns their first access token.
func RegisterUser(repo UsersStore, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerUserRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := users.NewCreateUserDTO(body.UserName, body.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid password"))
			return
		}

		created, err := repo.Create(r.Context(), dto)
		if err != nil {
			if db.IsUniqueViolation(err, "user_name") {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "user name already taken"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user"))
			return
		}

		token, err := auth.MintAccessToken(jwtCfg, time.Now(), auth.AccessTokenPayload{
			UserID:   created.ID,
			UserName: created.UserName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, loginResponse{
			Token: token,
			User:  users.FromModel(created),
		})
	}
}

// LoginUser verifies credentials and returns an access token for the alarm
// endpoints, the SSE subscribe included.
func LoginUser(repo UsersStore, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := repo.FindByUserName(r.Context(), body.UserName)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user"))
			return
		}

		ok, err := security.VerifyPassword(body.Password, user.PasswordHash)
		if err != nil || !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials"))
			return
		}

		token, err := auth.MintAccessToken(jwtCfg, time.Now(), auth.AccessTokenPayload{
			UserID:   user.ID,
			UserName: user.UserName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token"))
			return
		}

		responses.WriteSuccess(w, loginResponse{
			Token: token,
			User:  users.FromModel(user),
		})
	}
}
