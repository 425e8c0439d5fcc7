package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/fastsns/sns-backend/pkg/db/models"
	"github.com/fastsns/sns-backend/pkg/security"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	UserName     string
	PasswordHash string
}

// NewCreateUserDTO hashes the plaintext password before it ever reaches the
// repo layer.
func NewCreateUserDTO(userName, password string) (CreateUserDTO, error) {
	hash, err := security.HashPassword(password)
	if err != nil {
		return CreateUserDTO{}, err
	}
	return CreateUserDTO{UserName: userName, PasswordHash: hash}, nil
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:        u.ID,
		UserName:  u.UserName,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		UserName:     c.UserName,
		PasswordHash: c.PasswordHash,
	}
}
