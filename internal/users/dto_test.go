package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastsns/sns-backend/pkg/security"
)

func TestNewCreateUserDTOHashesPassword(t *testing.T) {
	dto, err := NewCreateUserDTO("alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", dto.UserName)
	assert.NotEqual(t, "s3cret", dto.PasswordHash)

	ok, err := security.VerifyPassword("s3cret", dto.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewCreateUserDTORejectsEmptyPassword(t *testing.T) {
	_, err := NewCreateUserDTO("alice", "")
	require.Error(t, err)
}
