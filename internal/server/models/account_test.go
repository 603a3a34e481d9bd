package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountDTO_OmitsSecrets(t *testing.T) {
	a := &Account{
		ID:             "u1",
		Email:          "a@x.com",
		PasswordHash:   "$2a$04$hash",
		ActivationLink: "link-123",
	}

	dto := NewAccountDTO(a)
	assert.Equal(t, AccountDTO{ID: "u1", Email: "a@x.com", IsActivated: false}, dto)

	b, err := json.Marshal(dto)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1","email":"a@x.com","isActivated":false}`, string(b))
	assert.NotContains(t, string(b), "hash")
	assert.NotContains(t, string(b), "link-123")
}
