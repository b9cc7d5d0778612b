package request

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLoginLogsMaskedPassword(t *testing.T) {
	buf := bytes.Buffer{}
	logger := zerolog.New(&buf)
	loginReq := Login{Email: "ada@example.com", Password: "hunter2"}

	logger.Info().Object("login", loginReq).Msg("logging in")

	assert.Contains(t, buf.String(), "***")
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestLoginMarshalsRealPassword(t *testing.T) {
	loginReq := Login{Email: "ada@example.com", Password: "hunter2"}

	raw, err := json.Marshal(loginReq)

	assert.NoError(t, err)
	assert.JSONEq(t, `{"email":"ada@example.com","password":"hunter2"}`, string(raw))
}
