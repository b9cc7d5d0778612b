package request

import (
	"github.com/rs/zerolog"
)

type Register struct {
	DisplayName string `validate:"required"       json:"display_name"`
	Email       string `validate:"required,email" json:"email"`
	Password    string `validate:"required,min=8" json:"password"`
}

func (r Register) MarshalZerologObject(e *zerolog.Event) {
	e.Str("email", r.Email).Str("displayName", r.DisplayName).Str("password", "***")
}
