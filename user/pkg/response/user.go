package response

// Auth is what login and register return: the bearer token plus the user's
// display fields. The refresh token is stored but never rotated client side.
type Auth struct {
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// User is the profile shape behind Authentication/user.
type User struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}
