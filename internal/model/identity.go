package model

import "unicode"

// Identity is the signed-in user as supplied by the auth gate.
type Identity struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Initial returns the avatar fallback letter for the identity.
func (i *Identity) Initial() string {
	if i == nil {
		return "U"
	}
	for _, r := range i.Name {
		return string(unicode.ToUpper(r))
	}
	return "U"
}

// SignInRequest is the request to sign in.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the request to register a new account.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// AuthResponse is returned after a successful sign in or sign up.
type AuthResponse struct {
	User  Identity `json:"user"`
	Token string   `json:"token"`
}
