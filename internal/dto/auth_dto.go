package dto

import "github.com/google/uuid"

type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type SignInRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

type SignInResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token,omitempty"`
	User         UserDTO `json:"user"`
}

type UserDTO struct {
	Id    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type SignOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type SessionResponse struct {
	IsLoading       bool     `json:"is_loading"`
	IsAuthenticated bool     `json:"is_authenticated"`
	User            *UserDTO `json:"user,omitempty"`
}
