package dto

import "strings"

// RequestDeletionRequest checks presence and size only. A malformed address
// must get the same 200 as an unknown one.
type RequestDeletionRequest struct {
	Email string `json:"email" validate:"required,max=320"`
}

func (r *RequestDeletionRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return validateStruct(r)
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type ProfileResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
