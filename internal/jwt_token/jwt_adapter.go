package jwttoken

import (
	authmw "docsign/pkg/platform/middleware/auth"
)

// Validator exposes a JWTService to the auth middleware, which only knows
// the claim subset it turns into a principal.
type Validator struct {
	service *JWTService
}

var _ authmw.JWTValidator = (*Validator)(nil)

func NewValidator(service *JWTService) *Validator {
	return &Validator{service: service}
}

func (v *Validator) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		Roles:          claims.Roles,
		JTI:            claims.ID,
	}, nil
}
