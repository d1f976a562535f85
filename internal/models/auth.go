package models

import "github.com/golang-jwt/jwt/v5"

// ServiceClaims are the JWT claims carried by service-to-service tokens.
// The calling login service presents one of these as a bearer token.
type ServiceClaims struct {
	ServiceName string `json:"svc"`
	jwt.RegisteredClaims
}
