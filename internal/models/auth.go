package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the payload of an issued identity token.
// Beyond the registered claims it carries only the subject id and username.
type TokenClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
