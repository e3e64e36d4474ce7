package models

import (
	jwt "github.com/dgrijalva/jwt-go"
)

// HostClaims はプライベートロビーのホストトークンのクレーム
type HostClaims struct {
	LobbyID string `json:"lobbyID"`
	jwt.StandardClaims
}
