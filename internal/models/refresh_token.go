package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RefreshToken is an issued refresh token. Only the SHA-256 digest of the
// token is stored; a rotation revokes the previous row.
type RefreshToken struct {
	BaseModel
	UserID    string    `gorm:"size:36;index;not null" json:"userId"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
	IsRevoked bool      `gorm:"not null" json:"isRevoked"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// HashToken returns the stored form of a raw refresh token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Usable reports whether the token can still be exchanged.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}
