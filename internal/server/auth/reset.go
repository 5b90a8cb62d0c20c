package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

const ResetPurpose = "password_reset"

// ResetClaims carries the user id in Subject and a fingerprint of the password
// hash at issue time. Once the password changes the fingerprint no longer
// matches, so a token works at most once.
type ResetClaims struct {
	jwt.RegisteredClaims
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"pwf"`
}

// PasswordFingerprint is a keyed digest of a password hash. The hash itself
// never leaves the server.
func PasswordFingerprint(passwordHash string, secretKey []byte) string {
	m := hmac.New(sha256.New, secretKey)
	m.Write([]byte(passwordHash))
	return hex.EncodeToString(m.Sum(nil)[:16])
}

func IssueResetToken(user *models.User, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ResetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Purpose:     ResetPurpose,
		Fingerprint: PasswordFingerprint(user.PasswordHash, secretKey),
	})
	return token.SignedString(secretKey)
}

// ParseResetToken verifies signature, expiry and purpose and returns the
// claims. The caller still has to compare the fingerprint against the
// user's current hash with FingerprintMatches.
func ParseResetToken(tokenString string, secretKey []byte) (int64, *ResetClaims, error) {
	claims := &ResetClaims{}
	if err := parse(tokenString, claims, secretKey); err != nil {
		return 0, nil, err
	}
	if claims.Purpose != ResetPurpose {
		return 0, nil, common.ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, nil, common.ErrInvalidToken
	}
	return userID, claims, nil
}

func (c *ResetClaims) FingerprintMatches(user *models.User, secretKey []byte) bool {
	want := PasswordFingerprint(user.PasswordHash, secretKey)
	return hmac.Equal([]byte(want), []byte(c.Fingerprint))
}
