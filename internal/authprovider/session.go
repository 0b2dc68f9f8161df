package authprovider

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

// Principal is the stable identity the provider asserts for a valid
// session. It carries no application-level profile.
type Principal struct {
	ID    string
	Email string
}

var ErrInvalidSession = errors.New("invalid or expired session")

// SessionVerifier validates provider-signed access tokens locally. The
// route guard uses it so the per-request session check never touches the
// network or the database.
type SessionVerifier struct {
	secret []byte
}

func NewSessionVerifier(jwtSecret string) *SessionVerifier {
	return &SessionVerifier{secret: []byte(jwtSecret)}
}

func (v *SessionVerifier) Verify(accessToken string) (Principal, error) {
	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !claims.VerifyExpiresAt(time.Now().Unix(), true) {
		return Principal{}, ErrInvalidSession
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Principal{}, ErrInvalidSession
	}
	email, _ := claims["email"].(string)

	return Principal{ID: sub, Email: email}, nil
}
