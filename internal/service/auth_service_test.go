package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/exstem-proctor/internal/config"
)

func testAuth(secret string) *AuthService {
	return NewAuthService(&config.Config{JWTSecret: secret, JWTExpiry: time.Hour})
}

func TestStudentTokenRoundTrip(t *testing.T) {
	auth := testAuth("s3cret")
	token, err := auth.GenerateStudentToken("u-42", "General Knowledge Championship", "Asha")
	if err != nil {
		t.Fatalf("GenerateStudentToken: %v", err)
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "u-42" || claims.ExamName != "General Knowledge Championship" || claims.FullName != "Asha" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Subject != "u-42" || claims.ID == "" {
		t.Errorf("registered claims = %+v", claims.RegisteredClaims)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	auth := testAuth("s3cret")
	good, _ := auth.GenerateStudentToken("u-1", "GK", "")

	expired := testAuth("s3cret")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.GenerateStudentToken("u-1", "GK", "")

	nonStudent, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		TokenType:        "admin",
		UserID:           "u-1",
		ExamName:         "GK",
	}).SignedString([]byte("s3cret"))

	tests := []struct {
		name  string
		auth  *AuthService
		token string
		want  error
	}{
		{"wrong secret", testAuth("other"), good, ErrInvalidToken},
		{"expired", auth, old, ErrInvalidToken},
		{"garbage", auth, "not.a.token", ErrInvalidToken},
		{"admin token", auth, nonStudent, ErrNotStudent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.auth.ValidateToken(tt.token); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateRequiresIdentity(t *testing.T) {
	if _, err := testAuth("s").GenerateStudentToken("", "GK", ""); !errors.Is(err, ErrMissingIdentity) {
		t.Errorf("err = %v", err)
	}
}
