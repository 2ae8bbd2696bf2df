package authjwt

import (
	"errors"
	"testing"
	"time"

	authdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/auth/domain"
)

func TestProvider_GenerateAndValidateToken(t *testing.T) {
	p := NewProvider("test-secret-at-least-32-chars-long!!")

	tests := []struct {
		name        string
		ttl         time.Duration
		provider    Provider
		token       string
		expectedErr error
	}{
		{name: "success", ttl: time.Hour, provider: p},
		{name: "expired token", ttl: -time.Hour, provider: p, expectedErr: ErrExpiredToken},
		{name: "invalid signature", ttl: time.Hour, provider: NewProvider("wrong-secret"), expectedErr: ErrInvalidSignature},
		{name: "malformed token", token: "not.a.jwt", provider: p, expectedErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.token
			if token == "" {
				var err error
				token, err = p.GenerateToken("prof", authdomain.RoleInstructor, tt.ttl)
				if err != nil {
					t.Fatalf("GenerateToken: %v", err)
				}
			}

			claims, err := tt.provider.ValidateToken(token)
			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected %v, got %v", tt.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.Subject != "prof" || claims.Role != authdomain.RoleInstructor {
				t.Errorf("unexpected claims %+v", claims)
			}
			if !claims.CanFinalize() {
				t.Errorf("instructor should be able to finalize")
			}
		})
	}
}
