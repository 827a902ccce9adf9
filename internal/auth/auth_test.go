package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/booknest/booknest-api/internal/identity"
	"github.com/booknest/booknest-api/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.User{}))
	return NewService("test-secret", identity.NewDatabase(db))
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Register("Asha", "asha@test.booknest", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.Contains(t, token.User.UserID, "USR_")
	assert.NotEqual(t, "hunter22", token.User.PasswordHash, "password must never be stored in clear")

	login, err := svc.Login("asha@test.booknest", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, token.User.UserID, login.User.UserID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register("Asha", "asha@test.booknest", "hunter22")
	require.NoError(t, err)

	_, err = svc.Register("Other", "asha@test.booknest", "different")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register("Asha", "asha@test.booknest", "hunter22")
	require.NoError(t, err)

	_, err = svc.Login("asha@test.booknest", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Login("nobody@test.booknest", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Register("Asha", "asha@test.booknest", "hunter22")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, token.User.UserID, claims.UserID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := newTestService(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "USR_forged",
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(forged)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := newTestService(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
		UserID: "USR_expired",
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(expired)
	assert.Error(t, err)
}
