package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/rockettradeline/backend-market/internal/auth"
	"github.com/rockettradeline/backend-market/internal/common"
	"github.com/rockettradeline/backend-market/internal/store"
)

type fakeUserStore struct {
	byEmail map[string]store.User
	byID    map[uuid.UUID]store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: map[string]store.User{}, byID: map[uuid.UUID]store.User{}}
}

func (f *fakeUserStore) CreateUser(_ context.Context, name, email, passwordHash string, roles []string) (store.User, error) {
	if _, exists := f.byEmail[email]; exists {
		return store.User{}, &pgconn.PgError{Code: "23505"}
	}
	u := store.User{
		ID: uuid.New(), Name: name, Email: email,
		PasswordHash: passwordHash, Roles: roles,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.byEmail[email] = u
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return store.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id uuid.UUID) (store.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return store.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func newAuthService(t *testing.T) (*auth.Service, *fakeUserStore) {
	t.Helper()
	st := newFakeUserStore()
	svc, err := auth.NewService(auth.Config{Store: st, Secret: "test-secret", AccessTokenTTL: time.Hour})
	require.NoError(t, err)
	return svc, st
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService(t)

	user, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, []string{"customer"}, user.Roles)

	result, err := svc.Login(context.Background(), "ADA@example.com", "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.Equal(t, user.ID, result.User.ID)

	subject, roles, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, subject)
	require.Equal(t, []string{"customer"}, roles)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService(t)

	_, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct horse")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "Ada Again", "ada@example.com", "correct horse")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "EMAIL_ALREADY_USED", appErr.Code)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _ := newAuthService(t)
	_, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct horse")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "ada@example.com", "wrong")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	svc, _ := newAuthService(t)
	_, err := svc.Register(context.Background(), "Ada", "ada@example.com", "correct horse")
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	svc.WithNow(func() time.Time { return past })
	result, err := svc.Login(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, _, err = svc.ParseAccessToken(result.AccessToken)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthService(t)
	_, _, err := svc.ParseAccessToken("not-a-token")
	require.Error(t, err)
}
