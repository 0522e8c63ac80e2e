package authpw

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"akredoc/api/internal/auth"
	"akredoc/api/internal/store"
)

type mockUserStore struct {
	users       map[string]store.User
	nameIndex   map[string]string
	emailIndex  map[string]string
	resetTokens map[string]store.PasswordResetToken
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:       make(map[string]store.User),
		nameIndex:   make(map[string]string),
		emailIndex:  make(map[string]string),
		resetTokens: make(map[string]store.PasswordResetToken),
	}
}

func (m *mockUserStore) GetUserByName(ctx context.Context, name string) (store.User, error) {
	if id, ok := m.nameIndex[name]; ok {
		return m.users[id], nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if id, ok := m.emailIndex[email]; ok {
		return m.users[id], nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	if _, ok := m.nameIndex[user.Name]; ok {
		return store.ErrConflict
	}
	m.users[user.ID] = user
	m.nameIndex[user.Name] = user.ID
	if user.Email != "" {
		m.emailIndex[user.Email] = user.ID
	}
	return nil
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	user, ok := m.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

func (m *mockUserStore) SavePasswordResetToken(ctx context.Context, email, tokenHash string) error {
	m.resetTokens[email] = store.PasswordResetToken{
		Email:     email,
		TokenHash: tokenHash,
		CreatedAt: time.Now(),
	}
	return nil
}

func (m *mockUserStore) GetPasswordResetToken(ctx context.Context, email string) (store.PasswordResetToken, error) {
	if token, ok := m.resetTokens[email]; ok {
		return token, nil
	}
	return store.PasswordResetToken{}, sql.ErrNoRows
}

func (m *mockUserStore) DeletePasswordResetToken(ctx context.Context, email string) error {
	delete(m.resetTokens, email)
	return nil
}

type mockRememberStore struct {
	tokens map[string]string
}

func newMockRememberStore() *mockRememberStore {
	return &mockRememberStore{tokens: make(map[string]string)}
}

func (m *mockRememberStore) SaveRememberToken(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	m.tokens[tokenHash] = userID
	return nil
}

func (m *mockRememberStore) LookupRememberToken(ctx context.Context, tokenHash string) (string, error) {
	if userID, ok := m.tokens[tokenHash]; ok {
		return userID, nil
	}
	return "", errors.New("not found")
}

func (m *mockRememberStore) RevokeRememberToken(ctx context.Context, tokenHash string) error {
	delete(m.tokens, tokenHash)
	return nil
}

func newTestService() (*Service, *mockUserStore, *mockRememberStore) {
	userStore := newMockUserStore()
	rememberStore := newMockRememberStore()
	return NewService(userStore, rememberStore, 30*24*time.Hour), userStore, rememberStore
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	t.Run("successful register", func(t *testing.T) {
		user, err := svc.Register(ctx, RegisterRequest{
			Name:     "Budi Santoso",
			Email:    "budi@kampus.ac.id",
			Password: "password123",
			Role:     "Kaprodi",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(user.ID, "usr_") {
			t.Errorf("unexpected user ID %q", user.ID)
		}
		if user.PasswordHash == "password123" {
			t.Error("password stored in plain text")
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{
			Name:     "Budi Santoso",
			Password: "password123",
			Role:     "GKM",
		})
		if !errors.Is(err, ErrNameTaken) {
			t.Errorf("expected ErrNameTaken, got %v", err)
		}
	})

	t.Run("role outside allow-list", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{
			Name:     "Siti",
			Password: "password123",
			Role:     "Rektor",
		})
		if !errors.Is(err, ErrInvalidRole) {
			t.Errorf("expected ErrInvalidRole, got %v", err)
		}
	})

	t.Run("short password", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{
			Name:     "Siti",
			Password: "short",
			Role:     "GKM",
		})
		if !errors.Is(err, ErrWeakPassword) {
			t.Errorf("expected ErrWeakPassword, got %v", err)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{})
		if !errors.Is(err, ErrMissingFields) {
			t.Errorf("expected ErrMissingFields, got %v", err)
		}
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, rememberStore := newTestService()

	registered, err := svc.Register(ctx, RegisterRequest{
		Name:     "Budi Santoso",
		Password: "password123",
		Role:     "GKM",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("successful login", func(t *testing.T) {
		result, err := svc.Login(ctx, "Budi Santoso", "password123", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.User.ID != registered.ID {
			t.Errorf("unexpected user %q", result.User.ID)
		}
		if result.RememberToken != "" {
			t.Error("remember token issued without remember_me")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "Budi Santoso", "wrongpassword", false)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := svc.Login(ctx, "Nobody", "password123", false)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("remember token issued", func(t *testing.T) {
		result, err := svc.Login(ctx, "Budi Santoso", "password123", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.RememberToken) != 60 {
			t.Fatalf("expected 60-char remember token, got %d chars", len(result.RememberToken))
		}
		if _, ok := rememberStore.tokens[auth.HashToken(result.RememberToken)]; !ok {
			t.Error("remember token not stored hashed")
		}
	})
}

func TestLoginRemember(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	registered, err := svc.Register(ctx, RegisterRequest{
		Name:     "Budi Santoso",
		Password: "password123",
		Role:     "Kaprodi",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := svc.Login(ctx, "Budi Santoso", "password123", true)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	user, err := svc.LoginRemember(ctx, result.RememberToken)
	if err != nil {
		t.Fatalf("LoginRemember() error = %v", err)
	}
	if user.ID != registered.ID {
		t.Errorf("unexpected user %q", user.ID)
	}

	svc.Logout(ctx, result.RememberToken)
	if _, err := svc.LoginRemember(ctx, result.RememberToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials after logout, got %v", err)
	}

	if _, err := svc.LoginRemember(ctx, "bogus"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for bogus token, got %v", err)
	}
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, userStore, _ := newTestService()

	if _, err := svc.Register(ctx, RegisterRequest{
		Name:     "Budi Santoso",
		Email:    "budi@kampus.ac.id",
		Password: "password123",
		Role:     "GKM",
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("request for existing email", func(t *testing.T) {
		user, token, ok, err := svc.RequestPasswordReset(ctx, "budi@kampus.ac.id")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok || token == "" {
			t.Fatal("expected a token for a known email")
		}
		if user.Name != "Budi Santoso" {
			t.Errorf("unexpected user %q", user.Name)
		}
		stored := userStore.resetTokens["budi@kampus.ac.id"]
		if stored.TokenHash == token {
			t.Error("reset token stored in plain text")
		}
	})

	t.Run("request for unknown email", func(t *testing.T) {
		_, _, ok, err := svc.RequestPasswordReset(ctx, "nobody@kampus.ac.id")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected ok=false for unknown email")
		}
	})

	t.Run("reset with valid token", func(t *testing.T) {
		_, token, _, err := svc.RequestPasswordReset(ctx, "budi@kampus.ac.id")
		if err != nil {
			t.Fatalf("RequestPasswordReset() error = %v", err)
		}

		if err := svc.ResetPassword(ctx, "budi@kampus.ac.id", token, "newpassword123"); err != nil {
			t.Fatalf("ResetPassword() error = %v", err)
		}

		if _, err := svc.Login(ctx, "Budi Santoso", "password123", false); err == nil {
			t.Error("old password still accepted")
		}
		if _, err := svc.Login(ctx, "Budi Santoso", "newpassword123", false); err != nil {
			t.Errorf("new password rejected: %v", err)
		}

		if err := svc.ResetPassword(ctx, "budi@kampus.ac.id", token, "anotherpassword"); !errors.Is(err, ErrResetTokenInvalid) {
			t.Errorf("expected token purged after use, got %v", err)
		}
	})

	t.Run("expired token purged", func(t *testing.T) {
		_, token, _, err := svc.RequestPasswordReset(ctx, "budi@kampus.ac.id")
		if err != nil {
			t.Fatalf("RequestPasswordReset() error = %v", err)
		}

		stored := userStore.resetTokens["budi@kampus.ac.id"]
		stored.CreatedAt = time.Now().Add(-61 * time.Minute)
		userStore.resetTokens["budi@kampus.ac.id"] = stored

		if err := svc.ResetPassword(ctx, "budi@kampus.ac.id", token, "newpassword456"); !errors.Is(err, ErrResetTokenInvalid) {
			t.Fatalf("expected ErrResetTokenInvalid, got %v", err)
		}
		if _, ok := userStore.resetTokens["budi@kampus.ac.id"]; ok {
			t.Error("expired token not purged")
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		if _, _, _, err := svc.RequestPasswordReset(ctx, "budi@kampus.ac.id"); err != nil {
			t.Fatalf("RequestPasswordReset() error = %v", err)
		}
		if err := svc.ResetPassword(ctx, "budi@kampus.ac.id", "forged", "newpassword456"); !errors.Is(err, ErrResetTokenInvalid) {
			t.Errorf("expected ErrResetTokenInvalid, got %v", err)
		}
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	user, err := svc.Register(ctx, RegisterRequest{
		Name:     "Budi Santoso",
		Password: "password123",
		Role:     "Tendik",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "wrongpassword", "newpassword123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "password123", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "password123", "newpassword123"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := svc.Login(ctx, "Budi Santoso", "newpassword123", false); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}
