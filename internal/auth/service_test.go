package auth

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"knowledgehub/app/internal/content"
	"knowledgehub/app/internal/db"
)

func setupService(t *testing.T) (*Service, *GormUserRepository) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "auth.db")
	gormDB, err := db.Open(db.Options{Path: path})
	if err != nil {
		t.Fatalf("db.Open returned error: %v", err)
	}

	t.Cleanup(func() {
		if closeErr := db.Close(gormDB); closeErr != nil {
			t.Fatalf("closing database failed: %v", closeErr)
		}
	})

	logger := silentLogger()
	if err := Migrate(context.Background(), gormDB, logger); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	users, err := NewUserRepository(gormDB, logger)
	if err != nil {
		t.Fatalf("NewUserRepository returned error: %v", err)
	}
	tokens, err := NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	service, err := NewService(users, tokens, logger)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}

	return service, users
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRegisterDefaultsToMemberRole(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t)

	user, err := service.Register(context.Background(), "dana", "Dana", "s3cretpass", "")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.Role != content.RoleMember {
		t.Fatalf("expected MEMBER default, got %q", user.Role)
	}
	if user.HashedPassword == "s3cretpass" {
		t.Fatalf("password must be stored hashed")
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t)

	if _, err := service.Register(context.Background(), "dana", "Dana", "short", ""); err == nil {
		t.Fatalf("expected error for short password")
	}
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, "dana", "Dana", "s3cretpass", ""); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if _, err := service.Register(ctx, "dana", "Other", "s3cretpass", ""); !eris.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t)
	ctx := context.Background()

	registered, err := service.Register(ctx, "dana", "Dana", "s3cretpass", content.RoleAdmin)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	user, token, err := service.Login(ctx, "dana", "s3cretpass")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.ID != registered.ID || token == "" {
		t.Fatalf("unexpected login result: %v %q", user.ID, token)
	}

	authenticated, err := service.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if authenticated.Username != "dana" || authenticated.Role != content.RoleAdmin {
		t.Fatalf("unexpected authenticated user: %#v", authenticated)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, "dana", "Dana", "s3cretpass", ""); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if _, _, err := service.Login(ctx, "dana", "wrongpass"); !eris.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, _, err := service.Login(ctx, "nobody", "s3cretpass"); !eris.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestAuthenticateRejectsGarbageToken(t *testing.T) {
	t.Parallel()

	service, _ := setupService(t)

	if _, err := service.Authenticate(context.Background(), "not-a-token"); !eris.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateRejectsDeletedSubject(t *testing.T) {
	t.Parallel()

	service, users := setupService(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, "dana", "Dana", "s3cretpass", ""); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	_, token, err := service.Login(ctx, "dana", "s3cretpass")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if err := users.db.Unscoped().Where("username = ?", "dana").Delete(&User{}).Error; err != nil {
		t.Fatalf("deleting user: %v", err)
	}

	if _, err := service.Authenticate(ctx, token); !eris.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for vanished subject, got %v", err)
	}
}

func TestAdminIDsListsOnlyAdmins(t *testing.T) {
	t.Parallel()

	service, users := setupService(t)
	ctx := context.Background()

	admin, err := service.Register(ctx, "root", "Root", "s3cretpass", content.RoleAdmin)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if _, err := service.Register(ctx, "dana", "Dana", "s3cretpass", ""); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	ids, err := users.AdminIDs(ctx)
	if err != nil {
		t.Fatalf("AdminIDs returned error: %v", err)
	}
	if len(ids) != 1 || ids[0] != admin.ID {
		t.Fatalf("expected only the admin id, got %v", ids)
	}
}
