package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	domainauth "gearyard/internal/domain/auth"
	domainuser "gearyard/internal/domain/user"
	"gearyard/internal/infra/ratelimit"
	"gearyard/internal/infra/security"
	"gearyard/internal/infra/storage/memory"
)

func newTestService() *Service {
	return &Service{
		Users:      memory.NewUserRepository(),
		Sessions:   memory.NewSessionStore(),
		Passwords:  security.BcryptHasher{Cost: 4},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: time.Hour,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterParams{
		Email:    "Rider@Example.com",
		Name:     "Sam Rider",
		Password: "pedal-hard",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.User.Email != "rider@example.com" {
		t.Fatalf("email = %s, want normalized lowercase", reg.User.Email)
	}
	if !reg.User.HasRole(domainuser.RoleBuyer) {
		t.Fatal("new user must carry the buyer role")
	}
	if reg.User.HasRole(domainuser.RoleSeller) {
		t.Fatal("seller role requires want_to_sell")
	}
	if reg.Token == "" {
		t.Fatal("registration must issue a session token")
	}

	login, err := svc.Login(ctx, LoginParams{Email: "rider@example.com", Password: "pedal-hard"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	resolved, err := svc.ResolveToken(ctx, login.Token)
	if err != nil {
		t.Fatalf("ResolveToken: %v", err)
	}
	if resolved.User.ID != reg.User.ID {
		t.Fatalf("resolved user = %s, want %s", resolved.User.ID, reg.User.ID)
	}
}

func TestRegisterSellerRole(t *testing.T) {
	svc := newTestService()
	reg, err := svc.Register(context.Background(), RegisterParams{
		Email:      "shop@example.com",
		Name:       "Gear Shop",
		Password:   "stocktake",
		WantToSell: true,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !reg.User.HasRole(domainuser.RoleSeller) {
		t.Fatal("want_to_sell must grant the seller role")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterParams{Email: "dup@example.com", Name: "First", Password: "password1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Register(ctx, RegisterParams{Email: "DUP@example.com", Name: "Second", Password: "password2"})
	if !errors.Is(err, domainuser.ErrEmailAlreadyUsed) {
		t.Fatalf("duplicate email error = %v, want %v", err, domainuser.ErrEmailAlreadyUsed)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newTestService()
	_, err := svc.Register(context.Background(), RegisterParams{Email: "short@example.com", Name: "Short", Password: "seven77"})
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("short password error = %v, want %v", err, ErrPasswordTooShort)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterParams{Email: "user@example.com", Name: "User", Password: "righthorse"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Login(ctx, LoginParams{Email: "user@example.com", Password: "wronghorse"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v, want %v", err, ErrInvalidCredentials)
	}
	_, err = svc.Login(ctx, LoginParams{Email: "nobody@example.com", Password: "whatever1"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email error = %v, want %v", err, ErrInvalidCredentials)
	}
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterParams{Email: "lock@example.com", Name: "Lock", Password: "righthorse"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var err error
	for i := 0; i < domainuser.MaxLoginFailures; i++ {
		_, err = svc.Login(ctx, LoginParams{Email: "lock@example.com", Password: "wronghorse"})
	}
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("final failure error = %v, want %v", err, ErrAccountLocked)
	}

	// Even the correct password is rejected while the lock holds.
	_, err = svc.Login(ctx, LoginParams{Email: "lock@example.com", Password: "righthorse"})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("login while locked error = %v, want %v", err, ErrAccountLocked)
	}
}

func TestLoginAttemptLimiter(t *testing.T) {
	svc := newTestService()
	svc.Attempts = ratelimit.NewMemoryLimiter(2, time.Minute)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterParams{Email: "throttle@example.com", Name: "Throttle", Password: "righthorse"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, LoginParams{Email: "throttle@example.com", Password: "wronghorse"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d error = %v, want %v", i+1, err, ErrInvalidCredentials)
		}
	}
	_, err := svc.Login(ctx, LoginParams{Email: "throttle@example.com", Password: "righthorse"})
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("throttled login error = %v, want %v", err, ErrTooManyAttempts)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	reg, err := svc.Register(ctx, RegisterParams{Email: "bye@example.com", Name: "Bye", Password: "leaving1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Logout(ctx, reg.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	_, err = svc.ResolveToken(ctx, reg.Token)
	if !errors.Is(err, domainauth.ErrSessionNotFound) {
		t.Fatalf("resolve after logout error = %v, want %v", err, domainauth.ErrSessionNotFound)
	}
}
