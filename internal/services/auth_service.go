package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/jwt"
)

const minPasswordLength = 8

var errInvalidCredentials = errs.Unauthorized("Invalid email or password")

// Compile-time check to ensure authService implements AuthService
var _ AuthService = (*authService)(nil)

type authService struct {
	staffRepo repositories.StaffAccountRepository
	tokens    *jwt.TokenService
	now       func() time.Time
}

// NewAuthService creates a new AuthService implementation
func NewAuthService(staffRepo repositories.StaffAccountRepository, tokens *jwt.TokenService) AuthService {
	return &authService{
		staffRepo: staffRepo,
		tokens:    tokens,
		now:       time.Now,
	}
}

// Login checks staff credentials and issues an access token
func (s *authService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	account, err := s.staffRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, errs.Internal("loading staff account", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("Failed login attempt", "email", account.Email)
		return nil, errInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Generate(account.ID.Hex(), account.Email, string(account.Role))
	if err != nil {
		return nil, errs.Internal("issuing token", err)
	}
	return &models.LoginResponse{Token: token, ExpiresAt: expiresAt, Account: *account}, nil
}

// CreateStaff registers a back-office account with a hashed password
func (s *authService) CreateStaff(ctx context.Context, name, email, password string, role models.Role) (*models.StaffAccount, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errs.Validation("Email is required")
	}
	if len(password) < minPasswordLength {
		return nil, errs.Validation("Password must be at least 8 characters")
	}
	if role == models.RoleEveryone || !role.IsValid() {
		return nil, errs.Validation("Invalid role: " + string(role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Internal("hashing password", err)
	}

	now := s.now()
	account := &models.StaffAccount{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.staffRepo.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, errs.Conflict("A staff account with this email already exists")
		}
		return nil, errs.Internal("creating staff account", err)
	}
	slog.Info("Staff account created", "email", email, "role", role)
	return account, nil
}
