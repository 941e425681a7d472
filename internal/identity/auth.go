package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/logging"
	"storefront/internal/models"
	"storefront/internal/validation"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInactive            = errors.New("user is inactive")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshExpired      = errors.New("refresh token expired")
)

// ResetMailer delivers password reset links.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, name, link string) error
}

type Options struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	// ResetURL is the page that receives ?token=... from the reset mail.
	ResetURL string
	Now      func() time.Time
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Phone    string `json:"phone" validate:"omitempty,phone_mx"`
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`

	refreshID primitive.ObjectID
}

// Service implements the account operations. Errors are returned to the
// caller for form-level display.
type Service struct {
	accounts AccountStore
	roles    *Roles
	mailer   ResetMailer
	opts     Options
	logger   *zap.Logger
}

func NewService(accounts AccountStore, roles *Roles, mailer ResetMailer, opts Options, logger *zap.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = time.Hour
	}
	return &Service{
		accounts: accounts,
		roles:    roles,
		mailer:   mailer,
		opts:     opts,
		logger:   logging.OrNop(logger).Named("auth"),
	}
}

func (s *Service) Roles() *Roles {
	return s.roles
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, Tokens, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return User{}, Tokens{}, err
	}

	if _, err := s.accounts.FindByEmail(ctx, in.Email); err == nil {
		return User{}, Tokens{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, Tokens{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, Tokens{}, fmt.Errorf("password hash failed: %w", err)
	}

	now := s.opts.Now()
	account := models.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
		Phone:        validation.NormalizePhone(in.Phone),
		Role:         string(RoleCustomer),
		IsActive:     true,
		Addresses:    []models.Address{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, &account); err != nil {
		return User{}, Tokens{}, err
	}

	tokens, err := s.issueTokens(ctx, account)
	if err != nil {
		return User{}, Tokens{}, err
	}

	s.logger.Info("user registered", zap.String("email", account.Email))
	return toUser(account), tokens, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (User, Tokens, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return User{}, Tokens{}, ErrInvalidCredentials
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, Tokens{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, Tokens{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("login rejected", zap.String("email", email))
		return User{}, Tokens{}, ErrInvalidCredentials
	}
	if !account.IsActive {
		return User{}, Tokens{}, ErrInactive
	}

	tokens, err := s.issueTokens(ctx, account)
	if err != nil {
		return User{}, Tokens{}, err
	}

	user := toUser(account)
	user.Role = s.roles.Load(ctx, user.ID, true)
	s.logger.Info("login succeeded", zap.String("email", email))
	return user, tokens, nil
}

// Refresh rotates a refresh token: the presented token is revoked and
// points at its replacement.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (User, Tokens, error) {
	plain := strings.TrimSpace(refreshToken)
	if plain == "" {
		return User{}, Tokens{}, ErrInvalidRefreshToken
	}

	token, err := s.accounts.FindRefreshToken(ctx, hashToken(plain))
	if errors.Is(err, ErrTokenNotFound) {
		return User{}, Tokens{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return User{}, Tokens{}, err
	}

	if s.opts.Now().After(token.ExpiresAt) {
		if err := s.accounts.RevokeRefreshToken(ctx, token.ID, nil); err != nil {
			s.logger.Warn("expired token revoke failed", zap.Error(err))
		}
		return User{}, Tokens{}, ErrRefreshExpired
	}

	account, err := s.accounts.FindByID(ctx, token.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, Tokens{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return User{}, Tokens{}, err
	}
	if !account.IsActive {
		return User{}, Tokens{}, ErrInactive
	}

	tokens, err := s.issueTokens(ctx, account)
	if err != nil {
		return User{}, Tokens{}, err
	}
	if err := s.accounts.RevokeRefreshToken(ctx, token.ID, &tokens.refreshID); err != nil {
		s.logger.Warn("rotated token revoke failed", zap.Error(err))
	}

	user := toUser(account)
	user.Role = s.roles.Load(ctx, user.ID, false)
	return user, tokens, nil
}

// Logout revokes the refresh token and drops the cached role of its owner.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	plain := strings.TrimSpace(refreshToken)
	if plain == "" {
		return ErrInvalidRefreshToken
	}

	token, err := s.accounts.RevokeRefreshTokenByHash(ctx, hashToken(plain))
	if errors.Is(err, ErrTokenNotFound) {
		return ErrInvalidRefreshToken
	}
	if err != nil {
		return err
	}

	s.roles.Forget(ctx, token.UserID.Hex())
	return nil
}

// ForgotPassword mails a single-use reset link. Unknown addresses succeed
// silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validation.Validator().Var(email, "required,email"); err != nil {
		return err
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		s.logger.Debug("reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	plain, err := randomToken()
	if err != nil {
		return err
	}
	now := s.opts.Now()
	reset := models.PasswordReset{
		UserID:    account.ID,
		TokenHash: hashToken(plain),
		ExpiresAt: now.Add(s.opts.ResetTTL),
		CreatedAt: now,
	}
	if err := s.accounts.SavePasswordReset(ctx, &reset); err != nil {
		return err
	}

	if s.mailer == nil {
		return errors.New("mailer not configured")
	}
	if err := s.mailer.SendPasswordReset(ctx, account.Email, account.Name, s.resetLink(plain)); err != nil {
		return fmt.Errorf("send reset mail failed: %w", err)
	}
	s.logger.Info("password reset mailed", zap.String("userId", account.ID.Hex()))
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	plain := strings.TrimSpace(token)
	if plain == "" {
		return ErrInvalidResetToken
	}
	if err := validation.Validator().Var(password, "required,min=8"); err != nil {
		return err
	}

	reset, err := s.accounts.ConsumePasswordReset(ctx, hashToken(plain), s.opts.Now())
	if errors.Is(err, ErrTokenNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("password hash failed: %w", err)
	}
	return s.accounts.UpdatePassword(ctx, reset.UserID, string(hash))
}

// Me returns the account mirror with a role resolved through the cache.
func (s *Service) Me(ctx context.Context, userID primitive.ObjectID) (User, error) {
	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	user := toUser(account)
	user.Role = s.roles.Load(ctx, user.ID, false)
	return user, nil
}

func (s *Service) issueTokens(ctx context.Context, account models.User) (Tokens, error) {
	now := s.opts.Now()
	role, _ := ParseRole(account.Role)
	claims := jwt.MapClaims{
		"sub":    account.ID.Hex(),
		"userId": account.ID.Hex(),
		"email":  account.Email,
		"role":   string(role),
		"exp":    now.Add(s.opts.AccessTTL).Unix(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return Tokens{}, fmt.Errorf("token generation failed: %w", err)
	}

	plain, err := randomToken()
	if err != nil {
		return Tokens{}, err
	}
	refresh := models.RefreshToken{
		UserID:    account.ID,
		TokenHash: hashToken(plain),
		ExpiresAt: now.Add(s.opts.RefreshTTL),
		CreatedAt: now,
	}
	if err := s.accounts.SaveRefreshToken(ctx, &refresh); err != nil {
		return Tokens{}, err
	}

	return Tokens{
		AccessToken:  accessToken,
		RefreshToken: plain,
		ExpiresIn:    int64(s.opts.AccessTTL.Seconds()),
		refreshID:    refresh.ID,
	}, nil
}

func (s *Service) resetLink(token string) string {
	base := s.opts.ResetURL
	if base == "" {
		base = "/reset-password"
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

func toUser(account models.User) User {
	role, _ := ParseRole(account.Role)
	return User{
		ID:        account.ID.Hex(),
		Name:      account.Name,
		Email:     account.Email,
		CreatedAt: account.CreatedAt,
		Role:      role,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
