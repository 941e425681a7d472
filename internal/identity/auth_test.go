package identity

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/validation"
)

type memoryAccounts struct {
	mu     sync.Mutex
	users  map[primitive.ObjectID]models.User
	tokens map[primitive.ObjectID]models.RefreshToken
	resets map[primitive.ObjectID]models.PasswordReset
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{
		users:  map[primitive.ObjectID]models.User{},
		tokens: map[primitive.ObjectID]models.RefreshToken{},
		resets: map[primitive.ObjectID]models.PasswordReset{},
	}
}

func (m *memoryAccounts) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (m *memoryAccounts) FindByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memoryAccounts) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = primitive.NewObjectID()
	m.users[user.ID] = *user
	return nil
}

func (m *memoryAccounts) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *memoryAccounts) SaveRefreshToken(_ context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token.ID = primitive.NewObjectID()
	m.tokens[token.ID] = *token
	return nil
}

func (m *memoryAccounts) FindRefreshToken(_ context.Context, hash string) (models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.tokens {
		if tok.TokenHash == hash && !tok.Revoked {
			return tok, nil
		}
	}
	return models.RefreshToken{}, ErrTokenNotFound
}

func (m *memoryAccounts) RevokeRefreshToken(_ context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok := m.tokens[id]
	tok.Revoked = true
	tok.ReplacedByToken = replacedBy
	m.tokens[id] = tok
	return nil
}

func (m *memoryAccounts) RevokeRefreshTokenByHash(_ context.Context, hash string) (models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, tok := range m.tokens {
		if tok.TokenHash == hash && !tok.Revoked {
			tok.Revoked = true
			m.tokens[id] = tok
			return tok, nil
		}
	}
	return models.RefreshToken{}, ErrTokenNotFound
}

func (m *memoryAccounts) SavePasswordReset(_ context.Context, reset *models.PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reset.ID = primitive.NewObjectID()
	m.resets[reset.ID] = *reset
	return nil
}

func (m *memoryAccounts) ConsumePasswordReset(_ context.Context, hash string, now time.Time) (models.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.resets {
		if r.TokenHash == hash && !r.Used && r.ExpiresAt.After(now) {
			r.Used = true
			m.resets[id] = r
			return r, nil
		}
	}
	return models.PasswordReset{}, ErrTokenNotFound
}

type capturedMail struct {
	to, name, link string
}

type recordingMailer struct {
	sent []capturedMail
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, to, name, link string) error {
	m.sent = append(m.sent, capturedMail{to: to, name: name, link: link})
	return nil
}

type authFixture struct {
	svc      *Service
	accounts *memoryAccounts
	mailer   *recordingMailer
	roles    rolesFixture
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	rf := newRolesFixture(t)
	accounts := newMemoryAccounts()
	mailer := &recordingMailer{}
	svc := NewService(accounts, rf.roles, mailer, Options{
		JWTSecret:  "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		ResetURL:   "https://joyeria.test/restablecer",
		Now:        rf.clock.Now,
	}, nil)
	return authFixture{svc: svc, accounts: accounts, mailer: mailer, roles: rf}
}

// register also mirrors the account role into the role store fake.
func (f authFixture) register(t *testing.T, email, password string) User {
	t.Helper()
	user, _, err := f.svc.Register(context.Background(), RegisterInput{
		Name:     "Lucía",
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	f.roles.store.roles[user.ID] = user.Role
	return user
}

func TestRegister_IssuesTokensAndRejectsDuplicates(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, tokens, err := f.svc.Register(ctx, RegisterInput{
		Name:     "Lucía",
		Email:    " Lucia@Example.com ",
		Password: "perlas-2024",
	})
	require.NoError(t, err)
	assert.Equal(t, "lucia@example.com", user.Email)
	assert.Equal(t, RoleCustomer, user.Role)
	assert.NotEmpty(t, tokens.RefreshToken)

	parsed, err := jwt.Parse(tokens.AccessToken, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithTimeFunc(f.roles.clock.Now))
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, user.ID, claims["userId"])

	_, _, err = f.svc.Register(ctx, RegisterInput{Name: "Otra", Email: "lucia@example.com", Password: "perlas-2024"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_ValidationErrorsAreFieldLevel(t *testing.T) {
	f := newAuthFixture(t)

	_, _, err := f.svc.Register(context.Background(), RegisterInput{Name: "", Email: "nope", Password: "corta"})
	require.Error(t, err)

	details := validation.Fields(err)
	assert.Contains(t, details, "name")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t, "ana@example.com", "collar-de-oro")

	_, _, err := f.svc.Login(ctx, "ana@example.com", "equivocada")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = f.svc.Login(ctx, "nadie@example.com", "collar-de-oro")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	f.roles.store.roles[registered.ID] = RoleWorker
	user, tokens, err := f.svc.Login(ctx, "ANA@example.com", "collar-de-oro")
	require.NoError(t, err)
	assert.Equal(t, RoleWorker, user.Role)
	assert.NotEmpty(t, tokens.AccessToken)
}

func TestLogin_InactiveUser(t *testing.T) {
	f := newAuthFixture(t)
	registered := f.register(t, "ana@example.com", "collar-de-oro")

	id, err := primitive.ObjectIDFromHex(registered.ID)
	require.NoError(t, err)
	account := f.accounts.users[id]
	account.IsActive = false
	f.accounts.users[id] = account

	_, _, err = f.svc.Login(context.Background(), "ana@example.com", "collar-de-oro")
	assert.ErrorIs(t, err, ErrInactive)
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "ana@example.com", "collar-de-oro")

	_, first, err := f.svc.Login(ctx, "ana@example.com", "collar-de-oro")
	require.NoError(t, err)

	_, second, err := f.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, _, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	f.roles.clock.Advance(25 * time.Hour)
	_, _, err = f.svc.Refresh(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshExpired)
}

func TestLogout_ClearsRoleCache(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	registered := f.register(t, "ana@example.com", "collar-de-oro")

	_, tokens, err := f.svc.Login(ctx, "ana@example.com", "collar-de-oro")
	require.NoError(t, err)
	_, err = f.roles.cache.Get(ctx, registered.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, tokens.RefreshToken))
	_, err = f.roles.cache.Get(ctx, registered.ID)
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.ErrorIs(t, f.svc.Logout(ctx, tokens.RefreshToken), ErrInvalidRefreshToken)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "ana@example.com", "collar-de-oro")

	require.NoError(t, f.svc.ForgotPassword(ctx, "nadie@example.com"))
	assert.Empty(t, f.mailer.sent)

	require.NoError(t, f.svc.ForgotPassword(ctx, "ana@example.com"))
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "ana@example.com", f.mailer.sent[0].to)

	link, err := url.Parse(f.mailer.sent[0].link)
	require.NoError(t, err)
	assert.Equal(t, "/restablecer", link.Path)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "anillo-nuevo"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "anillo-nuevo"), ErrInvalidResetToken)

	_, _, err = f.svc.Login(ctx, "ana@example.com", "collar-de-oro")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.svc.Login(ctx, "ana@example.com", "anillo-nuevo")
	assert.NoError(t, err)
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "ana@example.com", "collar-de-oro")

	require.NoError(t, f.svc.ForgotPassword(ctx, "ana@example.com"))
	link, err := url.Parse(f.mailer.sent[0].link)
	require.NoError(t, err)

	f.roles.clock.Advance(2 * time.Hour)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, link.Query().Get("token"), "anillo-nuevo"), ErrInvalidResetToken)
}
