package usecase

import (
	"context"
	"errors"
	"testing"

	"courseplatform/internal/domain"
	"courseplatform/internal/infrastructure/metrics"
	"courseplatform/internal/infrastructure/repository"
	"courseplatform/internal/infrastructure/security"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type authFixture struct {
	uc       *AuthUseCase
	users    *repository.MemoryUserRepository
	profiles *fakeProfiles
	tokens   *fakeTokens
	mailer   *mockMailer
}

func newAuthFixture(t *testing.T, deviceCap int, evict bool) *authFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	f := &authFixture{
		users:    repository.NewMemoryUserRepository(),
		profiles: newFakeProfiles(),
		tokens:   newFakeTokens(),
		mailer:   &mockMailer{},
	}
	profiles := NewProfileUseCase(f.profiles, logger, deviceCap)
	devices := NewDeviceUseCase(
		repository.NewMemoryDeviceRepository(f.users),
		f.tokens,
		metrics.New(prometheus.NewRegistry()),
		logger,
		DeviceConfig{DefaultCap: deviceCap, EvictionEnabled: evict, MaxAttempts: 3},
	)
	f.uc = NewAuthUseCase(
		f.users, profiles, devices, f.tokens,
		security.NewPasswordHasher(),
		security.NewTokenManager("access-secret", "refresh-secret"),
		f.mailer, logger,
	)
	return f
}

func (f *authFixture) register(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := f.uc.Register(context.Background(), "anna", "Anna@Example.com ", "s3cret-pass")
	require.NoError(t, err)
	return id
}

func (f *authFixture) login(fingerprint string) (*LoginResult, error) {
	return f.uc.Login(context.Background(), LoginInput{
		Email:       "anna@example.com",
		Password:    "s3cret-pass",
		Fingerprint: fingerprint,
		Device:      domain.DeviceInfo{Label: fingerprint},
	})
}

func TestAuthUseCase_RegisterCreatesProfile(t *testing.T) {
	f := newAuthFixture(t, 2, false)
	id := f.register(t)

	p, err := f.profiles.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", p.Email)
	assert.Equal(t, domain.StatusRegular, p.SubscriptionStatus)
	assert.Equal(t, 2, p.DeviceLimit)

	_, err = f.uc.Register(context.Background(), "anna", "anna@example.com", "other")
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestAuthUseCase_LoginAdmitsDevice(t *testing.T) {
	f := newAuthFixture(t, 1, false)
	id := f.register(t)

	res, err := f.login("laptop")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "laptop", res.Device.Fingerprint)
	assert.Zero(t, res.Evicted)

	got, err := f.uc.ValidateAccess(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	// same device again is a refresh, not a second slot
	_, err = f.login("laptop")
	require.NoError(t, err)

	_, err = f.login("phone")
	assert.ErrorIs(t, err, domain.ErrDeviceCapExceeded)
}

func TestAuthUseCase_LoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t, 1, false)
	f.register(t)

	_, err := f.uc.Login(context.Background(), LoginInput{Email: "anna@example.com", Password: "nope", Fingerprint: "fp"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.uc.Login(context.Background(), LoginInput{Email: "ghost@example.com", Password: "x", Fingerprint: "fp"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthUseCase_EvictionRevokesSessions(t *testing.T) {
	f := newAuthFixture(t, 1, true)
	f.register(t)

	first, err := f.login("laptop")
	require.NoError(t, err)

	second, err := f.login("phone")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Evicted)
	assert.Equal(t, []string{"laptop"}, f.tokens.revoked)

	_, err = f.uc.Refresh(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)

	_, err = f.uc.Refresh(context.Background(), second.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthUseCase_RefreshRotates(t *testing.T) {
	f := newAuthFixture(t, 2, false)
	f.register(t)

	res, err := f.login("laptop")
	require.NoError(t, err)

	pair, err := f.uc.Refresh(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, pair.RefreshToken)

	_, err = f.uc.Refresh(context.Background(), res.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)

	_, err = f.uc.Refresh(context.Background(), "garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestAuthUseCase_LogoutWithFingerprintFreesSlot(t *testing.T) {
	f := newAuthFixture(t, 1, false)
	f.register(t)

	res, err := f.login("laptop")
	require.NoError(t, err)

	require.NoError(t, f.uc.Logout(context.Background(), res.RefreshToken, "laptop"))
	_, err = f.uc.Refresh(context.Background(), res.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTokenRevoked)

	_, err = f.login("phone")
	assert.NoError(t, err)
}

func TestAuthUseCase_PasswordReset(t *testing.T) {
	f := newAuthFixture(t, 1, false)
	f.register(t)

	var token string
	f.mailer.On("SendResetEmail", mock.Anything, "anna@example.com", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { token = args.String(2) }).
		Return(nil).Once()

	require.NoError(t, f.uc.ForgotPassword(context.Background(), "ANNA@example.com"))
	f.uc.Wait()
	f.mailer.AssertExpectations(t)
	require.NotEmpty(t, token)

	require.NoError(t, f.uc.ResetPassword(context.Background(), token, "new-pass"))
	assert.ErrorIs(t, f.uc.ResetPassword(context.Background(), token, "again"), domain.ErrInvalidToken)

	_, err := f.uc.Login(context.Background(), LoginInput{Email: "anna@example.com", Password: "new-pass", Fingerprint: "fp"})
	assert.NoError(t, err)
}

func TestAuthUseCase_ForgotPasswordUnknownEmail(t *testing.T) {
	f := newAuthFixture(t, 1, false)

	require.NoError(t, f.uc.ForgotPassword(context.Background(), "ghost@example.com"))
	f.uc.Wait()
	f.mailer.AssertNotCalled(t, "SendResetEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthUseCase_MailFailureIsLogged(t *testing.T) {
	f := newAuthFixture(t, 1, false)
	f.register(t)
	f.mailer.On("SendResetEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	assert.NoError(t, f.uc.ForgotPassword(context.Background(), "anna@example.com"))
	f.uc.Wait()
}

func TestAuthUseCase_EmailChange(t *testing.T) {
	f := newAuthFixture(t, 1, false)
	id := f.register(t)
	_, err := f.uc.Register(context.Background(), "bob", "bob@example.com", "pass")
	require.NoError(t, err)

	assert.ErrorIs(t, f.uc.RequestEmailChange(context.Background(), id, "Bob@example.com"), domain.ErrEmailTaken)

	var token string
	f.mailer.On("SendEmailChangeConfirmation", mock.Anything, "anna.new@example.com", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { token = args.String(2) }).
		Return(nil).Once()

	require.NoError(t, f.uc.RequestEmailChange(context.Background(), id, " anna.new@example.com"))
	f.uc.Wait()
	require.NotEmpty(t, token)

	require.NoError(t, f.uc.ConfirmEmailChange(context.Background(), token))
	assert.ErrorIs(t, f.uc.ConfirmEmailChange(context.Background(), token), domain.ErrInvalidToken)

	u, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "anna.new@example.com", u.Email)

	p, err := f.profiles.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "anna.new@example.com", p.Email)
}
