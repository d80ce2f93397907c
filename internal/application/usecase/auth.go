package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"courseplatform/internal/admission"
	"courseplatform/internal/domain"
	"courseplatform/internal/infrastructure/cache"
	"courseplatform/internal/infrastructure/security"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, hash string) error
	UpdateEmail(ctx context.Context, userID uuid.UUID, email string) error
}

type TokenStore interface {
	SaveRefresh(ctx context.Context, s cache.Session, token string) error
	CheckRefresh(ctx context.Context, token string) (cache.Session, error)
	DeleteRefresh(ctx context.Context, token string) error
	SaveResetToken(ctx context.Context, token string, userID uuid.UUID) error
	GetResetToken(ctx context.Context, token string) (uuid.UUID, error)
	DeleteResetToken(ctx context.Context, token string) error
	SaveEmailChange(ctx context.Context, token string, ec cache.EmailChange) error
	TakeEmailChange(ctx context.Context, token string) (cache.EmailChange, error)
}

type Mailer interface {
	SendResetEmail(ctx context.Context, to, token string) error
	SendEmailChangeConfirmation(ctx context.Context, to, token string) error
}

type LoginInput struct {
	Email       string
	Password    string
	Fingerprint string
	Device      domain.DeviceInfo
}

type LoginResult struct {
	security.TokenPair
	Device  domain.Device `json:"device"`
	Evicted int           `json:"evicted_devices"`
}

type AuthUseCase struct {
	users    UserStore
	profiles *ProfileUseCase
	devices  *DeviceUseCase
	tokens   TokenStore
	hasher   *security.PasswordHasher
	issuer   *security.TokenManager
	mailer   Mailer
	logger   *zap.Logger

	mail sync.WaitGroup
}

func NewAuthUseCase(
	users UserStore,
	profiles *ProfileUseCase,
	devices *DeviceUseCase,
	tokens TokenStore,
	hasher *security.PasswordHasher,
	issuer *security.TokenManager,
	mailer Mailer,
	logger *zap.Logger,
) *AuthUseCase {
	return &AuthUseCase{
		users:    users,
		profiles: profiles,
		devices:  devices,
		tokens:   tokens,
		hasher:   hasher,
		issuer:   issuer,
		mailer:   mailer,
		logger:   logger,
	}
}

func (uc *AuthUseCase) Register(ctx context.Context, username, email, password string) (uuid.UUID, error) {
	hash, err := uc.hasher.Hash(password)
	if err != nil {
		return uuid.Nil, err
	}

	user := &domain.User{
		ID:       uuid.New(),
		Username: strings.TrimSpace(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: hash,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return uuid.Nil, err
	}

	if err := uc.profiles.CreateProfile(ctx, user.ID, user.Email, user.Username); err != nil {
		uc.logger.Error("failed to create profile", zap.String("user_id", user.ID.String()), zap.Error(err))
		return uuid.Nil, err
	}
	return user.ID, nil
}

// Login checks credentials, admits the device under the user's policy and
// issues a token pair bound to that device.
func (uc *AuthUseCase) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, err := uc.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := uc.hasher.Compare(user.Password, in.Password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	profile, err := uc.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	out, err := uc.devices.Admit(ctx, user.ID, in.Fingerprint, in.Device, uc.devices.PolicyFor(profile))
	if err != nil {
		return nil, err
	}

	pair, err := uc.issue(ctx, cache.Session{UserID: user.ID, Fingerprint: out.Device.Fingerprint})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("device_action", out.Action.String()),
	)
	res := &LoginResult{TokenPair: pair, Device: out.Device}
	if out.Action == admission.ActionEvictAndAdmit {
		res.Evicted = len(out.Evicted)
	}
	return res, nil
}

// Refresh rotates the refresh token. The old token stops working.
func (uc *AuthUseCase) Refresh(ctx context.Context, refreshToken string) (security.TokenPair, error) {
	userID, err := uc.issuer.ValidateRefreshToken(refreshToken)
	if err != nil {
		return security.TokenPair{}, err
	}

	session, err := uc.tokens.CheckRefresh(ctx, refreshToken)
	if err != nil {
		return security.TokenPair{}, err
	}
	if session.UserID != userID {
		return security.TokenPair{}, domain.ErrTokenRevoked
	}

	if err := uc.tokens.DeleteRefresh(ctx, refreshToken); err != nil {
		return security.TokenPair{}, err
	}
	return uc.issue(ctx, session)
}

// Logout drops the refresh token. With a fingerprint the device is also
// unregistered, which ends its other sessions too.
func (uc *AuthUseCase) Logout(ctx context.Context, refreshToken, fingerprint string) error {
	if fingerprint != "" {
		if userID, err := uc.issuer.ValidateRefreshToken(refreshToken); err == nil {
			if err := uc.devices.RemoveByFingerprint(ctx, userID, strings.TrimSpace(fingerprint)); err != nil {
				uc.logger.Warn("failed to remove device on logout", zap.String("user_id", userID.String()), zap.Error(err))
			}
		}
	}
	return uc.tokens.DeleteRefresh(ctx, refreshToken)
}

func (uc *AuthUseCase) ValidateAccess(token string) (uuid.UUID, error) {
	return uc.issuer.ValidateAccessToken(token)
}

func (uc *AuthUseCase) issue(ctx context.Context, s cache.Session) (security.TokenPair, error) {
	pair, err := uc.issuer.Generate(s.UserID)
	if err != nil {
		return security.TokenPair{}, err
	}
	if err := uc.tokens.SaveRefresh(ctx, s, pair.RefreshToken); err != nil {
		return security.TokenPair{}, err
	}
	return pair, nil
}

// ForgotPassword mails a reset link. Unknown addresses are not reported
// so the endpoint cannot be used to probe for accounts.
func (uc *AuthUseCase) ForgotPassword(ctx context.Context, email string) error {
	user, err := uc.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token := uuid.NewString()
	if err := uc.tokens.SaveResetToken(ctx, token, user.ID); err != nil {
		return err
	}
	uc.sendAsync(ctx, "reset", func(ctx context.Context) error {
		return uc.mailer.SendResetEmail(ctx, user.Email, token)
	})
	return nil
}

func (uc *AuthUseCase) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := uc.tokens.GetResetToken(ctx, token)
	if err != nil {
		return err
	}

	hash, err := uc.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := uc.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	if err := uc.tokens.DeleteResetToken(ctx, token); err != nil {
		uc.logger.Warn("failed to delete reset token", zap.Error(err))
	}
	return nil
}

func (uc *AuthUseCase) RequestEmailChange(ctx context.Context, userID uuid.UUID, newEmail string) error {
	newEmail = strings.ToLower(strings.TrimSpace(newEmail))
	_, err := uc.users.GetByEmail(ctx, newEmail)
	if err == nil {
		return domain.ErrEmailTaken
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	token := uuid.NewString()
	if err := uc.tokens.SaveEmailChange(ctx, token, cache.EmailChange{UserID: userID, NewEmail: newEmail}); err != nil {
		return err
	}
	uc.sendAsync(ctx, "email_change", func(ctx context.Context) error {
		return uc.mailer.SendEmailChangeConfirmation(ctx, newEmail, token)
	})
	return nil
}

func (uc *AuthUseCase) ConfirmEmailChange(ctx context.Context, token string) error {
	ec, err := uc.tokens.TakeEmailChange(ctx, token)
	if err != nil {
		return err
	}
	if err := uc.users.UpdateEmail(ctx, ec.UserID, ec.NewEmail); err != nil {
		return err
	}
	if err := uc.profiles.SyncEmail(ctx, ec.UserID, ec.NewEmail); err != nil {
		uc.logger.Error("failed to sync profile email", zap.String("user_id", ec.UserID.String()), zap.Error(err))
	}
	return nil
}

// sendAsync delivers mail without holding up the request.
func (uc *AuthUseCase) sendAsync(ctx context.Context, kind string, send func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	uc.mail.Add(1)
	go func() {
		defer uc.mail.Done()
		if err := send(ctx); err != nil {
			uc.logger.Error("failed to send email", zap.String("kind", kind), zap.Error(err))
		}
	}()
}

// Wait blocks until queued mail has been handed to the SMTP server.
func (uc *AuthUseCase) Wait() {
	uc.mail.Wait()
}
