package usecase

import (
	"context"
	"errors"
	"time"

	"courseplatform/internal/admission"
	"courseplatform/internal/domain"
	"courseplatform/internal/infrastructure/metrics"
	"courseplatform/internal/infrastructure/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionRevoker ends every session opened from a device.
type SessionRevoker interface {
	RevokeDevice(ctx context.Context, userID uuid.UUID, fingerprint string) error
}

type DeviceConfig struct {
	DefaultCap      int
	EvictionEnabled bool
	MaxAttempts     int
}

// AdmitOutcome describes what an admission did.
type AdmitOutcome struct {
	Action  admission.Action
	Device  domain.Device
	Evicted []domain.Device
}

type DeviceUseCase struct {
	store   repository.DeviceStore
	revoker SessionRevoker
	metrics *metrics.Metrics
	logger  *zap.Logger
	cfg     DeviceConfig

	now        func() time.Time
	newBackOff func() backoff.BackOff
}

func NewDeviceUseCase(
	store repository.DeviceStore,
	revoker SessionRevoker,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg DeviceConfig,
) *DeviceUseCase {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &DeviceUseCase{
		store:   store,
		revoker: revoker,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 200 * time.Millisecond
			return b
		},
	}
}

// PolicyFor derives the admission policy from the user's profile.
func (uc *DeviceUseCase) PolicyFor(profile *domain.Profile) admission.Policy {
	p := admission.Policy{
		Cap:         profile.DeviceLimit,
		EvictOldest: uc.cfg.EvictionEnabled || profile.EvictOldestDevice,
	}
	if p.Cap < 1 {
		p.Cap = uc.cfg.DefaultCap
	}
	if profile.SubscriptionExpired(uc.now()) {
		p.Cap = 1
	}
	return p
}

// Admit registers the fingerprint for the user or refreshes it, evicting
// the least recently used devices when the policy allows. Storage
// conflicts are retried; every other error is returned as is.
func (uc *DeviceUseCase) Admit(ctx context.Context, userID uuid.UUID, fingerprint string, info domain.DeviceInfo, p admission.Policy) (*AdmitOutcome, error) {
	var out *AdmitOutcome

	op := func() error {
		res, err := uc.admitOnce(ctx, userID, fingerprint, info, p)
		if err != nil {
			if errors.Is(err, domain.ErrStorageConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = res
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(uc.newBackOff(), uint64(uc.cfg.MaxAttempts-1)), ctx)
	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		uc.metrics.DeviceAdmissionConflicts.Inc()
		uc.logger.Warn("device admission conflict, retrying",
			zap.String("user_id", userID.String()),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDeviceCapExceeded) {
			uc.metrics.DeviceAdmissions.WithLabelValues(admission.ActionReject.String()).Inc()
		}
		return nil, err
	}

	uc.metrics.DeviceAdmissions.WithLabelValues(out.Action.String()).Inc()
	for _, d := range out.Evicted {
		uc.revoke(ctx, d)
	}
	if out.Action == admission.ActionEvictAndAdmit {
		uc.logger.Info("devices evicted",
			zap.String("user_id", userID.String()),
			zap.Int("count", len(out.Evicted)),
			zap.Uint("admitted", out.Device.ID),
		)
	}
	return out, nil
}

func (uc *DeviceUseCase) admitOnce(ctx context.Context, userID uuid.UUID, fingerprint string, info domain.DeviceInfo, p admission.Policy) (*AdmitOutcome, error) {
	req := admission.Request{UserID: userID, Fingerprint: fingerprint, Info: info, Now: uc.now()}
	out := &AdmitOutcome{}

	err := uc.store.InUserTx(ctx, userID, func(tx repository.DeviceTx) error {
		existing, err := tx.ListForUser(ctx, userID)
		if err != nil {
			return err
		}

		d, err := admission.Evaluate(existing, req, p)
		if err != nil {
			return err
		}
		out.Action = d.Action

		switch d.Action {
		case admission.ActionRefresh:
			if err := tx.Touch(ctx, d.DeviceID, req.Now); err != nil {
				return err
			}
			for _, dev := range existing {
				if dev.ID == d.DeviceID {
					out.Device = dev
				}
			}
			out.Device.LastUsedAt = req.Now
			return nil

		case admission.ActionReject:
			return d.Reason

		case admission.ActionEvictAndAdmit:
			byID := make(map[uint]domain.Device, len(existing))
			for _, dev := range existing {
				byID[dev.ID] = dev
			}
			for _, id := range d.Evict {
				if err := tx.Delete(ctx, id); err != nil {
					return err
				}
				out.Evicted = append(out.Evicted, byID[id])
			}
		}

		if err := tx.Create(ctx, d.NewDevice); err != nil {
			return err
		}
		out.Device = *d.NewDevice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *DeviceUseCase) ListDevices(ctx context.Context, userID uuid.UUID) ([]domain.Device, error) {
	return uc.store.ListForUser(ctx, userID)
}

// RemoveDevice deletes one of the user's own devices and signs it out.
func (uc *DeviceUseCase) RemoveDevice(ctx context.Context, userID uuid.UUID, deviceID uint) error {
	d, err := uc.store.DeleteOwned(ctx, userID, deviceID)
	if err != nil {
		return err
	}
	uc.revoke(ctx, *d)
	return nil
}

// RemoveByFingerprint is used on logout; an unknown fingerprint is not an error.
func (uc *DeviceUseCase) RemoveByFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) error {
	devices, err := uc.store.ListForUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if d.Fingerprint == fingerprint {
			err := uc.RemoveDevice(ctx, userID, d.ID)
			if errors.Is(err, domain.ErrDeviceNotFound) {
				return nil
			}
			return err
		}
	}
	return nil
}

// AdminDeleteDevice removes a device regardless of owner. The user's other
// devices are left alone.
func (uc *DeviceUseCase) AdminDeleteDevice(ctx context.Context, deviceID uint) (*domain.Device, error) {
	d, err := uc.store.DeleteByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	uc.revoke(ctx, *d)
	uc.logger.Info("device deleted by admin",
		zap.Uint("device_id", d.ID),
		zap.String("user_id", d.UserID.String()),
	)
	return d, nil
}

// PruneStale deletes devices not used within olderThan.
func (uc *DeviceUseCase) PruneStale(ctx context.Context, olderThan time.Duration) (int, error) {
	deleted, err := uc.store.DeleteUnusedSince(ctx, uc.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	for _, d := range deleted {
		uc.revoke(ctx, d)
	}
	uc.metrics.DevicesPruned.Add(float64(len(deleted)))
	return len(deleted), nil
}

func (uc *DeviceUseCase) revoke(ctx context.Context, d domain.Device) {
	if err := uc.revoker.RevokeDevice(ctx, d.UserID, d.Fingerprint); err != nil {
		uc.logger.Error("failed to revoke device sessions",
			zap.Uint("device_id", d.ID),
			zap.String("user_id", d.UserID.String()),
			zap.Error(err),
		)
	}
}
