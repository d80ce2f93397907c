// Package admission decides whether a device fingerprint may be registered
// for a user under a per-user device cap.
//
// Evaluate is a pure function of the user's current devices, the incoming
// request and the policy. Applying the decision (create, touch, delete) and
// serializing concurrent decisions for the same user is the caller's job;
// see usecase.DeviceUseCase.
package admission

import (
	"sort"
	"strings"
	"time"

	"courseplatform/internal/domain"

	"github.com/google/uuid"
)

type Action int

const (
	ActionRefresh Action = iota + 1
	ActionAdmit
	ActionEvictAndAdmit
	ActionReject
)

func (a Action) String() string {
	switch a {
	case ActionRefresh:
		return "refresh"
	case ActionAdmit:
		return "admit"
	case ActionEvictAndAdmit:
		return "evict_and_admit"
	case ActionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Policy is the per-user admission configuration.
type Policy struct {
	Cap         int
	EvictOldest bool
}

type Request struct {
	UserID      uuid.UUID
	Fingerprint string
	Info        domain.DeviceInfo
	Now         time.Time
}

// Decision is the outcome of Evaluate.
type Decision struct {
	Action Action

	// Refresh: the device whose last-used timestamp is bumped.
	DeviceID uint

	// EvictAndAdmit: devices to delete, least recently used first.
	Evict []uint

	// Admit and EvictAndAdmit: the record to create.
	NewDevice *domain.Device

	// Reject: always domain.ErrDeviceCapExceeded.
	Reason error
}

// Evaluate returns the admission decision for req given the user's
// existing devices.
func Evaluate(existing []domain.Device, req Request, p Policy) (Decision, error) {
	fingerprint := strings.TrimSpace(req.Fingerprint)
	if fingerprint == "" {
		return Decision{}, domain.ErrInvalidFingerprint
	}
	if p.Cap < 1 {
		return Decision{}, domain.ErrInvalidCap
	}

	for _, d := range existing {
		if d.Fingerprint == fingerprint {
			return Decision{Action: ActionRefresh, DeviceID: d.ID}, nil
		}
	}

	if len(existing) < p.Cap {
		return Decision{Action: ActionAdmit, NewDevice: newDevice(req, fingerprint)}, nil
	}

	if !p.EvictOldest {
		return Decision{Action: ActionReject, Reason: domain.ErrDeviceCapExceeded}, nil
	}

	// Room for exactly one more device after eviction. Usually that is a
	// single eviction; more when the cap was lowered below the current count.
	victims := Oldest(existing, len(existing)-p.Cap+1)
	evict := make([]uint, 0, len(victims))
	for _, d := range victims {
		evict = append(evict, d.ID)
	}

	return Decision{
		Action:    ActionEvictAndAdmit,
		Evict:     evict,
		NewDevice: newDevice(req, fingerprint),
	}, nil
}

// Oldest returns the n least recently used devices ordered by
// (LastUsedAt, CreatedAt, ID). The input slice is not modified.
func Oldest(devices []domain.Device, n int) []domain.Device {
	if n <= 0 {
		return nil
	}
	sorted := make([]domain.Device, len(devices))
	copy(sorted, devices)
	sort.Slice(sorted, func(i, j int) bool {
		return lessRecentlyUsed(sorted[i], sorted[j])
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

func lessRecentlyUsed(a, b domain.Device) bool {
	if !a.LastUsedAt.Equal(b.LastUsedAt) {
		return a.LastUsedAt.Before(b.LastUsedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func newDevice(req Request, fingerprint string) *domain.Device {
	return &domain.Device{
		UserID:      req.UserID,
		Fingerprint: fingerprint,
		Label:       req.Info.DisplayLabel(),
		LastUsedAt:  req.Now,
		CreatedAt:   req.Now,
	}
}
