package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"courseplatform/internal/domain"

	"github.com/google/uuid"
)

type userLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// MemoryDeviceRepository keeps devices in process memory. InUserTx holds a
// per-user mutex and restores the user's devices if fn fails.
type MemoryDeviceRepository struct {
	users userLookup

	mu      sync.Mutex
	devices map[uint]domain.Device
	nextID  uint

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func NewMemoryDeviceRepository(users userLookup) *MemoryDeviceRepository {
	return &MemoryDeviceRepository{
		users:   users,
		devices: make(map[uint]domain.Device),
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *MemoryDeviceRepository) userLock(userID uuid.UUID) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	return l
}

func (r *MemoryDeviceRepository) InUserTx(ctx context.Context, userID uuid.UUID, fn func(tx DeviceTx) error) error {
	if _, err := r.users.GetByID(ctx, userID); err != nil {
		return err
	}

	l := r.userLock(userID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot, _ := r.ListForUser(ctx, userID)
	if err := fn(r); err != nil {
		r.restore(userID, snapshot)
		return err
	}
	return nil
}

func (r *MemoryDeviceRepository) restore(userID uuid.UUID, snapshot []domain.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, d := range r.devices {
		if d.UserID == userID {
			delete(r.devices, id)
		}
	}
	for _, d := range snapshot {
		r.devices[d.ID] = d
	}
}

func (r *MemoryDeviceRepository) ListForUser(_ context.Context, userID uuid.UUID) ([]domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Device
	for _, d := range r.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastUsedAt.Equal(out[j].LastUsedAt) {
			return out[i].LastUsedAt.After(out[j].LastUsedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *MemoryDeviceRepository) Create(_ context.Context, device *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.devices {
		if d.UserID == device.UserID && d.Fingerprint == device.Fingerprint {
			return domain.ErrStorageConflict
		}
	}
	r.nextID++
	device.ID = r.nextID
	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now()
	}
	if device.LastUsedAt.IsZero() {
		device.LastUsedAt = device.CreatedAt
	}
	r.devices[device.ID] = *device
	return nil
}

func (r *MemoryDeviceRepository) Touch(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return domain.ErrDeviceNotFound
	}
	d.LastUsedAt = at
	r.devices[id] = d
	return nil
}

func (r *MemoryDeviceRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return domain.ErrDeviceNotFound
	}
	delete(r.devices, id)
	return nil
}

func (r *MemoryDeviceRepository) GetByID(_ context.Context, id uint) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, domain.ErrDeviceNotFound
	}
	return &d, nil
}

func (r *MemoryDeviceRepository) DeleteOwned(_ context.Context, userID uuid.UUID, id uint) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok || d.UserID != userID {
		return nil, domain.ErrDeviceNotFound
	}
	delete(r.devices, id)
	return &d, nil
}

func (r *MemoryDeviceRepository) DeleteByID(_ context.Context, id uint) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, domain.ErrDeviceNotFound
	}
	delete(r.devices, id)
	return &d, nil
}

func (r *MemoryDeviceRepository) DeleteUnusedSince(_ context.Context, cutoff time.Time) ([]domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted []domain.Device
	for id, d := range r.devices {
		if d.LastUsedAt.Before(cutoff) {
			deleted = append(deleted, d)
			delete(r.devices, id)
		}
	}
	return deleted, nil
}
