package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeRepo is an in-memory session repository for protocol tests.
// afterInsert, when set, runs once after the next Insert; tests use it
// to interleave a concurrent writer between insert and re-read.
type fakeRepo struct {
	mu          sync.Mutex
	sessions    []*Session
	afterInsert func()
}

func (f *fakeRepo) Insert(ctx context.Context, sess *Session) error {
	f.mu.Lock()
	cp := *sess
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	f.sessions = append(f.sessions, &cp)
	hook := f.afterInsert
	f.afterInsert = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeRepo) FindActive(ctx context.Context, sessionID string, userID uuid.UUID) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.SessionID == sessionID && s.UserID == userID.String() && s.IsActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Session
	for _, s := range f.sessions {
		if s.UserID == userID.String() && s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeRepo) Deactivate(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.SessionID == sessionID {
			s.IsActive = false
		}
	}
	return nil
}

func (f *fakeRepo) DeactivateAllForUser(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID.String() {
			s.IsActive = false
		}
	}
	return nil
}

func (f *fakeRepo) DeactivateExcept(ctx context.Context, userID uuid.UUID, keepSessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID.String() && s.SessionID != keepSessionID {
			s.IsActive = false
		}
	}
	return nil
}

func (f *fakeRepo) TouchLastActive(ctx context.Context, sessionID string, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.SessionID == sessionID {
			s.LastActive = t
		}
	}
	return nil
}

func TestRegistry_CreateSupersedesPrevious(t *testing.T) {
	repo := &fakeRepo{}
	registry := NewRegistry(repo, time.Second)
	userID := uuid.New()
	ctx := context.Background()

	first, err := registry.Create(ctx, userID, "fp-1")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	second, err := registry.Create(ctx, userID, "fp-2")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	if first == second {
		t.Fatalf("Create() returned the same session id twice")
	}

	active, err := repo.FindActiveByUser(ctx, userID)
	if err != nil {
		t.Fatalf("FindActiveByUser() unexpected error: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active sessions = %d, want 1", len(active))
	}
	if active[0].SessionID != second {
		t.Errorf("surviving session = %s, want newest %s", active[0].SessionID, second)
	}
}

func TestRegistry_CreateManySequential(t *testing.T) {
	repo := &fakeRepo{}
	registry := NewRegistry(repo, time.Second)
	userID := uuid.New()
	ctx := context.Background()

	var last string
	for i := 0; i < 10; i++ {
		sid, err := registry.Create(ctx, userID, "fp")
		if err != nil {
			t.Fatalf("Create() #%d unexpected error: %v", i, err)
		}
		last = sid
	}

	active, _ := repo.FindActiveByUser(ctx, userID)
	if len(active) != 1 {
		t.Fatalf("active sessions = %d, want 1", len(active))
	}
	if active[0].SessionID != last {
		t.Errorf("surviving session = %s, want latest %s", active[0].SessionID, last)
	}
}

func TestRegistry_CreateLosesToNewerConcurrentRow(t *testing.T) {
	repo := &fakeRepo{}
	registry := NewRegistry(repo, time.Second)
	userID := uuid.New()
	ctx := context.Background()

	// A concurrent sign-in slips a newer active row in between our
	// insert and the reconcile read; newest wins, so our create fails.
	repo.afterInsert = func() {
		racer := &Session{
			UserID:            userID.String(),
			SessionID:         "racer",
			DeviceFingerprint: "fp-2",
			IsActive:          true,
		}
		racer.CreatedAt = time.Now().UTC().Add(time.Minute)
		repo.mu.Lock()
		repo.sessions = append(repo.sessions, racer)
		repo.mu.Unlock()
	}

	_, err := registry.Create(ctx, userID, "fp-1")
	if err != ErrConcurrentSessionConflict {
		t.Fatalf("Create() error = %v, want ErrConcurrentSessionConflict", err)
	}

	active, _ := repo.FindActiveByUser(ctx, userID)
	if len(active) != 1 {
		t.Fatalf("active sessions = %d, want 1", len(active))
	}
	if active[0].SessionID != "racer" {
		t.Errorf("surviving session = %s, want racer", active[0].SessionID)
	}
}

func TestRegistry_CreateWinsOverOlderConcurrentRow(t *testing.T) {
	repo := &fakeRepo{}
	registry := NewRegistry(repo, time.Second)
	userID := uuid.New()
	ctx := context.Background()

	repo.afterInsert = func() {
		racer := &Session{
			UserID:            userID.String(),
			SessionID:         "racer",
			DeviceFingerprint: "fp-2",
			IsActive:          true,
		}
		racer.CreatedAt = time.Now().UTC().Add(-time.Minute)
		repo.mu.Lock()
		repo.sessions = append(repo.sessions, racer)
		repo.mu.Unlock()
	}

	sid, err := registry.Create(ctx, userID, "fp-1")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	active, _ := repo.FindActiveByUser(ctx, userID)
	if len(active) != 1 {
		t.Fatalf("active sessions = %d, want 1", len(active))
	}
	if active[0].SessionID != sid {
		t.Errorf("surviving session = %s, want %s", active[0].SessionID, sid)
	}
}

func TestRegistry_CreateSweptByConcurrentDeactivate(t *testing.T) {
	repo := &fakeRepo{}
	registry := NewRegistry(repo, time.Second)
	userID := uuid.New()
	ctx := context.Background()

	// A concurrent sign-in's deactivate pass lands between our insert
	// and the reconcile read, leaving zero active rows. Our row is
	// already inactive, so reporting the id as success would hand the
	// caller a dead session.
	repo.afterInsert = func() {
		_ = repo.DeactivateAllForUser(ctx, userID)
	}

	_, err := registry.Create(ctx, userID, "fp-1")
	if err != ErrConcurrentSessionConflict {
		t.Fatalf("Create() error = %v, want ErrConcurrentSessionConflict", err)
	}
}

func TestRegistry_ValidateFingerprintMismatchDeactivates(t *testing.T) {
	repo := &fakeRepo{}
	registry := NewRegistry(repo, time.Second)
	userID := uuid.New()
	ctx := context.Background()

	sid, err := registry.Create(ctx, userID, "fp-1")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	ok, err := registry.Validate(ctx, sid, userID, "fp-other")
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if ok {
		t.Errorf("Validate() with wrong fingerprint = true, want false")
	}

	active, _ := repo.FindActiveByUser(ctx, userID)
	if len(active) != 0 {
		t.Errorf("session still active after fingerprint mismatch")
	}

	// A later validate with the right fingerprint also fails now.
	ok, err = registry.Validate(ctx, sid, userID, "fp-1")
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if ok {
		t.Errorf("Validate() after forced deactivation = true, want false")
	}
}

func TestRegistry_ValidateTouchesLastActive(t *testing.T) {
	repo := &fakeRepo{}
	registry := NewRegistry(repo, time.Second)
	userID := uuid.New()
	ctx := context.Background()

	sid, err := registry.Create(ctx, userID, "fp-1")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	before := time.Now().UTC().Add(-time.Hour)
	_ = repo.TouchLastActive(ctx, sid, before)

	ok, err := registry.Validate(ctx, sid, userID, "fp-1")
	if err != nil || !ok {
		t.Fatalf("Validate() = %v, %v, want true, nil", ok, err)
	}

	sess, err := repo.FindActive(ctx, sid, userID)
	if err != nil {
		t.Fatalf("FindActive() unexpected error: %v", err)
	}
	if !sess.LastActive.After(before) {
		t.Errorf("last_active not refreshed by Validate()")
	}
}

func TestRegistry_EndIsIdempotent(t *testing.T) {
	repo := &fakeRepo{}
	registry := NewRegistry(repo, time.Second)
	userID := uuid.New()
	ctx := context.Background()

	sid, err := registry.Create(ctx, userID, "fp-1")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	if err := registry.End(ctx, sid); err != nil {
		t.Fatalf("End() unexpected error: %v", err)
	}
	if err := registry.End(ctx, sid); err != nil {
		t.Errorf("End() on inactive session error = %v, want nil", err)
	}
	if err := registry.End(ctx, "absent"); err != nil {
		t.Errorf("End() on absent session error = %v, want nil", err)
	}
}

func TestRegistry_ValidateAbsentSession(t *testing.T) {
	repo := &fakeRepo{}
	registry := NewRegistry(repo, time.Second)

	ok, err := registry.Validate(context.Background(), "nope", uuid.New(), "fp")
	if err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	if ok {
		t.Errorf("Validate() on absent session = true, want false")
	}
}
