package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/repository"
	"github.com/Freeeeeet/video_access/internal/repository/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeCache expires entries by the fake clock and remembers the last ttl
type fakeCache struct {
	clock   *fakeClock
	entries map[[2]int64]cacheEntry
	lastTTL time.Duration
	sets    int
}

type cacheEntry struct {
	allowed   bool
	expiresAt time.Time
}

func newFakeCache(clock *fakeClock) *fakeCache {
	return &fakeCache{clock: clock, entries: make(map[[2]int64]cacheEntry)}
}

func (c *fakeCache) Get(_ context.Context, videoID, viewerID int64) (bool, bool, error) {
	e, ok := c.entries[[2]int64{videoID, viewerID}]
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		return false, false, nil
	}
	return e.allowed, true, nil
}

func (c *fakeCache) Set(_ context.Context, videoID, viewerID int64, allowed bool, ttl time.Duration) error {
	c.entries[[2]int64{videoID, viewerID}] = cacheEntry{allowed: allowed, expiresAt: c.clock.Now().Add(ttl)}
	c.lastTTL = ttl
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, videoID int64, viewerIDs ...int64) error {
	for _, id := range viewerIDs {
		delete(c.entries, [2]int64{videoID, id})
	}
	return nil
}

// countingRecorder counts metric calls
type countingRecorder struct {
	mu          sync.Mutex
	decisions   map[string]int
	transitions map[model.AccessAction]int
	redemptions map[string]int
	collisions  int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		decisions:   make(map[string]int),
		transitions: make(map[model.AccessAction]int),
		redemptions: make(map[string]int),
	}
}

func (r *countingRecorder) Decision(_ bool, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions[reason]++
}

func (r *countingRecorder) Transition(action model.AccessAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions[action]++
}

func (r *countingRecorder) Redemption(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redemptions[outcome]++
}

func (r *countingRecorder) CodeCollision() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collisions++
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) AccessRequested(ctx context.Context, creator *model.User, view *model.AccessView) error {
	args := m.Called(ctx, creator, view)
	return args.Error(0)
}

func (m *mockNotifier) AccessChanged(ctx context.Context, viewer *model.User, view *model.AccessView, action model.AccessAction) error {
	args := m.Called(ctx, viewer, view, action)
	return args.Error(0)
}

func (m *mockNotifier) PendingDigest(ctx context.Context, creator *model.User, pending int) error {
	args := m.Called(ctx, creator, pending)
	return args.Error(0)
}

// failingStore fails every audit write inside a transaction
type failingStore struct {
	repository.Store
	err error
}

func (s failingStore) Events() repository.EventRepository {
	return failingEvents{err: s.err}
}

func (s failingStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.InTx(ctx, func(tx repository.Store) error {
		return fn(failingStore{Store: tx, err: s.err})
	})
}

type failingEvents struct {
	err error
}

func (f failingEvents) Record(context.Context, *model.AccessEvent) error {
	return f.err
}

func (f failingEvents) ListByVideo(context.Context, int64, int) ([]*model.AccessEvent, error) {
	return nil, f.err
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	clock   *fakeClock
	metrics *countingRecorder

	access *AccessService
	codes  *AccessCodeService
	videos *VideoService
	users  *UserService

	creator *model.User
	viewerA *model.User
	viewerB *model.User
	video   *model.Video
}

func newFixture(t *testing.T, opts ...func(d *Deps)) *fixture {
	t.Helper()

	f := &fixture{
		ctx:     context.Background(),
		store:   memory.New(),
		clock:   newFakeClock(),
		metrics: newCountingRecorder(),
	}

	deps := Deps{
		Store:   f.store,
		Metrics: f.metrics,
		Clock:   f.clock.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	f.access = NewAccessService(deps)
	f.codes = NewAccessCodeService(deps)
	f.videos = NewVideoService(deps)
	f.users = NewUserService(deps)

	f.creator = f.addUser(t, "Carol", model.RoleCreator)
	f.viewerA = f.addUser(t, "Alice", model.RoleViewer)
	f.viewerB = f.addUser(t, "Bob", model.RoleViewer)
	f.video = f.addVideo(t, f.creator.ID, "Lecture 1", true)

	return f
}

func (f *fixture) addUser(t *testing.T, name string, role model.Role) *model.User {
	t.Helper()
	user, err := f.users.RegisterUser(f.ctx, name, name+"@example.com", role)
	require.NoError(t, err)
	return user
}

// addVideo creates a video directly in the store without an access code
func (f *fixture) addVideo(t *testing.T, creatorID int64, title string, published bool) *model.Video {
	t.Helper()
	video := &model.Video{CreatorID: creatorID, Title: title, IsPublished: published}
	require.NoError(t, f.store.Videos().Create(f.ctx, video))
	return video
}

func (f *fixture) hasAccess(t *testing.T, videoID, viewerID int64) bool {
	t.Helper()
	ok, err := f.access.HasAccess(f.ctx, videoID, viewerID)
	require.NoError(t, err)
	return ok
}

// approved creates an approved permission for viewer through the request/approve cycle
func (f *fixture) approved(t *testing.T, viewerID int64) *model.AccessView {
	t.Helper()
	req, err := f.access.RequestAccess(f.ctx, viewerID, f.video.ID, "please")
	require.NoError(t, err)
	view, err := f.access.ApproveAccess(f.ctx, req.ID, f.creator.ID, "ok")
	require.NoError(t, err)
	return view
}
