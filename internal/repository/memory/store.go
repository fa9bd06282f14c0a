package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/repository"
)

type state struct {
	users       map[int64]*model.User
	videos      map[int64]*model.Video
	permissions map[int64]*model.AccessPermission
	events      []*model.AccessEvent

	nextUserID       int64
	nextVideoID      int64
	nextPermissionID int64
}

func newState() *state {
	return &state{
		users:       make(map[int64]*model.User),
		videos:      make(map[int64]*model.Video),
		permissions: make(map[int64]*model.AccessPermission),
	}
}

// clone делает глубокую копию для отката транзакции
func (st *state) clone() *state {
	cp := newState()
	for id, u := range st.users {
		cp.users[id] = copyUser(u)
	}
	for id, v := range st.videos {
		cp.videos[id] = copyVideo(v)
	}
	for id, p := range st.permissions {
		cp.permissions[id] = copyPermission(p)
	}
	// события неизменяемы, достаточно копии среза
	cp.events = append([]*model.AccessEvent(nil), st.events...)
	cp.nextUserID = st.nextUserID
	cp.nextVideoID = st.nextVideoID
	cp.nextPermissionID = st.nextPermissionID
	return cp
}

// Store реализует repository.Store в памяти процесса.
// Ограничения уникальности те же, что и в схеме PostgreSQL.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
	now  func() time.Time
}

func New() *Store {
	return &Store{
		mu:  &sync.Mutex{},
		st:  newState(),
		now: time.Now,
	}
}

// lock захватывает мьютекс вне транзакции; внутри транзакции он уже захвачен
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Users() repository.UserRepository {
	return &userRepository{s: s}
}

func (s *Store) Videos() repository.VideoRepository {
	return &videoRepository{s: s}
}

func (s *Store) Permissions() repository.PermissionRepository {
	return &permissionRepository{s: s}
}

func (s *Store) Events() repository.EventRepository {
	return &eventRepository{s: s}
}

// InTx сериализует транзакции и восстанавливает снимок состояния при ошибке.
// Вложенный вызов ведёт себя как savepoint.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	snapshot := s.st.clone()
	tx := &Store{mu: s.mu, st: s.st, inTx: true, now: s.now}

	if err := fn(tx); err != nil {
		*s.st = *snapshot
		return err
	}

	return nil
}

func copyUser(u *model.User) *model.User {
	cp := *u
	if u.TelegramChatID != nil {
		id := *u.TelegramChatID
		cp.TelegramChatID = &id
	}
	return &cp
}

func copyVideo(v *model.Video) *model.Video {
	cp := *v
	if v.AccessCode != nil {
		code := *v.AccessCode
		cp.AccessCode = &code
	}
	return &cp
}

func copyPermission(p *model.AccessPermission) *model.AccessPermission {
	cp := *p
	cp.RespondedAt = copyTime(p.RespondedAt)
	cp.SuspendedUntil = copyTime(p.SuspendedUntil)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
