package memory

import (
	"context"
	"sort"

	"github.com/Freeeeeet/video_access/internal/model"
)

type userRepository struct {
	s *Store
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.lock()()

	r.s.st.nextUserID++
	user.ID = r.s.st.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.s.now()
	}
	r.s.st.users[user.ID] = copyUser(user)

	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.s.lock()()

	u, ok := r.s.st.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.s.lock()()

	users := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.s.st.users[id]; ok {
			users = append(users, copyUser(u))
		}
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Name < users[j].Name })

	return users, nil
}

func (r *userRepository) SetTelegramChatID(ctx context.Context, id int64, chatID *int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.lock()()

	u, ok := r.s.st.users[id]
	if !ok {
		return nil
	}
	if chatID == nil {
		u.TelegramChatID = nil
		return nil
	}
	v := *chatID
	u.TelegramChatID = &v

	return nil
}
