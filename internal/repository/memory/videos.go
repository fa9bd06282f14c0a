package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/repository"
)

type videoRepository struct {
	s *Store
}

// codeTaken проверяет уникальность кода среди всех видео, кроме exceptID
func (r *videoRepository) codeTaken(code string, exceptID int64) bool {
	for id, v := range r.s.st.videos {
		if id != exceptID && v.AccessCode != nil && *v.AccessCode == code {
			return true
		}
	}
	return false
}

func (r *videoRepository) Create(ctx context.Context, video *model.Video) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.lock()()

	if video.AccessCode != nil && r.codeTaken(*video.AccessCode, 0) {
		return repository.ErrConflict
	}

	r.s.st.nextVideoID++
	video.ID = r.s.st.nextVideoID
	if video.CreatedAt.IsZero() {
		video.CreatedAt = r.s.now()
	}
	r.s.st.videos[video.ID] = copyVideo(video)

	return nil
}

func (r *videoRepository) GetByID(ctx context.Context, id int64) (*model.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.s.lock()()

	v, ok := r.s.st.videos[id]
	if !ok {
		return nil, nil
	}
	return copyVideo(v), nil
}

// GetByIDForUpdate совпадает с GetByID: транзакции и так сериализованы
func (r *videoRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Video, error) {
	return r.GetByID(ctx, id)
}

func (r *videoRepository) GetByAccessCode(ctx context.Context, code string) (*model.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.s.lock()()

	for _, v := range r.s.st.videos {
		if v.AccessCode != nil && *v.AccessCode == code {
			return copyVideo(v), nil
		}
	}
	return nil, nil
}

func (r *videoRepository) GetByCreator(ctx context.Context, creatorID int64) ([]*model.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.s.lock()()

	var videos []*model.Video
	for _, v := range r.s.st.videos {
		if v.CreatorID == creatorID {
			videos = append(videos, copyVideo(v))
		}
	}
	sort.Slice(videos, func(i, j int) bool {
		if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].ID > videos[j].ID
		}
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})

	return videos, nil
}

func (r *videoRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	defer r.s.lock()()

	return r.codeTaken(code, 0), nil
}

func (r *videoRepository) SetAccessCode(ctx context.Context, id int64, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.lock()()

	v, ok := r.s.st.videos[id]
	if !ok {
		return fmt.Errorf("video not found")
	}
	if r.codeTaken(code, id) {
		return repository.ErrConflict
	}

	v.AccessCode = &code
	v.RequiresAccessCode = true

	return nil
}

func (r *videoRepository) SetRequiresAccessCode(ctx context.Context, id int64, requires bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.lock()()

	v, ok := r.s.st.videos[id]
	if !ok {
		return fmt.Errorf("video not found")
	}
	v.RequiresAccessCode = requires

	return nil
}

func (r *videoRepository) SetPublished(ctx context.Context, id int64, published bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.lock()()

	v, ok := r.s.st.videos[id]
	if !ok {
		return fmt.Errorf("video not found")
	}
	v.IsPublished = published

	return nil
}
