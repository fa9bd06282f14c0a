package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Freeeeeet/video_access/internal/model"
	"github.com/Freeeeeet/video_access/internal/repository"
)

type permissionRepository struct {
	s *Store
}

func (r *permissionRepository) Create(ctx context.Context, p *model.AccessPermission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.lock()()

	for _, existing := range r.s.st.permissions {
		if existing.VideoID == p.VideoID && existing.ViewerID == p.ViewerID {
			return repository.ErrConflict
		}
	}

	r.s.st.nextPermissionID++
	p.ID = r.s.st.nextPermissionID
	r.s.st.permissions[p.ID] = copyPermission(p)

	return nil
}

func (r *permissionRepository) GetByID(ctx context.Context, id int64) (*model.AccessPermission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.s.lock()()

	p, ok := r.s.st.permissions[id]
	if !ok {
		return nil, nil
	}
	return copyPermission(p), nil
}

func (r *permissionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.AccessPermission, error) {
	return r.GetByID(ctx, id)
}

func (r *permissionRepository) GetByVideoAndViewer(ctx context.Context, videoID, viewerID int64) (*model.AccessPermission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.s.lock()()

	for _, p := range r.s.st.permissions {
		if p.VideoID == videoID && p.ViewerID == viewerID {
			return copyPermission(p), nil
		}
	}
	return nil, nil
}

func (r *permissionRepository) Update(ctx context.Context, p *model.AccessPermission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.lock()()

	existing, ok := r.s.st.permissions[p.ID]
	if !ok {
		return fmt.Errorf("permission not found")
	}

	existing.Status = p.Status
	existing.ResponseMessage = p.ResponseMessage
	existing.RespondedAt = copyTime(p.RespondedAt)
	existing.Revoked = p.Revoked
	existing.SuspendedUntil = copyTime(p.SuspendedUntil)

	return nil
}

func (r *permissionRepository) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.s.lock()()

	if _, ok := r.s.st.permissions[id]; !ok {
		return fmt.Errorf("permission not found")
	}
	delete(r.s.st.permissions, id)

	return nil
}

// view собирает представление как JOIN: без видео или зрителя строки нет
func (r *permissionRepository) view(p *model.AccessPermission) (*model.AccessView, bool) {
	video, ok := r.s.st.videos[p.VideoID]
	if !ok {
		return nil, false
	}
	viewer, ok := r.s.st.users[p.ViewerID]
	if !ok {
		return nil, false
	}
	return &model.AccessView{
		AccessPermission: *copyPermission(p),
		VideoTitle:       video.Title,
		ViewerName:       viewer.Name,
	}, true
}

func (r *permissionRepository) GetView(ctx context.Context, id int64) (*model.AccessView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.s.lock()()

	p, ok := r.s.st.permissions[id]
	if !ok {
		return nil, nil
	}
	v, ok := r.view(p)
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (r *permissionRepository) list(ctx context.Context, match func(p *model.AccessPermission) bool, newestFirst bool) ([]*model.AccessView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.s.lock()()

	var views []*model.AccessView
	for _, p := range r.s.st.permissions {
		if !match(p) {
			continue
		}
		if v, ok := r.view(p); ok {
			views = append(views, v)
		}
	}

	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.RequestedAt.Equal(b.RequestedAt) {
			if newestFirst {
				return a.ID > b.ID
			}
			return a.ID < b.ID
		}
		if newestFirst {
			return a.RequestedAt.After(b.RequestedAt)
		}
		return a.RequestedAt.Before(b.RequestedAt)
	})

	return views, nil
}

func (r *permissionRepository) ListByCreatorAndStatus(ctx context.Context, creatorID int64, status model.AccessStatus) ([]*model.AccessView, error) {
	return r.list(ctx, func(p *model.AccessPermission) bool {
		video, ok := r.s.st.videos[p.VideoID]
		return ok && video.CreatorID == creatorID && p.Status == status
	}, false)
}

func (r *permissionRepository) ListByViewer(ctx context.Context, viewerID int64) ([]*model.AccessView, error) {
	return r.list(ctx, func(p *model.AccessPermission) bool {
		return p.ViewerID == viewerID
	}, true)
}

func (r *permissionRepository) ListByVideo(ctx context.Context, videoID int64) ([]*model.AccessView, error) {
	return r.list(ctx, func(p *model.AccessPermission) bool {
		return p.VideoID == videoID
	}, false)
}

func (r *permissionRepository) ListViewerIDsByVideo(ctx context.Context, videoID int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.s.lock()()

	var viewerIDs []int64
	for _, p := range r.s.st.permissions {
		if p.VideoID == videoID {
			viewerIDs = append(viewerIDs, p.ViewerID)
		}
	}
	return viewerIDs, nil
}

func (r *permissionRepository) CountPendingByCreator(ctx context.Context) (map[int64]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.s.lock()()

	counts := make(map[int64]int)
	for _, p := range r.s.st.permissions {
		if p.Status != model.AccessStatusPending {
			continue
		}
		if video, ok := r.s.st.videos[p.VideoID]; ok {
			counts[video.CreatorID]++
		}
	}
	return counts, nil
}
