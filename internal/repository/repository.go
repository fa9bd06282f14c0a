package repository

import (
	"context"
	"errors"

	"github.com/Freeeeeet/video_access/internal/model"
)

// ErrConflict означает нарушение ограничения уникальности в хранилище
var ErrConflict = errors.New("record conflict")

// Store объединяет репозитории, работающие в одной транзакционной границе.
// Одиночные чтения возвращают nil, nil, если строки нет.
type Store interface {
	Users() UserRepository
	Videos() VideoRepository
	Permissions() PermissionRepository
	Events() EventRepository

	// InTx выполняет fn атомарно. Ошибка из fn откатывает все изменения.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error)
	SetTelegramChatID(ctx context.Context, id int64, chatID *int64) error
}

type VideoRepository interface {
	Create(ctx context.Context, video *model.Video) error
	GetByID(ctx context.Context, id int64) (*model.Video, error)
	// GetByIDForUpdate блокирует строку видео до конца транзакции
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Video, error)
	GetByAccessCode(ctx context.Context, code string) (*model.Video, error)
	GetByCreator(ctx context.Context, creatorID int64) ([]*model.Video, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// SetAccessCode возвращает ErrConflict, если код уже занят другим видео
	SetAccessCode(ctx context.Context, id int64, code string) error
	SetRequiresAccessCode(ctx context.Context, id int64, requires bool) error
	SetPublished(ctx context.Context, id int64, published bool) error
}

type PermissionRepository interface {
	// Create возвращает ErrConflict, если пара (video, viewer) уже существует
	Create(ctx context.Context, p *model.AccessPermission) error
	GetByID(ctx context.Context, id int64) (*model.AccessPermission, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.AccessPermission, error)
	GetByVideoAndViewer(ctx context.Context, videoID, viewerID int64) (*model.AccessPermission, error)
	Update(ctx context.Context, p *model.AccessPermission) error
	Delete(ctx context.Context, id int64) error

	GetView(ctx context.Context, id int64) (*model.AccessView, error)
	ListByCreatorAndStatus(ctx context.Context, creatorID int64, status model.AccessStatus) ([]*model.AccessView, error)
	ListByViewer(ctx context.Context, viewerID int64) ([]*model.AccessView, error)
	ListByVideo(ctx context.Context, videoID int64) ([]*model.AccessView, error)
	ListViewerIDsByVideo(ctx context.Context, videoID int64) ([]int64, error)
	CountPendingByCreator(ctx context.Context) (map[int64]int, error)
}

type EventRepository interface {
	Record(ctx context.Context, event *model.AccessEvent) error
	ListByVideo(ctx context.Context, videoID int64, limit int) ([]*model.AccessEvent, error)
}
