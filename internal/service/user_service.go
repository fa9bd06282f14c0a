package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Freeeeeet/video_access/internal/model"
)

// UserService справочник пользователей, из которого ядро читает роли
type UserService struct {
	base
}

func NewUserService(deps Deps) *UserService {
	return &UserService{base: newBase(deps)}
}

// RegisterUser создаёт пользователя с ролью
func (s *UserService) RegisterUser(ctx context.Context, name, email string, role model.Role) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("user name is required: %w", model.ErrInvalidInput)
	}

	switch role {
	case model.RoleCreator, model.RoleViewer, model.RoleAdmin:
	default:
		return nil, fmt.Errorf("unknown role %q: %w", role, model.ErrInvalidInput)
	}

	user := &model.User{
		Name:      name,
		Email:     strings.TrimSpace(email),
		Role:      role,
		CreatedAt: s.clock(),
	}

	err := s.store.Users().Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(role)),
	)

	return user, nil
}

// GetUser получает пользователя по ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user == nil {
		return nil, fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}

	return user, nil
}

// LinkTelegram привязывает чат Telegram для уведомлений. nil отключает уведомления.
func (s *UserService) LinkTelegram(ctx context.Context, userID int64, chatID *int64) error {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}

	err := s.store.Users().SetTelegramChatID(ctx, userID, chatID)
	if err != nil {
		return fmt.Errorf("link telegram: %w", err)
	}

	s.logger.Info("Telegram chat linked",
		zap.Int64("user_id", userID),
		zap.Bool("enabled", chatID != nil),
	)

	return nil
}
