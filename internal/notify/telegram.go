package notify

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/video_access/internal/model"
)

// Sender отправляет сообщение в Telegram. *bot.Bot удовлетворяет этому интерфейсу.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram уведомляет авторов и зрителей через бота
type Telegram struct {
	sender Sender
	logger *zap.Logger
}

func NewTelegram(sender Sender, logger *zap.Logger) *Telegram {
	return &Telegram{
		sender: sender,
		logger: logger,
	}
}

// AccessRequested сообщает автору о новом запросе доступа
func (t *Telegram) AccessRequested(ctx context.Context, creator *model.User, view *model.AccessView) error {
	text := fmt.Sprintf(
		"🔔 <b>Новый запрос доступа</b>\n\n"+
			"Видео: %s\n"+
			"Зритель: %s\n",
		html.EscapeString(view.VideoTitle),
		html.EscapeString(view.ViewerName),
	)
	if view.RequestReason != "" {
		text += fmt.Sprintf("Причина: %s\n", html.EscapeString(view.RequestReason))
	}

	return t.send(ctx, creator, text)
}

// AccessChanged сообщает зрителю о решении автора
func (t *Telegram) AccessChanged(ctx context.Context, viewer *model.User, view *model.AccessView, action model.AccessAction) error {
	var header string
	switch action {
	case model.ActionApproved:
		header = "✅ Доступ к видео одобрен"
	case model.ActionDenied:
		header = "❌ Запрос доступа отклонён"
	case model.ActionSuspended:
		header = "⏸ Доступ приостановлен"
	case model.ActionRevokedPermanent:
		header = "🚫 Доступ отозван"
	case model.ActionRestored:
		header = "▶️ Доступ восстановлен"
	default:
		return nil
	}

	text := fmt.Sprintf("<b>%s</b>\n\nВидео: %s\n", header, html.EscapeString(view.VideoTitle))
	if action == model.ActionSuspended && view.SuspendedUntil != nil {
		text += fmt.Sprintf("До: %s\n", view.SuspendedUntil.UTC().Format(time.DateTime)+" UTC")
	}
	if view.ResponseMessage != "" && action != model.ActionSuspended && action != model.ActionRestored {
		text += fmt.Sprintf("Сообщение автора: %s\n", html.EscapeString(view.ResponseMessage))
	}

	return t.send(ctx, viewer, text)
}

// PendingDigest напоминает автору о необработанных запросах
func (t *Telegram) PendingDigest(ctx context.Context, creator *model.User, pending int) error {
	if pending <= 0 {
		return nil
	}

	text := fmt.Sprintf("📋 Ожидают решения запросов доступа: <b>%d</b>", pending)
	return t.send(ctx, creator, text)
}

// send пропускает пользователей без привязанного чата
func (t *Telegram) send(ctx context.Context, user *model.User, text string) error {
	if user.TelegramChatID == nil {
		t.logger.Debug("User has no telegram chat, skipping notification",
			zap.Int64("user_id", user.ID),
		)
		return nil
	}

	_, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    *user.TelegramChatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}
