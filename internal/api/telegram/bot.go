package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "mammo-report/internal/application"
	"mammo-report/internal/domain/entity"
)

const (
	msgStart = `👋 Здравствуйте! Я помогаю с первичным разбором маммограмм.

📸 Отправьте снимок (фото или файлом), в подписи можно указать клинические заметки.
Я подготовлю черновик отчёта, оценю срочность и поставлю снимок в очередь на просмотр.

📋 Команды:
/check — загрузить снимок
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте /check
2️⃣ Пришлите снимок в JPEG или PNG, заметки напишите в подписи
3️⃣ Получите находки, категорию BI-RADS и уровень срочности

⚠️ Отчёт сформирован моделью и требует проверки врачом-рентгенологом.

📋 Команды:
/check — загрузить снимок
/cancel — отменить операцию`

	msgAwaitingScan    = "📸 Отправьте снимок для анализа. Заметки можно добавить в подпись."
	msgCancelled       = "❌ Операция отменена. Отправьте /check для нового снимка."
	msgSendScan        = "📸 Пожалуйста, отправьте снимок. Начните с /check."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Генерирую отчёт, это может занять до пары минут..."
	msgBusy            = "⏳ Предыдущий снимок ещё обрабатывается, дождитесь результата."
	msgNotImage        = "⚠️ Файл не похож на изображение. Пришлите JPEG или PNG."
	msgProcessingError = "⚠️ Не удалось обработать снимок. Попробуйте другой файл."
	msgTimeout         = "⌛ Модель не успела ответить. Попробуйте позже."
	msgUnavailable     = "🚫 Модель сейчас недоступна. Попробуйте позже."
)

type Users interface {
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)
	BeginCheck(ctx context.Context, userID, chatID int64) (*entity.User, error)
	StartProcessing(ctx context.Context, userID, chatID int64) (*entity.User, error)
	Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error)
	Finish(ctx context.Context, userID int64) error
}

type Triage interface {
	Submit(ctx context.Context, scan entity.ScanUpload) (*entity.QueueItem, error)
}

// Bot представляет Telegram-бота
type Bot struct {
	api    *tgbotapi.BotAPI
	users  Users
	triage Triage
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewBot создаёт нового бота
func NewBot(token string, users Users, triage Triage, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("authorized on telegram", "account", api.Self.UserName)

	return &Bot{
		api:    api,
		users:  users,
		triage: triage,
		logger: logger,
	}, nil
}

// Run обрабатывает сообщения до отмены ctx и ждёт начатые генерации
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	// Посты каналов и анонимные администраторы приходят без отправителя.
	if msg.From == nil {
		return
	}

	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.logger.Error("get user", "error", err)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	fileID, upload, ok := scanFromMessage(msg)
	if !ok {
		if msg.Document != nil {
			b.sendMessage(msg.Chat.ID, msgNotImage)
			return
		}
		b.sendMessage(msg.Chat.ID, msgSendScan)
		return
	}

	if _, err := b.users.StartProcessing(ctx, user.ID, user.ChatID); err != nil {
		if errors.Is(err, entity.ErrBusy) {
			b.sendMessage(msg.Chat.ID, msgBusy)
			return
		}
		b.logger.Error("set processing state", "error", err)
		return
	}
	b.sendMessage(msg.Chat.ID, msgProcessing)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.processScan(ctx, user, fileID, upload)
	}()
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	switch msg.Command() {
	case "start":
		b.resetUser(ctx, user)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "check":
		_, err := b.users.BeginCheck(ctx, user.ID, user.ChatID)
		switch {
		case errors.Is(err, entity.ErrBusy):
			b.sendMessage(msg.Chat.ID, msgBusy)
		case err != nil:
			b.logger.Error("begin check", "error", err)
		default:
			b.sendMessage(msg.Chat.ID, msgAwaitingScan)
		}

	case "cancel":
		b.resetUser(ctx, user)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

func (b *Bot) processScan(ctx context.Context, user *entity.User, fileID string, upload entity.ScanUpload) {
	defer func() {
		if err := b.users.Finish(context.WithoutCancel(ctx), user.ID); err != nil {
			b.logger.Error("finish processing", "error", err)
		}
	}()

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		b.logger.Error("download scan", "error", err)
		b.sendMessage(user.ChatID, msgProcessingError)
		return
	}
	upload.Image = data

	item, err := b.triage.Submit(ctx, upload)
	if err != nil {
		b.logger.Error("submit scan", "user", user.ID, "error", err)
		b.sendMessage(user.ChatID, failureMessage(err))
		return
	}

	b.logger.Info("scan queued", "user", user.ID, "item", item.ID, "level", item.UrgencyLevel)
	b.sendMessage(user.ChatID, FormatQueueItem(item))
}

func (b *Bot) resetUser(ctx context.Context, user *entity.User) {
	if _, err := b.users.Cancel(ctx, user.ID, user.ChatID); err != nil {
		b.logger.Error("reset user state", "error", err)
	}
}

// scanFromMessage достаёт снимок из фото или документа-изображения.
func scanFromMessage(msg *tgbotapi.Message) (string, entity.ScanUpload, bool) {
	upload := entity.ScanUpload{Notes: strings.TrimSpace(msg.Caption)}

	if len(msg.Photo) > 0 {
		// Берём фото с максимальным разрешением
		photo := msg.Photo[len(msg.Photo)-1]
		upload.FileName = photo.FileUniqueID + ".jpg"
		upload.FileType = "image/jpeg"
		return photo.FileID, upload, true
	}

	if doc := msg.Document; doc != nil && strings.HasPrefix(doc.MimeType, "image/") {
		upload.FileName = doc.FileName
		upload.FileType = doc.MimeType
		return doc.FileID, upload, true
	}

	return "", upload, false
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message", "chat", chatID, "error", err)
	}
}

func failureMessage(err error) string {
	switch app.FailureKindOf(err) {
	case app.FailureTimeout:
		return msgTimeout
	case app.FailureUnavailable:
		return msgUnavailable
	default:
		return msgProcessingError
	}
}
