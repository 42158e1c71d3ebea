// Package bot implements the conversational client: creating and
// listing tasks from a Telegram chat. All domain logic stays in the
// services; the bot only collects input and renders results.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-tracker/internal/model"
	"todo-tracker/internal/notify"
	"todo-tracker/internal/repository"
	"todo-tracker/internal/service"
)

const (
	cbCompletePrefix = "complete:"

	btnSkip         = "⏭️ Пропустить"
	btnCancelDialog = "⏪ Отменить ввод"

	sessionTTL = 30 * time.Minute
)

// Bot aggregates the Telegram API with the services.
type Bot struct {
	api        *tgbotapi.BotAPI
	profileSvc *service.ProfileService
	taskSvc    *service.TaskService
	catSvc     *service.CategoryService
	formatter  *notify.Formatter
	log        *slog.Logger
	sessions   *sessionStore
}

func New(token string, profileSvc *service.ProfileService, taskSvc *service.TaskService, catSvc *service.CategoryService, formatter *notify.Formatter, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info("bot authorized", "account", api.Self.UserName)

	return &Bot{
		api:        api,
		profileSvc: profileSvc,
		taskSvc:    taskSvc,
		catSvc:     catSvc,
		formatter:  formatter,
		log:        log,
		sessions:   newSessionStore(sessionTTL),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error("handle callback", "error", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error("handle message", "error", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelInput(msg.Text) {
		b.sessions.clear(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Диалог создания задачи отменён.")
	}

	if msg.IsCommand() {
		return b.handleCommand(ctx, msg)
	}

	if _, ok := b.sessions.get(msg.From.ID); ok {
		return b.handleDialogStep(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /newtask, чтобы добавить задачу, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newtask":
		return b.startDialog(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "cancel":
		b.sessions.clear(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Диалог создания задачи отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureProfile(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"👋 Привет, %s!\n<b>Я помогу отслеживать задачи и напомню о дедлайнах.</b>\n\nКоманды:\n"+
			"• /newtask — добавить новую задачу\n"+
			"• /tasks — показать текущие задачи\n"+
			"• /help — подсказки\n"+
			"• /cancel — отменить текущий ввод",
		html.EscapeString(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• /newtask — добавить задачу пошагово\n" +
		"• /tasks — показать активные задачи, завершить или отключить напоминания по кнопке\n" +
		"• /cancel — отменить текущий ввод\n\n" +
		"Когда дедлайн пройдёт, я пришлю уведомление. Кнопка «🔕 Не оповещать» отключает напоминания по задаче."
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startDialog(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureProfile(ctx, msg.From); err != nil {
		return err
	}
	b.sessions.start(msg.From.ID)
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Создаём новую задачу.\n<b>Шаг 1:</b> как её назвать?", cancelKeyboard())
}

func (b *Bot) handleDialogStep(ctx context.Context, msg *tgbotapi.Message) error {
	sess, ok := b.sessions.get(msg.From.ID)
	if !ok {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch sess.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Название не может быть пустым. Попробуй ещё раз.", cancelKeyboard())
		}
		sess.draft.Title = text
		sess.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Добавь короткое описание (или нажми «Пропустить»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			sess.draft.Description = text
		}
		sess.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Укажи дедлайн в формате <code>2025-11-30 14:00</code>.", cancelKeyboard())
	case stageDueDate:
		parsed, err := notify.ParseLocal(text, b.formatter.Location())
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Не могу распознать дату. Используй формат <code>2025-11-30 14:00</code>.", cancelKeyboard())
		}
		sess.draft.DueDate = &parsed
		sess.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Выбери категорию или отправь свою (можно «Пропустить»).", b.categoryKeyboard(ctx))
	case stageCategory:
		if !isSkipInput(text) {
			sess.draft.Category = text
		}
		err := b.finishDialog(ctx, msg.From, sess.draft, msg.Chat.ID)
		b.sessions.clear(msg.From.ID)
		return err
	default:
		b.sessions.clear(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз через /newtask.")
	}
}

func (b *Bot) finishDialog(ctx context.Context, from *tgbotapi.User, d draft, chatID int64) error {
	profile, err := b.ensureProfile(ctx, from)
	if err != nil {
		return err
	}

	var categoryIDs []string
	if d.Category != "" {
		category, _, err := b.catSvc.GetOrCreate(ctx, d.Category)
		if err != nil {
			return b.sendText(chatID, fmt.Sprintf("Не удалось сохранить категорию: %s", html.EscapeString(err.Error())))
		}
		categoryIDs = append(categoryIDs, category.ID)
	}

	task, err := b.taskSvc.Create(ctx, service.CreateTaskInput{
		Title:       d.Title,
		Description: d.Description,
		DueDate:     d.DueDate,
		ProfileID:   profile.ID,
		CategoryIDs: categoryIDs,
	})
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось сохранить задачу: %s", html.EscapeString(err.Error())))
	}

	b.log.Info("task created", "task_id", task.ID, "profile_id", profile.ID)

	var summary strings.Builder
	summary.WriteString("✅ <b>Задача сохранена</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>Название:</b> %s\n", html.EscapeString(task.Title)))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Описание:</b> %s\n", html.EscapeString(task.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Дедлайн:</b> %s\n", notify.FormatLocal(task.DueDate, b.formatter.Location())))
	if len(task.Categories) > 0 {
		summary.WriteString(fmt.Sprintf("• <b>Категория:</b> %s\n", html.EscapeString(task.Categories[0].Name)))
	}

	out := tgbotapi.NewMessage(chatID, strings.TrimSpace(summary.String()))
	out.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	out.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(out); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, profile)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	profile, err := b.ensureProfile(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, profile)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, profile *model.Profile) error {
	completed := false
	tasks, err := b.taskSvc.Query(ctx, repository.TaskFilter{ProfileID: profile.ID, Completed: &completed})
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить задачи: %s", html.EscapeString(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "У тебя нет активных задач. Добавь новую через /newtask.")
	}

	now := time.Now()
	var builder strings.Builder
	builder.WriteString("📋 <b>Текущие задачи</b>\n")
	builder.WriteString("Нажми на кнопку, чтобы отметить задачу выполненной или отключить напоминания.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		icon := "🟢"
		if task.IsOverdue(now) {
			icon = "⚠️"
		} else if task.DueDate.Sub(now) <= 48*time.Hour {
			icon = "⏳"
		}
		builder.WriteString(fmt.Sprintf("%s %s\n", icon, html.EscapeString(task.Title)))
		builder.WriteString(fmt.Sprintf("   ⏰ %s\n", notify.FormatLocal(task.DueDate, b.formatter.Location())))
		if task.NotificationsDisabled {
			builder.WriteString("   🔕 Напоминания отключены\n")
		}

		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(task.Title, 24), cbCompletePrefix+task.ID),
		}
		if !task.NotificationsDisabled {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("🔕", notify.MuteCallbackData(task.ID)))
		}
		buttons = append(buttons, row)
	}

	out := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	out.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID := strings.TrimPrefix(data, cbCompletePrefix)
		task, err := b.taskSvc.SetCompleted(ctx, taskID, true)
		if err != nil {
			return b.answerCallback(cb.ID, "Задача не найдена")
		}
		b.log.Info("task completed via callback", "task_id", taskID, "user", cb.From.ID)
		if err := b.answerCallback(cb.ID, "✅ Готово"); err != nil {
			return err
		}
		return b.sendText(cb.Message.Chat.ID, fmt.Sprintf("✅ Задача «%s» выполнена.", html.EscapeString(task.Title)))
	case strings.HasPrefix(data, notify.MuteCallbackPrefix):
		taskID, ok := notify.ParseMuteCallback(data)
		if !ok {
			return b.answerCallback(cb.ID, "Неизвестное действие")
		}
		task, err := b.taskSvc.SetNotificationsDisabled(ctx, taskID, true)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return b.answerCallback(cb.ID, "Задача не найдена")
			}
			return err
		}
		b.log.Info("notifications muted via callback", "task_id", taskID, "user", cb.From.ID)
		if err := b.answerCallback(cb.ID, "🔕 Уведомления отключены"); err != nil {
			return err
		}
		return b.sendText(cb.Message.Chat.ID, fmt.Sprintf("🔕 Уведомления по задаче «%s» отключены.", html.EscapeString(task.Title)))
	default:
		return b.answerCallback(cb.ID, "")
	}
}

func (b *Bot) answerCallback(callbackID, text string) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("callback ack: %w", err)
	}
	return nil
}

func (b *Bot) ensureProfile(ctx context.Context, from *tgbotapi.User) (*model.Profile, error) {
	profile, _, err := b.profileSvc.GetOrCreate(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
	return profile, err
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) categoryKeyboard(ctx context.Context) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	if categories, err := b.catSvc.List(ctx); err == nil {
		var row []tgbotapi.KeyboardButton
		for _, c := range categories {
			row = append(row, tgbotapi.NewKeyboardButton(c.Name))
			if len(row) == 2 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnSkip),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "пропустить" || value == "skip"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "отменить ввод" || value == "отмена"
}

func shortTitle(title string, limit int) string {
	runes := []rune(strings.TrimSpace(title))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-1]) + "…"
}
