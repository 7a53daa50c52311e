package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"OutLight/internal/domain"
	"OutLight/internal/metrics"
)

const parseMode = tgbotapi.ModeMarkdown

// Messenger is the part of the Bot API the sessions need.
type Messenger interface {
	Send(ctx context.Context, chat domain.Chat, text string, kb Keyboard) (int, error)
	Edit(ctx context.Context, chat domain.Chat, messageID int, text string, kb Keyboard) error
	SendDocument(ctx context.Context, chat domain.Chat, doc Document) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// Document is an in-memory file sent as an attachment.
type Document struct {
	Name    string
	Data    []byte
	Caption string
}

// Command is a slash command or a button press. Button presses carry the
// callback id and the message the button belongs to.
type Command struct {
	Chat     domain.Chat
	UserName string
	Name     string
	Args     string

	CallbackID string
	MessageID  int
}

func (c Command) IsCallback() bool {
	return c.CallbackID != ""
}

type BotClient struct {
	bot     *tgbotapi.BotAPI
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewBotClient validates the token with getMe. An empty endpoint selects the
// public Bot API.
func NewBotClient(token, endpoint string, m *metrics.Metrics, logger *slog.Logger) (*BotClient, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	httpClient := &http.Client{Timeout: 40 * time.Second}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot client: %w", err)
	}

	logger.Info("Authorized on Telegram", "bot", bot.Self.UserName)
	return &BotClient{bot: bot, metrics: m, logger: logger.With("component", "telegram_client")}, nil
}

func (c *BotClient) UserName() string {
	return c.bot.Self.UserName
}

func (c *BotClient) Send(ctx context.Context, chat domain.Chat, text string, kb Keyboard) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	params := tgbotapi.Params{}
	if err := params.AddFirstValid("chat_id", chat.ID); err != nil {
		return 0, err
	}
	params.AddNonZero("message_thread_id", chat.ThreadID)
	params.AddNonEmpty("text", text)
	params.AddNonEmpty("parse_mode", parseMode)
	params.AddBool("disable_web_page_preview", true)
	if markup := kb.markup(); markup != nil {
		if err := params.AddInterface("reply_markup", markup); err != nil {
			return 0, err
		}
	}

	resp, err := c.bot.MakeRequest("sendMessage", params)
	err = classify(err)
	c.metrics.TelegramCall("send", err)
	if err != nil {
		return 0, err
	}

	var msg tgbotapi.Message
	if err := json.Unmarshal(resp.Result, &msg); err != nil {
		return 0, fmt.Errorf("failed to decode sent message: %w", err)
	}
	return msg.MessageID, nil
}

func (c *BotClient) Edit(ctx context.Context, chat domain.Chat, messageID int, text string, kb Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := tgbotapi.NewEditMessageText(chat.ID, messageID, text)
	cfg.ParseMode = parseMode
	cfg.DisableWebPagePreview = true
	cfg.ReplyMarkup = kb.markup()

	_, err := c.bot.Request(cfg)
	err = classify(err)
	c.metrics.TelegramCall("edit", err)
	return err
}

func (c *BotClient) SendDocument(ctx context.Context, chat domain.Chat, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := tgbotapi.NewDocument(chat.ID, tgbotapi.FileBytes{Name: doc.Name, Bytes: doc.Data})
	cfg.Caption = doc.Caption

	_, err := c.bot.Send(cfg)
	err = classify(err)
	c.metrics.TelegramCall("document", err)
	return err
}

func (c *BotClient) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := tgbotapi.NewCallback(callbackID, text)
	cfg.ShowAlert = alert

	_, err := c.bot.Request(cfg)
	err = classify(err)
	c.metrics.TelegramCall("callback", err)
	return err
}

// Commands long-polls updates and yields slash commands and button presses
// until ctx ends.
func (c *BotClient) Commands(ctx context.Context) <-chan Command {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := c.bot.GetUpdatesChan(u)

	out := make(chan Command)
	go func() {
		defer close(out)
		defer c.bot.StopReceivingUpdates()

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				cmd, ok := commandFromUpdate(update)
				if !ok {
					continue
				}
				select {
				case out <- cmd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Callbacks passes on button presses only. Configured chats use it so that
// nobody can start or stop sessions there.
func Callbacks(ctx context.Context, in <-chan Command) <-chan Command {
	out := make(chan Command)
	go func() {
		defer close(out)
		for cmd := range in {
			if !cmd.IsCallback() {
				continue
			}
			select {
			case out <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func commandFromUpdate(update tgbotapi.Update) (Command, bool) {
	if cq := update.CallbackQuery; cq != nil {
		return commandFromCallback(cq)
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return Command{}, false
	}

	cmd := Command{
		Chat: domain.Chat{ID: msg.Chat.ID},
		Name: msg.Command(),
		Args: msg.CommandArguments(),
	}
	if msg.From != nil {
		cmd.UserName = msg.From.UserName
		if cmd.UserName == "" {
			cmd.UserName = msg.From.FirstName
		}
	}
	return cmd, true
}

func commandFromCallback(cq *tgbotapi.CallbackQuery) (Command, bool) {
	if cq.Message == nil || cq.Message.Chat == nil || cq.Data == "" {
		return Command{}, false
	}

	cmd := Command{
		Chat:       domain.Chat{ID: cq.Message.Chat.ID},
		Name:       cq.Data,
		CallbackID: cq.ID,
		MessageID:  cq.Message.MessageID,
	}
	if cq.From != nil {
		cmd.UserName = cq.From.UserName
		if cmd.UserName == "" {
			cmd.UserName = cq.From.FirstName
		}
	}
	return cmd, true
}
