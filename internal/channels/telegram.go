package channels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/crystaldolphin/confidant/internal/bus"
	"github.com/crystaldolphin/confidant/internal/config/channel"
	"github.com/crystaldolphin/confidant/internal/schema"
)

const (
	telegramMaxText  = 4096
	telegramMaxFetch = 20 << 20
)

// TelegramChannel implements the Telegram bot via long polling. It is both
// the inbound source and the engine's Transport.
type TelegramChannel struct {
	Base
	cfg     *channel.TelegramConfig
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
	http    *http.Client
}

// NewTelegramChannel creates a TelegramChannel. Connect must succeed
// before the transport methods are used.
func NewTelegramChannel(cfg *channel.TelegramConfig, b bus.Bus) *TelegramChannel {
	r := rate.Limit(cfg.SendRate)
	if cfg.SendRate <= 0 {
		r = rate.Inf
	}
	burst := cfg.SendBurst
	if burst <= 0 {
		burst = 1
	}
	return &TelegramChannel{
		Base:    NewBase("telegram", b, cfg.AllowFrom),
		cfg:     cfg,
		limiter: rate.NewLimiter(r, burst),
		http:    &http.Client{},
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

// Connect authenticates the bot. Start calls it when needed.
func (t *TelegramChannel) Connect() error {
	if t.bot != nil {
		return nil
	}
	if t.cfg.Token == "" {
		return fmt.Errorf("telegram: bot token not configured: %w", schema.ErrConfig)
	}
	if t.cfg.Proxy != "" {
		proxy, err := url.Parse(t.cfg.Proxy)
		if err != nil {
			return fmt.Errorf("telegram: invalid proxy: %w", err)
		}
		t.http = &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxy)}}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.cfg.Token, tgbotapi.APIEndpoint, t.http)
	if err != nil {
		return fmt.Errorf("telegram: create bot: %w", err)
	}
	t.bot = bot
	slog.Info("telegram: connected", "username", bot.Self.UserName)
	return nil
}

func (t *TelegramChannel) Start(ctx context.Context) error {
	if err := t.Connect(); err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go t.handleUpdate(ctx, update)
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (t *TelegramChannel) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if msg.Chat.Type != "private" {
		return
	}

	senderID := fmt.Sprintf("%d", msg.From.ID)
	if msg.From.UserName != "" {
		senderID = senderID + "|" + msg.From.UserName
	}

	ev, ok := eventFromMessage(msg)
	if !ok {
		return
	}
	t.HandleEvent(ctx, senderID, ev)
}

// eventFromMessage maps a Telegram message to an inbound event. Private
// chats are keyed by chat id.
func eventFromMessage(msg *tgbotapi.Message) (bus.InboundEvent, bool) {
	ev := bus.InboundEvent{
		UserID:    msg.Chat.ID,
		Slot:      bus.ActiveSlot,
		MessageID: msg.MessageID,
		Caption:   msg.Caption,
		Timestamp: msg.Time(),
	}
	if msg.From != nil {
		ev.Username = msg.From.UserName
	}

	switch {
	case msg.Animation != nil:
		ev.Kind = bus.KindAnimation
		ev.FileRef = msg.Animation.FileID
		ev.MimeType = msg.Animation.MimeType
		ev.FileSize = int64(msg.Animation.FileSize)
	case len(msg.Photo) > 0:
		p := msg.Photo[len(msg.Photo)-1]
		ev.Kind = bus.KindImage
		ev.FileRef = p.FileID
		ev.MimeType = "image/jpeg"
		ev.FileSize = int64(p.FileSize)
	case msg.Sticker != nil:
		ev.Kind = bus.KindSticker
		ev.Text = msg.Sticker.Emoji
		if msg.Sticker.IsAnimated {
			// Animated stickers are judged by their thumbnail; an empty
			// FileRef means there is none.
			ev.Animated = true
			ev.MimeType = "image/jpeg"
			if msg.Sticker.Thumbnail != nil {
				ev.FileRef = msg.Sticker.Thumbnail.FileID
				ev.FileSize = int64(msg.Sticker.Thumbnail.FileSize)
			}
		} else {
			ev.FileRef = msg.Sticker.FileID
			ev.MimeType = "image/webp"
			ev.FileSize = int64(msg.Sticker.FileSize)
		}
	case msg.Voice != nil:
		ev.Kind = bus.KindVoice
		ev.FileRef = msg.Voice.FileID
		ev.MimeType = msg.Voice.MimeType
		if ev.MimeType == "" {
			ev.MimeType = "audio/ogg"
		}
		ev.FileSize = int64(msg.Voice.FileSize)
	case msg.Document != nil:
		ev.Kind = bus.KindDocument
		if strings.HasPrefix(msg.Document.MimeType, "image/") {
			ev.Kind = bus.KindImage
		}
		ev.FileRef = msg.Document.FileID
		ev.MimeType = msg.Document.MimeType
		ev.FileSize = int64(msg.Document.FileSize)
	case msg.Text != "":
		ev.Kind = bus.KindText
		ev.Text = msg.Text
	default:
		return bus.InboundEvent{}, false
	}
	return ev, true
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (t *TelegramChannel) ready(ctx context.Context) error {
	if t.bot == nil {
		return fmt.Errorf("telegram: bot not running: %w", schema.ErrTransient)
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: rate limiter: %w", err)
	}
	return nil
}

// SendText sends text, splitting it when it exceeds Telegram's limit, and
// returns the id of the last message sent. schema.ErrFormatting is only
// returned when nothing was delivered; a later part that Telegram cannot
// parse is resent plain on its own.
func (t *TelegramChannel) SendText(ctx context.Context, chatID int64, text string, opts schema.SendOptions) (int, error) {
	var lastID int
	for i, chunk := range splitMessage(text, telegramMaxText) {
		if err := t.ready(ctx); err != nil {
			return lastID, err
		}
		body := chunk
		m := tgbotapi.NewMessage(chatID, body)
		if opts.Markdown {
			m.Text = markdownToTelegramHTML(chunk)
			m.ParseMode = tgbotapi.ModeHTML
		}
		if i == 0 && opts.ReplyTo != 0 {
			m.ReplyToMessageID = opts.ReplyTo
			m.AllowSendingWithoutReply = true
		}
		sent, err := t.bot.Send(m)
		if err != nil {
			err = classifyTelegramError(err)
			if i == 0 || !errors.Is(err, schema.ErrFormatting) {
				return lastID, err
			}
			slog.Debug("telegram: part rejected, resending plain", "chat", chatID, "part", i)
			if sent, err = t.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
				return lastID, classifyTelegramError(err)
			}
		}
		lastID = sent.MessageID
	}
	return lastID, nil
}

func (t *TelegramChannel) SendDocument(ctx context.Context, chatID int64, name string, data []byte) error {
	if err := t.ready(ctx); err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	if _, err := t.bot.Send(doc); err != nil {
		return classifyTelegramError(err)
	}
	return nil
}

func (t *TelegramChannel) SendPresence(ctx context.Context, chatID int64) error {
	if err := t.ready(ctx); err != nil {
		return err
	}
	if _, err := t.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return classifyTelegramError(err)
	}
	return nil
}

// Reachable asks Telegram for the chat; a blocked bot or a deleted chat
// yields schema.ErrBlocked.
func (t *TelegramChannel) Reachable(ctx context.Context, chatID int64) error {
	if err := t.ready(ctx); err != nil {
		return err
	}
	_, err := t.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		return classifyTelegramError(err)
	}
	return nil
}

// FetchFile downloads an attachment by file id.
func (t *TelegramChannel) FetchFile(ctx context.Context, fileRef string) ([]byte, error) {
	if err := t.ready(ctx); err != nil {
		return nil, err
	}
	file, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: fileRef})
	if err != nil {
		return nil, classifyTelegramError(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(t.cfg.Token), nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: download: %w: %v", schema.ErrTransient, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: download status %d: %w", resp.StatusCode, schema.ErrTransient)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, telegramMaxFetch+1))
	if err != nil {
		return nil, fmt.Errorf("telegram: download: %w", err)
	}
	if len(data) > telegramMaxFetch {
		return nil, fmt.Errorf("telegram: file larger than %d bytes: %w", telegramMaxFetch, schema.ErrValidation)
	}
	return data, nil
}

// classifyTelegramError maps Bot API failures onto the schema error kinds.
func classifyTelegramError(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		var v tgbotapi.Error
		if errors.As(err, &v) {
			apiErr = &v
		}
	}
	if apiErr == nil {
		return fmt.Errorf("telegram: %w: %v", schema.ErrTransient, err)
	}
	desc := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.Code == http.StatusForbidden:
		return fmt.Errorf("telegram: %w: %s", schema.ErrBlocked, apiErr.Message)
	case apiErr.Code == http.StatusBadRequest && strings.Contains(desc, "chat not found"):
		return fmt.Errorf("telegram: %w: %s", schema.ErrBlocked, apiErr.Message)
	case apiErr.Code == http.StatusBadRequest && strings.Contains(desc, "can't parse entities"):
		return fmt.Errorf("telegram: %w: %s", schema.ErrFormatting, apiErr.Message)
	default:
		return fmt.Errorf("telegram: %w: %d %s", schema.ErrTransient, apiErr.Code, apiErr.Message)
	}
}
