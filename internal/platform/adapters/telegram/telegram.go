// Package telegram implements the platform.Adapter for Telegram bot webhooks.
//
// Telegram does not sign webhook bodies; authenticity comes from the
// unguessable bot-token path segment in the webhook URL, so VerifySignature
// always passes.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/botdesk/botdesk/internal/platform"
)

// Type is the Telegram platform tag.
const Type = platform.Telegram

// CredBotToken is the bot token credential key.
const CredBotToken = "bot_token"

const maxMessageLength = 4096

// Adapter implements platform.Adapter for Telegram webhooks.
type Adapter struct {
	logger *slog.Logger
	mu     sync.RWMutex
	bots   map[string]*tgbotapi.BotAPI // keyed by bot token
}

// New creates a Telegram adapter with the given logger.
func New(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger: log.With(slog.String("adapter", "telegram")),
		bots:   make(map[string]*tgbotapi.BotAPI),
	}
}

var getOrCreateBotForTest func(a *Adapter, token string) (*tgbotapi.BotAPI, error)

func (a *Adapter) getOrCreateBot(token string) (*tgbotapi.BotAPI, error) {
	if getOrCreateBotForTest != nil {
		return getOrCreateBotForTest(a, token)
	}
	a.mu.RLock()
	bot, ok := a.bots[token]
	a.mu.RUnlock()
	if ok {
		return bot, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if bot, ok := a.bots[token]; ok {
		return bot, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		a.logger.Error("create bot failed", slog.Any("error", err))
		return nil, err
	}
	a.bots[token] = bot
	return bot, nil
}

// Type returns the Telegram platform tag.
func (a *Adapter) Type() platform.Platform {
	return Type
}

// VerifySignature always reports true; see the package comment.
func (a *Adapter) VerifySignature(_ []byte, _, _ string) bool {
	return true
}

// ParsePayload extracts a canonical message from a webhook Update. Updates
// without a user message (edits, channel posts, callback queries) yield an
// empty slice.
func (a *Adapter) ParsePayload(body []byte) ([]platform.InboundMessage, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, &platform.NormalizationError{Platform: Type, Reason: "invalid json", Err: err}
	}
	if update.UpdateID == 0 && update.Message == nil {
		return nil, &platform.NormalizationError{Platform: Type, Reason: "not a telegram update"}
	}
	if update.Message == nil {
		return nil, nil
	}
	msg := update.Message
	if msg.From != nil && msg.From.IsBot {
		return nil, nil
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	inbound := platform.InboundMessage{
		Platform:          Type,
		ExternalMessageID: strconv.Itoa(msg.MessageID),
		Text:              text,
		Attachments:       collectAttachments(msg),
		ReceivedAt:        time.Unix(int64(msg.Date), 0).UTC(),
	}
	if msg.Chat != nil {
		inbound.SenderID = strconv.FormatInt(msg.Chat.ID, 10)
	}
	if msg.From != nil {
		inbound.SenderName = senderName(msg.From)
	}
	if inbound.SenderID == "" || inbound.IsEmpty() {
		return nil, nil
	}
	return []platform.InboundMessage{inbound}, nil
}

func senderName(from *tgbotapi.User) string {
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if name == "" {
		name = strings.TrimSpace(from.UserName)
	}
	return name
}

func collectAttachments(msg *tgbotapi.Message) []platform.Attachment {
	var attachments []platform.Attachment
	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		attachments = append(attachments, platform.Attachment{
			Type: platform.AttachmentImage,
			Name: photo.FileID,
			Size: int64(photo.FileSize),
		})
	}
	if msg.Document != nil {
		attachments = append(attachments, platform.Attachment{
			Type: platform.AttachmentFile,
			Name: strings.TrimSpace(msg.Document.FileName),
			Mime: strings.TrimSpace(msg.Document.MimeType),
			Size: int64(msg.Document.FileSize),
		})
	}
	if msg.Audio != nil {
		attachments = append(attachments, platform.Attachment{
			Type: platform.AttachmentAudio,
			Name: strings.TrimSpace(msg.Audio.FileName),
			Mime: strings.TrimSpace(msg.Audio.MimeType),
			Size: int64(msg.Audio.FileSize),
		})
	}
	if msg.Voice != nil {
		attachments = append(attachments, platform.Attachment{
			Type: platform.AttachmentAudio,
			Mime: strings.TrimSpace(msg.Voice.MimeType),
			Size: int64(msg.Voice.FileSize),
		})
	}
	if msg.Video != nil {
		attachments = append(attachments, platform.Attachment{
			Type: platform.AttachmentVideo,
			Name: strings.TrimSpace(msg.Video.FileName),
			Mime: strings.TrimSpace(msg.Video.MimeType),
			Size: int64(msg.Video.FileSize),
		})
	}
	return attachments
}

var sendForTest func(bot *tgbotapi.BotAPI, msg tgbotapi.MessageConfig) error

// SendReply delivers a text reply through the bot API.
func (a *Adapter) SendReply(ctx context.Context, creds platform.Credentials, recipientID, text string) error {
	token := creds.Get(CredBotToken)
	if token == "" {
		return fmt.Errorf("telegram credentials require %s", CredBotToken)
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipientID), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram recipient must be a chat id: %w", err)
	}
	bot, err := a.getOrCreateBot(token)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	message := tgbotapi.NewMessage(chatID, truncateText(text))
	if sendForTest != nil {
		return sendForTest(bot, message)
	}
	if _, err := bot.Send(message); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// truncateText truncates text to Telegram's message limit on a valid UTF-8
// rune boundary, appending "..." when truncation occurs.
func truncateText(text string) string {
	if len(text) <= maxMessageLength {
		return text
	}
	const suffix = "..."
	limit := maxMessageLength - len(suffix)
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit] + suffix
}
