package channel

import (
	"net/http"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ayalabs/aya/internal/bus"
	"github.com/ayalabs/aya/internal/config"
)

type mockBot struct {
	sent    []tgbotapi.MessageConfig
	sendErr error
	updates chan tgbotapi.Update
}

func newMockBot() *mockBot {
	return &mockBot{updates: make(chan tgbotapi.Update, 8)}
}

func (m *mockBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updates
}

func (m *mockBot) StopReceivingUpdates() {}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.sent = append(m.sent, msg)
	}
	return tgbotapi.Message{}, m.sendErr
}

func (m *mockBot) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "aya_test_bot"}
}

func newTestChannel(t *testing.T, allowFrom []string) (*TelegramChannel, *bus.MessageBus, *mockBot) {
	t.Helper()
	b := bus.NewMessageBus(8)
	bot := newMockBot()
	ch, err := NewTelegramChannelWithFactory(
		config.TelegramConfig{Token: "test-token", AllowFrom: allowFrom},
		b,
		func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
			return bot, nil
		},
	)
	if err != nil {
		t.Fatalf("NewTelegramChannelWithFactory: %v", err)
	}
	ch.SetBot(bot)
	return ch, b, bot
}

func TestBaseChannelIsAllowed(t *testing.T) {
	b := bus.NewMessageBus(1)

	open := NewBaseChannel("test", b, nil)
	if !open.IsAllowed("anyone") {
		t.Error("empty allowlist should allow everyone")
	}

	restricted := NewBaseChannel("test", b, []string{"42", "77"})
	if !restricted.IsAllowed("42") {
		t.Error("listed sender should be allowed")
	}
	if restricted.IsAllowed("99") {
		t.Error("unlisted sender should be rejected")
	}
}

func TestNewTelegramChannelRequiresToken(t *testing.T) {
	b := bus.NewMessageBus(1)
	if _, err := NewTelegramChannel(config.TelegramConfig{}, b); err == nil {
		t.Fatal("empty token should fail")
	}
}

func TestHandleMessagePlainText(t *testing.T) {
	ch, b, _ := newTestChannel(t, nil)

	ch.handleMessage(&tgbotapi.Message{
		From: &tgbotapi.User{ID: 42, UserName: "andrey", FirstName: "Андрей"},
		Chat: &tgbotapi.Chat{ID: 42},
		Text: "привет, Ая",
		Date: 1760000000,
	})

	select {
	case msg := <-b.Inbound:
		if msg.Channel != "telegram" || msg.SenderID != "42" || msg.ChatID != "42" {
			t.Errorf("msg = %+v", msg)
		}
		if msg.Content != "привет, Ая" || msg.Command != "" {
			t.Errorf("content = %q, command = %q", msg.Content, msg.Command)
		}
		if msg.Metadata["first_name"] != "Андрей" {
			t.Errorf("metadata = %+v", msg.Metadata)
		}
	default:
		t.Fatal("no inbound message published")
	}
}

func TestHandleMessageCommand(t *testing.T) {
	ch, b, _ := newTestChannel(t, nil)

	text := "/flirt on"
	ch.handleMessage(&tgbotapi.Message{
		From:     &tgbotapi.User{ID: 42},
		Chat:     &tgbotapi.Chat{ID: 42},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	})

	select {
	case msg := <-b.Inbound:
		if msg.Command != "flirt" {
			t.Errorf("command = %q", msg.Command)
		}
		if msg.Content != "on" {
			t.Errorf("args = %q", msg.Content)
		}
	default:
		t.Fatal("no inbound message published")
	}
}

func TestHandleMessageRejectsUnlistedSender(t *testing.T) {
	ch, b, _ := newTestChannel(t, []string{"1"})

	ch.handleMessage(&tgbotapi.Message{
		From: &tgbotapi.User{ID: 42},
		Chat: &tgbotapi.Chat{ID: 42},
		Text: "пусти меня",
	})

	select {
	case msg := <-b.Inbound:
		t.Fatalf("rejected sender leaked through: %+v", msg)
	default:
	}
}

func TestSendChunksLongMessages(t *testing.T) {
	ch, _, bot := newTestChannel(t, nil)

	long := strings.Repeat("line\n", 1500) // ~7500 bytes
	if err := ch.Send(bus.OutboundMessage{ChatID: "42", Content: long}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(bot.sent) < 2 {
		t.Fatalf("sent %d chunks, want at least 2", len(bot.sent))
	}
	for _, msg := range bot.sent {
		if len(msg.Text) > 4000 {
			t.Errorf("chunk of %d bytes exceeds the limit", len(msg.Text))
		}
	}
}

func TestSendInvalidChatID(t *testing.T) {
	ch, _, _ := newTestChannel(t, nil)

	if err := ch.Send(bus.OutboundMessage{ChatID: "not-a-number", Content: "hi"}); err == nil {
		t.Fatal("non-numeric chat id should fail")
	}
}

func TestManagerEnablesTelegram(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Telegram.Enabled = true
	cfg.Telegram.Token = "test-token"

	b := bus.NewMessageBus(8)
	m, err := NewChannelManager(cfg, b)
	if err != nil {
		t.Fatalf("NewChannelManager: %v", err)
	}
	names := m.EnabledChannels()
	if len(names) != 1 || names[0] != "telegram" {
		t.Errorf("channels = %v", names)
	}
}

func TestManagerNoChannels(t *testing.T) {
	cfg := config.DefaultConfig()
	b := bus.NewMessageBus(8)
	m, err := NewChannelManager(cfg, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.EnabledChannels()) != 0 {
		t.Errorf("channels = %v", m.EnabledChannels())
	}
}
