package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pirbot/internal/alarm"
	"pirbot/internal/soundflag"
	"pirbot/internal/storage"
	kit "pirbot/internal/transport"
	logx "pirbot/pkg/logx"
)

// fakeAdapter records outbound texts and serves file downloads from a map.
type fakeAdapter struct {
	mu    sync.Mutex
	sent  []string
	files map[string][]byte
	menu  []kit.BotCommand

	sendErr error
}

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return kit.MessageRef{}, f.sendErr
	}
	f.sent = append(f.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                        { return nil }

func (f *fakeAdapter) DownloadFile(ctx context.Context, fileID, dst string) error {
	f.mu.Lock()
	data, ok := f.files[fileID]
	f.mu.Unlock()
	if !ok {
		return errors.New("unknown file id")
	}
	return os.WriteFile(dst, data, 0o644)
}

func (f *fakeAdapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	f.mu.Lock()
	f.menu = cmds
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) replies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeAdapter) lastReply(t *testing.T) string {
	t.Helper()
	got := f.replies()
	if len(got) == 0 {
		t.Fatal("no reply sent")
	}
	return got[len(got)-1]
}

func newTestRouter(t *testing.T) (*Router, *fakeAdapter, *Deps) {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.Open(storage.Config{Path: filepath.Join(dir, "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ad := &fakeAdapter{files: map[string][]byte{}}
	deps := &Deps{
		Store:     store,
		Sound:     soundflag.New(filepath.Join(dir, "sound.flag"), logx.Nop()),
		Alarm:     alarm.NewPlayer(filepath.Join(dir, "alarm.wav"), "aplay", logx.Nop()),
		Adapter:   ad,
		Log:       logx.Nop(),
		StartedAt: time.Now(),
	}
	return NewRouter(deps), ad, deps
}

func textMsg(chatID int64, text string) *kit.Message {
	return &kit.Message{ChatID: chatID, Text: text}
}

func TestEnableDisableRoundTrip(t *testing.T) {
	t.Parallel()
	r, ad, deps := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, textMsg(42, "/enablesendmsg"))
	if got := ad.lastReply(t); got != "Auto send message is enabled now" {
		t.Fatalf("enable reply = %q", got)
	}
	ids, err := deps.Store.Recipients(ctx)
	if err != nil {
		t.Fatalf("recipients: %v", err)
	}
	if len(ids) != 1 || ids[0] != 42 {
		t.Fatalf("recipients after enable = %v, want [42]", ids)
	}

	r.handle(ctx, textMsg(42, "/disablesendmsg"))
	if got := ad.lastReply(t); got != "Auto send message is disabled now" {
		t.Fatalf("disable reply = %q", got)
	}
	ids, err = deps.Store.Recipients(ctx)
	if err != nil {
		t.Fatalf("recipients: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("recipients after disable = %v, want none", ids)
	}
}

func TestStartRegistersChat(t *testing.T) {
	t.Parallel()
	r, ad, deps := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, textMsg(7, "/start"))
	if got := ad.lastReply(t); !strings.Contains(got, "Welcome") {
		t.Fatalf("start reply = %q", got)
	}
	ids, err := deps.Store.Recipients(ctx)
	if err != nil {
		t.Fatalf("recipients: %v", err)
	}
	if len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("recipients = %v, want [7]", ids)
	}
}

func TestSoundOnOff(t *testing.T) {
	t.Parallel()
	r, ad, _ := newTestRouter(t)
	ctx := context.Background()

	// Flag file is absent, so sound starts enabled.
	r.handle(ctx, textMsg(1, "/on"))
	if got := ad.lastReply(t); got != "🔊 Sound is already enabled." {
		t.Fatalf("on reply = %q", got)
	}

	r.handle(ctx, textMsg(1, "/off"))
	if got := ad.lastReply(t); got != "🔇 Sound has been disabled." {
		t.Fatalf("off reply = %q", got)
	}

	r.handle(ctx, textMsg(1, "/off"))
	if got := ad.lastReply(t); got != "🔇 Sound is already disabled." {
		t.Fatalf("repeat off reply = %q", got)
	}

	r.handle(ctx, textMsg(1, "/on"))
	if got := ad.lastReply(t); got != "🔊 Sound has been enabled." {
		t.Fatalf("on reply = %q", got)
	}
}

func TestHelpListsEveryCommand(t *testing.T) {
	t.Parallel()
	r, ad, _ := newTestRouter(t)

	r.handle(context.Background(), textMsg(1, "/help"))
	got := ad.lastReply(t)
	for _, name := range r.order {
		if !strings.Contains(got, "/"+name+" - ") {
			t.Errorf("help output missing /%s:\n%s", name, got)
		}
	}
}

func TestUnknownCommandAndPlainText(t *testing.T) {
	t.Parallel()
	r, ad, _ := newTestRouter(t)
	ctx := context.Background()

	r.handle(ctx, textMsg(1, "/frobnicate"))
	if got := ad.lastReply(t); got != "Unknown command. Type /help to see available commands." {
		t.Fatalf("unknown command reply = %q", got)
	}

	r.handle(ctx, textMsg(1, "hello there"))
	if got := ad.lastReply(t); got != "You said: hello there, please send command /help" {
		t.Fatalf("plain text reply = %q", got)
	}
}

func TestCommandWithBotSuffix(t *testing.T) {
	t.Parallel()
	r, ad, _ := newTestRouter(t)

	r.handle(context.Background(), textMsg(1, "/help@pirbot"))
	if got := ad.lastReply(t); !strings.Contains(got, "Available commands:") {
		t.Fatalf("suffixed command reply = %q", got)
	}
}

func TestSetCommandsPublishesMenu(t *testing.T) {
	t.Parallel()
	r, ad, _ := newTestRouter(t)

	r.handle(context.Background(), textMsg(1, "/setcommands"))
	if got := ad.lastReply(t); got != "Commands set successfully" {
		t.Fatalf("setcommands reply = %q", got)
	}
	if len(ad.menu) != len(r.order) {
		t.Fatalf("menu has %d entries, want %d", len(ad.menu), len(r.order))
	}
	if ad.menu[0].Command != "start" {
		t.Fatalf("first menu entry = %q, want start", ad.menu[0].Command)
	}
}

func TestChangeSoundFlow(t *testing.T) {
	t.Parallel()
	r, ad, deps := newTestRouter(t)
	ctx := context.Background()

	ad.files["file-1"] = []byte("RIFFdata")

	// Upload before /changesound is ignored.
	r.handle(ctx, &kit.Message{ChatID: 5, Media: &kit.Media{FileID: "file-1", FileName: "siren.wav"}})
	if got := ad.replies(); len(got) != 0 {
		t.Fatalf("unsolicited upload replied %q", got)
	}

	r.handle(ctx, textMsg(5, "/changesound"))
	if got := ad.lastReply(t); !strings.Contains(got, "send a sound file") {
		t.Fatalf("changesound reply = %q", got)
	}

	// Wrong format keeps the chat waiting.
	r.handle(ctx, &kit.Message{ChatID: 5, Media: &kit.Media{FileID: "file-1", FileName: "siren.ogg"}})
	if got := ad.lastReply(t); got != "Formats not supported. Please send .wav or .mp3 files" {
		t.Fatalf("bad format reply = %q", got)
	}

	r.handle(ctx, &kit.Message{ChatID: 5, Media: &kit.Media{FileID: "file-1", FileName: "siren.wav"}})
	if got := ad.lastReply(t); got != "🎵 Alarm sound changed successfully!" {
		t.Fatalf("install reply = %q", got)
	}

	data, err := os.ReadFile(deps.Alarm.SoundPath())
	if err != nil {
		t.Fatalf("read installed sound: %v", err)
	}
	if string(data) != "RIFFdata" {
		t.Fatalf("installed sound = %q", data)
	}

	// Waiting state is cleared after a successful install.
	before := len(ad.replies())
	r.handle(ctx, &kit.Message{ChatID: 5, Media: &kit.Media{FileID: "file-1", FileName: "siren.wav"}})
	if got := ad.replies(); len(got) != before {
		t.Fatalf("upload after install replied %q", got[before:])
	}
}

func TestStatusReportsOnline(t *testing.T) {
	t.Parallel()
	r, ad, _ := newTestRouter(t)

	r.handle(context.Background(), textMsg(1, "/status"))
	got := ad.lastReply(t)
	for _, want := range []string{"System Information", "Status    : Online", "Recipients: 0", "Sound     : on"} {
		if !strings.Contains(got, want) {
			t.Errorf("status output missing %q:\n%s", want, got)
		}
	}
}
