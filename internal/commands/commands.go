package commands

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"pirbot/internal/alarm"
	"pirbot/internal/soundflag"
	"pirbot/internal/storage"
	kit "pirbot/internal/transport"
	logx "pirbot/pkg/logx"
)

// Command is one entry in the static registration table: a name, a
// one-line description (also pushed to the platform command menu), and a
// handler. The table is built once at startup; there is no runtime
// discovery.
type Command struct {
	Name        string
	Description string
	Handle      func(ctx context.Context, req *Request) error
}

// Request carries one incoming command invocation.
type Request struct {
	ChatID int64
	Args   []string

	send func(ctx context.Context, text string, opt *kit.SendOptions) error
}

func (r *Request) Reply(ctx context.Context, text string) error {
	return r.send(ctx, text, &kit.SendOptions{DisablePreview: true})
}

func (r *Request) ReplyHTML(ctx context.Context, text string) error {
	return r.send(ctx, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
}

// Deps are the collaborators command handlers act on.
type Deps struct {
	Store   *storage.Store
	Sound   *soundflag.Flag
	Alarm   *alarm.Player
	Adapter kit.Adapter
	Log     logx.Logger

	StartedAt time.Time
}

// Table builds the command registration table. Order here is the order
// /help and the platform menu present.
func Table(d *Deps, r *Router) []Command {
	return []Command{
		{
			Name:        "start",
			Description: "Register this chat and show a welcome message",
			Handle:      d.cmdStart,
		},
		{
			Name:        "enablesendmsg",
			Description: "Enable alert messages for this chat",
			Handle:      d.cmdEnable,
		},
		{
			Name:        "disablesendmsg",
			Description: "Disable alert messages for this chat",
			Handle:      d.cmdDisable,
		},
		{
			Name:        "on",
			Description: "Enable alarm sound playback",
			Handle:      d.cmdSoundOn,
		},
		{
			Name:        "off",
			Description: "Disable alarm sound playback",
			Handle:      d.cmdSoundOff,
		},
		{
			Name:        "changesound",
			Description: "Replace the alarm sound (send a .wav or .mp3 file)",
			Handle:      r.cmdChangeSound,
		},
		{
			Name:        "status",
			Description: "Show device and system status",
			Handle:      d.cmdStatus,
		},
		{
			Name:        "setcommands",
			Description: "Publish the command list to the bot menu",
			Handle:      r.cmdSetCommands,
		},
		{
			Name:        "help",
			Description: "List available commands",
			Handle:      r.cmdHelp,
		},
	}
}

func (d *Deps) cmdStart(ctx context.Context, req *Request) error {
	if err := d.Store.AddRecipient(ctx, req.ChatID); err != nil {
		d.Log.Error("start: register chat failed", logx.Int64("chat_id", req.ChatID), logx.Err(err))
		return req.Reply(ctx, "Registration failed, please try again later.")
	}
	return req.Reply(ctx, "Hello! Welcome to the bot. Type /help to see available commands.")
}

func (d *Deps) cmdEnable(ctx context.Context, req *Request) error {
	if err := d.Store.AddRecipient(ctx, req.ChatID); err != nil {
		d.Log.Error("enable: register chat failed", logx.Int64("chat_id", req.ChatID), logx.Err(err))
		return req.Reply(ctx, "Failed to enable auto send message, please try again later.")
	}
	return req.Reply(ctx, "Auto send message is enabled now")
}

func (d *Deps) cmdDisable(ctx context.Context, req *Request) error {
	if err := d.Store.RemoveRecipient(ctx, req.ChatID); err != nil {
		d.Log.Error("disable: unregister chat failed", logx.Int64("chat_id", req.ChatID), logx.Err(err))
		return req.Reply(ctx, "Failed to disable auto send message, please try again later.")
	}
	return req.Reply(ctx, "Auto send message is disabled now")
}

func (d *Deps) cmdSoundOn(ctx context.Context, req *Request) error {
	if d.Sound.Enabled() {
		return req.Reply(ctx, "🔊 Sound is already enabled.")
	}
	if err := d.Sound.Set(true); err != nil {
		d.Log.Error("sound enable failed", logx.Err(err))
		return req.Reply(ctx, "Failed to enable sound.")
	}
	return req.Reply(ctx, "🔊 Sound has been enabled.")
}

func (d *Deps) cmdSoundOff(ctx context.Context, req *Request) error {
	if !d.Sound.Enabled() {
		return req.Reply(ctx, "🔇 Sound is already disabled.")
	}
	if err := d.Sound.Set(false); err != nil {
		d.Log.Error("sound disable failed", logx.Err(err))
		return req.Reply(ctx, "Failed to disable sound.")
	}
	return req.Reply(ctx, "🔇 Sound has been disabled.")
}

func (d *Deps) cmdStatus(ctx context.Context, req *Request) error {
	now := time.Now()
	hostname, _ := os.Hostname()

	recipients := "unknown"
	if ids, err := d.Store.Recipients(ctx); err == nil {
		recipients = fmt.Sprintf("%d", len(ids))
	}

	lastAlert := "never"
	if recs, err := d.Store.RecentDeliveries(ctx, 1); err == nil && len(recs) > 0 {
		lastAlert = recs[0].Date + " " + recs[0].Time + " (" + string(recs[0].Status) + ")"
	}

	sound := "off"
	if d.Sound.Enabled() {
		sound = "on"
	}

	var b strings.Builder
	b.WriteString("<b>System Information</b>\n<pre>")
	fmt.Fprintf(&b, "Host      : %s\n", hostname)
	fmt.Fprintf(&b, "Time      : %s\n", now.Format("Monday, January 02 2006 15:04:05"))
	fmt.Fprintf(&b, "Platform  : %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "CPU       : %d cores\n", runtime.NumCPU())
	fmt.Fprintf(&b, "Uptime    : %s\n", now.Sub(d.StartedAt).Round(time.Second))
	fmt.Fprintf(&b, "Recipients: %s\n", recipients)
	fmt.Fprintf(&b, "Sound     : %s\n", sound)
	fmt.Fprintf(&b, "Last alert: %s\n", lastAlert)
	b.WriteString("Status    : Online</pre>")
	return req.ReplyHTML(ctx, b.String())
}
