package commands

import (
	"context"
	"html"
	"strings"
	"sync"
	"time"

	"pirbot/internal/alarm"
	kit "pirbot/internal/transport"
	logx "pirbot/pkg/logx"
)

const handlerTimeout = 30 * time.Second

// Router dispatches incoming updates against the static command table.
type Router struct {
	deps *Deps
	log  logx.Logger

	cmds  map[string]Command
	order []string

	// waiting tracks chats that ran /changesound and owe us an audio file.
	waitingMu sync.Mutex
	waiting   map[int64]struct{}
}

func NewRouter(deps *Deps) *Router {
	r := &Router{
		deps:    deps,
		log:     deps.Log.With(logx.String("comp", "router")),
		cmds:    map[string]Command{},
		waiting: map[int64]struct{}{},
	}
	for _, c := range Table(deps, r) {
		r.cmds[c.Name] = c
		r.order = append(r.order, c.Name)
	}
	return r
}

// MenuCommands returns the table in menu form, in registration order.
func (r *Router) MenuCommands() []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(r.order))
	for _, name := range r.order {
		c := r.cmds[name]
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

// Run consumes updates until ctx is cancelled. Each update is handled
// inline; command handlers are quick (storage + one reply) so there is no
// per-update goroutine.
func (r *Router) Run(ctx context.Context, in <-chan kit.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-in:
			if !ok {
				return
			}
			if up.Message == nil {
				continue
			}
			r.handle(ctx, up.Message)
		}
	}
}

func (r *Router) handle(ctx context.Context, msg *kit.Message) {
	hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	req := &Request{
		ChatID: msg.ChatID,
		send: func(ctx context.Context, text string, opt *kit.SendOptions) error {
			_, err := r.deps.Adapter.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, text, opt)
			return err
		},
	}

	if msg.Media != nil {
		if err := r.handleAudio(hctx, req, msg.Media); err != nil {
			r.log.Warn("audio handler failed", logx.Int64("chat_id", msg.ChatID), logx.Err(err))
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		_ = req.Reply(hctx, "You said: "+text+", please send command /help")
		return
	}

	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	// Group chats address commands as /cmd@botname.
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	req.Args = fields[1:]

	cmd, ok := r.cmds[strings.ToLower(name)]
	if !ok {
		_ = req.Reply(hctx, "Unknown command. Type /help to see available commands.")
		return
	}

	start := time.Now()
	err := cmd.Handle(hctx, req)
	if err != nil {
		r.log.Warn("command failed",
			logx.String("command", cmd.Name),
			logx.Int64("chat_id", msg.ChatID),
			logx.Duration("took", time.Since(start)),
			logx.Err(err))
		return
	}
	r.log.Debug("command handled",
		logx.String("command", cmd.Name),
		logx.Int64("chat_id", msg.ChatID),
		logx.Duration("took", time.Since(start)))
}

func (r *Router) cmdHelp(ctx context.Context, req *Request) error {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range r.order {
		c := r.cmds[name]
		b.WriteString("/" + c.Name + " - " + html.EscapeString(c.Description) + "\n")
	}
	return req.ReplyHTML(ctx, b.String())
}

func (r *Router) cmdSetCommands(ctx context.Context, req *Request) error {
	upd, ok := r.deps.Adapter.(kit.CommandMenuUpdater)
	if !ok {
		return req.Reply(ctx, "This platform does not support command menus.")
	}
	if err := upd.UpdateMenuCommands(ctx, r.MenuCommands()); err != nil {
		r.log.Warn("set commands failed", logx.Err(err))
		return req.Reply(ctx, "Failed to set commands: "+err.Error())
	}
	return req.Reply(ctx, "Commands set successfully")
}

func (r *Router) cmdChangeSound(ctx context.Context, req *Request) error {
	r.waitingMu.Lock()
	r.waiting[req.ChatID] = struct{}{}
	r.waitingMu.Unlock()
	return req.Reply(ctx, "Please send a sound file (.wav or .mp3) to replace the alarm.")
}

// handleAudio installs an uploaded sound file when the chat is in the
// waiting state set by /changesound; uploads from other chats are ignored.
func (r *Router) handleAudio(ctx context.Context, req *Request, media *kit.Media) error {
	r.waitingMu.Lock()
	_, waiting := r.waiting[req.ChatID]
	r.waitingMu.Unlock()
	if !waiting {
		return nil
	}

	if !alarm.AcceptedFileName(media.FileName) {
		return req.Reply(ctx, "Formats not supported. Please send .wav or .mp3 files")
	}

	staging := r.deps.Alarm.StagingPath(media.FileName)
	if err := r.deps.Adapter.DownloadFile(ctx, media.FileID, staging); err != nil {
		r.log.Warn("sound download failed", logx.Int64("chat_id", req.ChatID), logx.Err(err))
		return req.Reply(ctx, "Failed to download sound file, please try again.")
	}
	if err := r.deps.Alarm.Replace(staging); err != nil {
		r.log.Warn("sound replace failed", logx.Int64("chat_id", req.ChatID), logx.Err(err))
		return req.Reply(ctx, "Failed to replace sound: "+err.Error())
	}

	r.waitingMu.Lock()
	delete(r.waiting, req.ChatID)
	r.waitingMu.Unlock()

	return req.Reply(ctx, "🎵 Alarm sound changed successfully!")
}
