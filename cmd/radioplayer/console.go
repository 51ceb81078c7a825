// ABOUTME: Interactive console driving the session controller
// ABOUTME: Line commands mirror the control API; state changes are echoed
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"

	"github.com/harper/radio-player/internal/application/manager"
	"github.com/harper/radio-player/internal/domain/session"
)

const consoleHelp = `commands:
  play [stream]     start the current or given stream
  pause | stop      release the stream
  vol <0..1>        set volume
  switch <stream>   tune to another stream
  streams           list streams
  status            show player state
  quit`

func runConsole(ctx context.Context, mgr *manager.Manager, log zerolog.Logger) error {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".radioplayer_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "radio> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete:    completer(mgr),
	})
	if err != nil {
		return fmt.Errorf("init console: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	ctrl := mgr.Controller()

	updates, cancel := ctrl.Subscribe()
	defer cancel()

	go func() {
		var last session.Snapshot
		for snap := range updates {
			if snap.Phase != last.Phase || snap.Error != last.Error || snap.StreamTitle != last.StreamTitle {
				fmt.Fprintln(out, formatSnapshot(snap))
			}
			last = snap
		}
	}()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	log.Debug().Str("history", historyFile).Msg("console ready")
	fmt.Fprintln(out, consoleHelp)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}

		if quit := execute(ctx, mgr, out, strings.Fields(line)); quit {
			return nil
		}
	}
}

// execute runs one console command and reports whether the console should exit.
func execute(ctx context.Context, mgr *manager.Manager, out io.Writer, args []string) bool {
	if len(args) == 0 {
		return false
	}

	ctrl := mgr.Controller()
	arg := ""
	if len(args) > 1 {
		arg = args[1]
	}

	switch strings.ToLower(args[0]) {
	case "play":
		ctrl.Play(ctx, arg)
	case "pause":
		ctrl.Pause(ctx)
	case "stop":
		ctrl.Stop(ctx)
	case "vol", "volume":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			fmt.Fprintln(out, "usage: vol <0..1>")
			return false
		}
		ctrl.ChangeVolume(ctx, v)
		fmt.Fprintf(out, "volume %.2f\n", ctrl.Snapshot().Volume)
	case "switch":
		if _, ok := mgr.Catalogue().Get(arg); !ok {
			fmt.Fprintf(out, "unknown stream %q\n", arg)
			return false
		}
		go ctrl.SwitchStream(ctx, arg)
	case "streams":
		current := ctrl.Snapshot().CurrentStream
		for _, ep := range mgr.Catalogue().List() {
			mark := " "
			if ep.ID == current {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %-10s %s\n", mark, ep.ID, ep.Name)
		}
	case "status":
		fmt.Fprintln(out, formatSnapshot(ctrl.Snapshot()))
	case "help", "?":
		fmt.Fprintln(out, consoleHelp)
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(out, "unknown command %q (try help)\n", args[0])
	}
	return false
}

func formatSnapshot(s session.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s vol=%.2f", s.Phase, s.CurrentStream, s.Volume)
	if s.StreamTitle != "" {
		fmt.Fprintf(&b, " now=%q", s.StreamTitle)
	}
	if s.Error != "" {
		fmt.Fprintf(&b, " error=%q", s.Error)
	}
	return b.String()
}

func completer(mgr *manager.Manager) *readline.PrefixCompleter {
	var streams []readline.PrefixCompleterInterface
	for _, ep := range mgr.Catalogue().List() {
		streams = append(streams, readline.PcItem(ep.ID))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("play", streams...),
		readline.PcItem("switch", streams...),
		readline.PcItem("pause"),
		readline.PcItem("stop"),
		readline.PcItem("vol"),
		readline.PcItem("streams"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}
