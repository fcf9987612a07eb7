package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TrendSentinel/internal/model"
)

// botCommands answers the Telegram commands.
func (a *app) botCommands(ctx context.Context, command, args string) string {
	switch command {
	case "ping":
		return "pong"
	case "status":
		text, err := a.statusText(ctx, 5)
		if err != nil {
			return "status unavailable: " + err.Error()
		}
		return text
	case "screen":
		return a.screenText(ctx, strings.Fields(args))
	default:
		return fmt.Sprintf("Commands:\n/status\n/screen <%s> [crypto]\n/ping", strings.Join(a.screens.Names(), "|"))
	}
}

func (a *app) statusText(ctx context.Context, runs int) (string, error) {
	var b strings.Builder
	for _, u := range []model.Universe{model.Equities, model.Crypto} {
		s, err := a.repo.Status(ctx, u)
		if err != nil {
			return "", err
		}
		updated := "never"
		if s.UpdatedAt > 0 {
			updated = time.Unix(s.UpdatedAt, 0).Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "%s: action=%q triggered=%d updated=%s\n", u, s.Action, s.AlertTriggered, updated)
	}
	if runs > 0 {
		recent, err := a.recorder.RecentRuns(ctx, runs)
		if err != nil {
			return "", err
		}
		if len(recent) > 0 {
			b.WriteString(renderRuns(recent...))
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (a *app) screenText(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "usage: /screen <" + strings.Join(a.screens.Names(), "|") + "> [crypto]"
	}
	u := model.Equities
	if len(args) > 1 {
		parsed, err := model.ParseUniverse(args[1])
		if err != nil {
			return err.Error()
		}
		u = parsed
	}
	instruments, err := a.repo.Instruments(ctx, u)
	if err != nil {
		return "instruments unavailable: " + err.Error()
	}
	out, err := a.screens.Screen(args[0], instruments, time.Now(), 10)
	if err != nil {
		return err.Error()
	}
	if len(out) == 0 {
		return "no match"
	}
	var b strings.Builder
	for _, m := range out {
		fmt.Fprintf(&b, "%s %s", m.Instrument.Symbol, m.Instrument.Name)
		if m.TrendPerformance != nil {
			fmt.Fprintf(&b, " %+.1f%%", *m.TrendPerformance)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
