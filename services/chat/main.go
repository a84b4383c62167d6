package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chatverso/internal/chat"
	"github.com/chatverso/internal/config"
	"github.com/chatverso/internal/logger"
	"github.com/chatverso/internal/tui"
	"github.com/chatverso/internal/ws"
)

func main() {
	cfg := config.Load()
	url := flag.String("url", cfg.ServerURL, "relay websocket URL")
	name := flag.String("name", cfg.Username, "display name (empty: read only, no join)")
	logPath := flag.String("log", "chatverso.log", "log file")
	flag.Parse()

	logger.SetPrefix("chat")
	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log %s: %v\n", *logPath, err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger.SetOutput(logFile)
	logger.SetLevel(cfg.LogLevel)
	defer logger.Flush(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := ws.Dial(dialCtx, *url, nil)
	dialCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	var program *tea.Program
	view := tui.NewView(func(msg tea.Msg) { program.Send(msg) })
	session := chat.NewSession(conn, chat.Options{DisplayName: *name, View: view})
	program = tea.NewProgram(tui.New(session.Post, *name), tea.WithAltScreen(), tea.WithMouseCellMotion())

	go func() {
		if err := session.Run(ctx, conn.Events()); err != nil && ctx.Err() == nil {
			logger.Errorf("session: %v", err)
		}
		view.Disconnected()
	}()

	if _, err := program.Run(); err != nil {
		logger.Errorf("tui: %v", err)
		cancel()
		logger.Flush(2 * time.Second)
		os.Exit(1)
	}
}
