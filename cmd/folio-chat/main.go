// folio-chat is a terminal front end for the chat client.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/liliang-cn/folio/internal/config"
	"github.com/liliang-cn/folio/internal/domain"
	"github.com/liliang-cn/folio/internal/widget"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	mode       = flag.String("mode", "", "Reply source: backend, local, static or auto (overrides widget.mode)")
	proxyURL   = flag.String("proxy", "", "Chat proxy base URL (overrides widget.proxy_url)")
	contextSrc = flag.String("context", "", "Knowledge base URL or file (overrides widget.context_url)")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)

	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := logCfg.Build()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	env, err := widget.ResolveEnvironment(cfg.Widget.Mode, cfg.Widget.ProxyURL)
	if err != nil {
		log.Fatalf("Invalid widget mode: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		proxy       *widget.ProxyClient
		transcripts widget.TranscriptSink
		welcome     = cfg.Widget.WelcomeMessage
	)
	if env.BackendAvailable() {
		proxy = widget.NewProxyClient(env.ProxyURL, cfg.Widget.RequestTimeout, nil, logger.Named("proxy"))
		transcripts = widget.NewTranscriptClient(env.ProxyURL, nil)

		cfgCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if remote, err := widget.FetchWidgetConfig(cfgCtx, nil, env.ProxyURL); err != nil {
			logger.Warn("Failed to fetch widget config, using local settings", zap.Error(err))
		} else if remote.WelcomeMessage != "" {
			welcome = remote.WelcomeMessage
		}
		cancel()
	}

	source := cfg.Widget.ContextURL
	if source == "" && env.BackendAvailable() {
		source = env.ProxyURL + cfg.Content.Route
	}
	contextDoc := widget.NewContextLoader(nil, logger.Named("context")).Load(ctx, source)

	term := newTerminal(os.Stdout, "bot")
	session := widget.NewSession(widget.Options{
		Source:       widget.NewResolver(env, proxy, widget.NewLocalResponder(), logger.Named("resolver")),
		Surface:      term,
		Context:      contextDoc,
		IdleTimeout:  cfg.Widget.IdleTimeout,
		ReopenAfter:  cfg.Widget.ReopenAfter,
		HistoryLimit: cfg.Widget.HistoryLimit,
		Transcripts:  transcripts,
		Logger:       logger.Named("session"),
	})
	defer session.Close()

	fmt.Fprintf(os.Stdout, "Chat (%s mode). Type /quit to leave.\n", env.Mode)
	session.Open(welcome)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "/quit" {
				return
			}

			session.Keystroke()
			err := session.Submit(ctx, line)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrEmptyMessage):
				term.Prompt()
			default:
				term.ShowNotice(err.Error())
				term.Prompt()
			}
		}
	}
}

func applyFlags(cfg *config.Config) {
	if *mode != "" {
		cfg.Widget.Mode = *mode
	}
	if *proxyURL != "" {
		cfg.Widget.ProxyURL = *proxyURL
	}
	if *contextSrc != "" {
		cfg.Widget.ContextURL = *contextSrc
	}
}
