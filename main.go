package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/browser"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/bassamadnan/mailcmd/auth"
	"github.com/bassamadnan/mailcmd/config"
	"github.com/bassamadnan/mailcmd/gmail"
	"github.com/bassamadnan/mailcmd/history"
	"github.com/bassamadnan/mailcmd/imapmail"
	"github.com/bassamadnan/mailcmd/mailbox"
	"github.com/bassamadnan/mailcmd/notify"
	"github.com/bassamadnan/mailcmd/trigger"
	"github.com/bassamadnan/mailcmd/tui"
)

const notifyTimeoutSeconds = 10

func main() {
	os.Exit(run())
}

func run() int {
	envErr := loadEnv(".env")

	cfg, err := config.Load()
	if err != nil {
		log, _ := newLogger("info", "")
		log.Errorf("Config: %v", err)
		return 1
	}

	log, levelErr := newLogger(cfg.LogLevel, cfg.LogFile)
	defer log.Sync()
	if envErr != nil {
		log.Warnf("Config: unable to read .env: %v", envErr)
	}
	if levelErr != nil {
		log.Warnf("Config: %v; using info", levelErr)
	}

	if err := cfg.Validate(); err != nil {
		log.Errorf("Config: %v", err)
		return 1
	}

	fmt.Println(tui.Banner(cfg))
	log.Infof("Application starting, provider %s", cfg.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		// Force exit on a second signal.
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Warn("Shutdown: forced exit")
		os.Exit(1)
	}()

	mb, err := openMailbox(ctx, cfg, log)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("Shutdown: interrupted during authorization")
			return 0
		}
		log.Errorf("Auth: %v", err)
		return 1
	}

	var recorder trigger.Recorder
	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			log.Warnf("History: unable to open %s, runs will not be recorded: %v", cfg.HistoryDB, err)
		} else {
			defer store.Close()
			recorder = store
		}
	}

	var notifier trigger.Notifier
	if cfg.DesktopNotify {
		notifier = notify.NewDesktop(notifyTimeoutSeconds)
	}

	poller := trigger.NewPoller(mb, cfg.Sender, cfg.Subject, log)
	executor := trigger.NewExecutor(cfg.Command, mb, recorder, notifier, log)
	trigger.NewScheduler(poller, executor, cfg.Interval, log).Run(ctx)

	log.Info("Shutdown: stopped")
	return 0
}

// loadEnv merges a .env file into the process environment. A missing file is not an error.
func loadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// newLogger always returns a usable logger. The error reports an unknown
// level (the logger then runs at info) or an unusable log file.
func newLogger(level, file string) (*zap.SugaredLogger, error) {
	zcfg := zap.NewDevelopmentConfig()
	lvl := zap.NewAtomicLevel()

	var cfgErr error
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.SetLevel(zap.InfoLevel)
		cfgErr = fmt.Errorf("unknown %s %q", config.KeyLogLevel, level)
	}
	zcfg.Level = lvl
	if file != "" {
		zcfg.OutputPaths = append(zcfg.OutputPaths, file)
	}

	logger, err := zcfg.Build()
	if err != nil {
		zcfg.OutputPaths = []string{"stderr"}
		logger, _ = zcfg.Build()
		cfgErr = errors.Join(cfgErr, fmt.Errorf("unable to open %s: %w", config.KeyLogFile, err))
	}
	return logger.Sugar(), cfgErr
}

func openMailbox(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (mailbox.Mailbox, error) {
	if cfg.Provider == config.ProviderIMAP {
		log.Infof("IMAP: using %s as %s", cfg.IMAP.Addr(), cfg.IMAP.Username)
		return imapmail.New(cfg.IMAP, log), nil
	}

	store, err := tokenStore(cfg)
	if err != nil {
		return nil, err
	}

	interactive := isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
	var prompter auth.Prompter = auth.LogPrompter{Logger: log}
	if interactive {
		prompter = tui.ConsentPrompt{}
	}
	flow := auth.NewLoopbackFlow(cfg.CallbackPort, prompter, log)
	if interactive && cfg.OpenBrowser {
		// Keep the launcher's output off the consent screen.
		browser.Stdout = io.Discard
		browser.Stderr = io.Discard
		flow.SetBrowser(browser.OpenURL)
	}

	authorizer := auth.NewAuthorizer(store, cfg.CredentialsPath, cfg.Scopes, flow, log)
	ts, err := authorizer.Authorize(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to authorize: %w", err)
	}

	client, err := gmail.NewClient(ctx, log, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func tokenStore(cfg *config.Config) (auth.Store, error) {
	if cfg.TokenStore == config.TokenStoreKeyring {
		store, err := auth.OpenKeyring(cfg.KeyringDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return auth.NewFileStore(cfg.TokenPath), nil
}
