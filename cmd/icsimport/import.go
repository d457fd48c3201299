package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"icsimport/internal/config"
	"icsimport/internal/directory"
	"icsimport/internal/gcal"
	"icsimport/internal/importer"
	appLog "icsimport/internal/log"
	"icsimport/internal/model"
	"icsimport/internal/notify"
)

var (
	importCalendar  string
	importPageTitle string
	importPageURL   string
)

var importCmd = &cobra.Command{
	Use:   "import <url>",
	Short: "Import an .ics resource into the configured calendar",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importCalendar, "calendar", "", "Destination calendar ID (overrides config)")
	importCmd.Flags().StringVar(&importPageTitle, "page-title", "", "Title of the page the link came from")
	importCmd.Flags().StringVar(&importPageURL, "page-url", "", "URL of the page the link came from")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	icsURL := args[0]

	cfgPath := flagConfig
	if cfgPath == "" {
		var err error
		cfgPath, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", cfgPath)
		return err
	}
	cfg.ApplyEnv()
	if importCalendar != "" {
		cfg.CalendarID = importCalendar
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	tokens, err := gcal.NewFileTokenProvider(cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.TokenPath, promptAuthCode)
	if err != nil {
		return err
	}
	backend, err := gcal.NewService(ctx, tokens)
	if err != nil {
		return err
	}

	dir := directory.New(backend)
	if err := dir.Start(cfg.DirectoryRefresh); err != nil {
		appLog.Warn("directory schedule not started", "reason", err.Error())
	}
	defer dir.Stop()

	imp := importer.New(importer.Options{
		Fetcher:       importer.NewHTTPFetcher(time.Duration(cfg.FetchTimeoutSeconds) * time.Second),
		Backend:       backend,
		Auth:          tokens,
		Notifier:      &notify.Terminal{In: os.Stdin, Out: os.Stderr},
		Titles:        dir,
		StagingWindow: time.Duration(cfg.StagingSeconds) * time.Second,
		ResultWindow:  time.Duration(cfg.ResultSeconds) * time.Second,
	})

	res := imp.Run(ctx, importer.Request{
		URL:        icsURL,
		CalendarID: cfg.CalendarID,
		Page:       model.PageContext{Title: importPageTitle, URL: importPageURL},
	})

	appLog.Info("import finished", "state", res.State.String(), "events", len(res.Items))

	if res.Clicked {
		for _, link := range res.Links {
			fmt.Println(link)
		}
	}
	if res.State == importer.StateFailed {
		return fmt.Errorf("import failed: %s", res.Message)
	}
	return nil
}

// promptAuthCode is the interactive leg of the token flow: print the
// authorization URL and read the pasted code.
func promptAuthCode(ctx context.Context, authURL string) (string, error) {
	fmt.Fprintf(os.Stderr, "Authorize access by visiting:\n\n  %s\n\nthen paste the code here: ", authURL)

	codes := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		codes <- strings.TrimSpace(line)
	}()

	select {
	case code := <-codes:
		if code == "" {
			return "", fmt.Errorf("empty authorization code")
		}
		return code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
