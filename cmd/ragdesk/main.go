// Command ragdesk is a console for a document Q&A backend.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/custodia-labs/ragdesk/internal/adapters/driven/backend"
	"github.com/custodia-labs/ragdesk/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragdesk/internal/adapters/driven/metrics"
	"github.com/custodia-labs/ragdesk/internal/adapters/driven/notify"
	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragdesk/internal/config"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/services"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// stores are the local persistence backends for one run.
type stores struct {
	config    driven.ConfigStore
	documents driven.DocumentStore
	chat      driven.ChatStore
	close     func() error
}

// openStores opens ~/.ragdesk and the SQLite cache. With RAGDESK_EPHEMERAL
// set, everything lives in memory and nothing is written to disk.
func openStores() (*stores, string, error) {
	if ephemeral, _ := strconv.ParseBool(os.Getenv(config.EnvPrefix + "_EPHEMERAL")); ephemeral {
		return &stores{
			config:    memory.NewConfigStore(),
			documents: memory.NewDocumentStore(),
			chat:      memory.NewChatStore(),
			close:     func() error { return nil },
		}, "", nil
	}

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return nil, "", err
	}
	return &stores{config: configStore}, configStore.Path(), nil
}

func run() error {
	st, configFile, err := openStores()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	settings, err := config.Load(config.Options{ConfigFile: configFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return err
	}

	// Ephemeral runs have no settings file and keep the in-memory stores.
	if configFile != "" {
		dataDir := settings.DataDir
		if dataDir == "" {
			dataDir = filepath.Join(filepath.Dir(configFile), "data")
		}
		store, err := sqlite.NewStore(dataDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open local store: %v\n", err)
			return err
		}
		st.documents, st.chat, st.close = store.DocumentStore(), store.ChatStore(), store.Close
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn("closing local store: %v", err)
		}
	}()

	recorder := metrics.New()

	client, err := backend.NewClient(backend.Config{
		BaseURL:    settings.API.URL,
		Token:      settings.API.Token,
		Timeout:    settings.API.Timeout,
		MaxRetries: settings.API.MaxRetries,
		RateLimit:  settings.API.RateLimit,
		Metrics:    recorder,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	// Notifications reach the TUI through the channel and the terminal
	// through the logger, which the TUI silences.
	toasts := notify.NewChannel(64)
	notifier := notify.Multi{toasts, notify.NewWriter(logger.Writer(), true)}

	sessionService, err := services.NewSessionService(st.config, settings.Password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	client.SetUnauthorizedHook(func() {
		client.ClearToken()
		if err := sessionService.Invalidate(); err != nil {
			logger.Warn("clearing rejected credentials: %v", err)
		}
	})

	documentService := services.NewDocumentService(client, st.documents, notifier, settings.Upload)
	poller := services.NewStatusPoller(documentService, settings.PollInterval, notifier, recorder)
	documentService.AttachPoller(poller)

	cli.SetVersion(version)
	cli.SetServices(&cli.Services{
		Documents: documentService,
		Poller:    poller,
		Chat:      services.NewChatService(client, st.chat, notifier),
		Topics:    services.NewTopicService(client, memory.NewTopicStore(), notifier),
		Analytics: services.NewAnalyticsService(client, notifier),
		Settings:  services.NewSettingsService(st.config),
		Sessions:  sessionService,
		// MCP clients get their own conversation so questions from
		// assistants do not land in the console history.
		MCPChat:       services.NewChatService(client, memory.NewChatStore(), nil),
		Notifications: toasts.C(),
		Metrics:       recorder.Handler(),
	})

	err = cli.Execute()
	poller.StopAll()
	return err
}
