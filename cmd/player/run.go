package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	blobfile "playercore/internal/blobstore/file"
	"playercore/internal/cachemanager"
	"playercore/internal/cacheserver"
	"playercore/internal/control"
	"playercore/internal/download"
	"playercore/internal/home"
	"playercore/internal/logging"
	"playercore/internal/orchestrator"
	"playercore/internal/playerconfig"
	mqttchannel "playercore/internal/pushchannel/mqtt"
	"playercore/internal/resolver"
	"playercore/internal/sysmetrics"
	"playercore/internal/transport/httpxmds"
)

func newRunCommand(holder *loggerHolder) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the player core",
		RunE: func(cmd *cobra.Command, args []string) error {
			homeFlag, _ := cmd.Flags().GetString("home")
			cmsURL, _ := cmd.Flags().GetString("cms-url")
			cmsKey, _ := cmd.Flags().GetString("cms-key")
			displayName, _ := cmd.Flags().GetString("display-name")
			cacheAddr, _ := cmd.Flags().GetString("cache-addr")
			cacheRPS, _ := cmd.Flags().GetFloat64("cache-rate-limit")
			cacheBurst, _ := cmd.Flags().GetInt("cache-rate-burst")

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return run(ctx, holder.logger, holder.handler, runOptions{
				homeFlag:    homeFlag,
				cmsURL:      cmsURL,
				cmsKey:      cmsKey,
				displayName: displayName,
				cacheAddr:   cacheAddr,
				cacheRPS:    cacheRPS,
				cacheBurst:  cacheBurst,
			})
		},
	}

	cmd.Flags().String("cms-url", "", "CMS base URL, persisted on first run")
	cmd.Flags().String("cms-key", "", "CMS registration key, persisted on first run")
	cmd.Flags().String("display-name", "", "display name, persisted on first run")
	cmd.Flags().String("cache-addr", "", "address to serve the /cache HTTP namespace on (empty disables it)")
	cmd.Flags().Float64("cache-rate-limit", 0, "/cache namespace per-IP requests/sec (0 disables limiting)")
	cmd.Flags().Int("cache-rate-burst", 10, "/cache namespace per-IP burst size")

	return cmd
}

type runOptions struct {
	homeFlag    string
	cmsURL      string
	cmsKey      string
	displayName string
	cacheAddr   string
	cacheRPS    float64
	cacheBurst  int
}

func run(ctx context.Context, logger *slog.Logger, levelHandler *logging.ComponentFilterHandler, opts runOptions) error {
	hd, err := resolveHome(opts.homeFlag)
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	if err := hd.EnsureExists(); err != nil {
		return err
	}
	logger.Info("home directory", "path", hd.Root())

	doc, err := playerconfig.Load(hd)
	if err != nil {
		return fmt.Errorf("load player config: %w", err)
	}
	if applyConfigOverrides(doc, opts) {
		if err := playerconfig.Save(hd, doc); err != nil {
			return fmt.Errorf("persist player config: %w", err)
		}
	}
	if doc.CMSURL == "" {
		return fmt.Errorf("no cms_url configured; pass --cms-url on first run")
	}

	watcher, err := playerconfig.Watch(hd, logger, func(reloaded *playerconfig.Document) {
		logger.Info("player config reloaded from disk", "display_name", reloaded.DisplayName)
		*doc = *reloaded
	})
	if err != nil {
		return fmt.Errorf("watch player config: %w", err)
	}
	defer watcher.Close()

	store, err := blobfile.New(hd.BlobDir())
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	cache := cachemanager.New(cachemanager.Config{
		Store:               store,
		Fetcher:             download.NewHTTPFetcher(nil),
		TotalMemoryBytes:    sysmetrics.TotalMemory(),
		DownloadConcurrency: download.DefaultConcurrency,
		Logger:              logger,
	})
	logger.Info("cache tier selected", "tier", cache.Tier())

	tr := httpxmds.New(httpxmds.Config{BaseURL: doc.CMSURL, HardwareKey: doc.HardwareKey, Logger: logger})
	push := mqttchannel.New(logger)

	orch, err := orchestrator.New(orchestrator.Config{
		Transport:    tr,
		PushChannel:  push,
		Cache:        cache,
		Commands:     logCommandSink{logger: logger},
		Geo:          noopGeoPoller{},
		Logger:       logger,
		LevelHandler: levelHandler,
	})
	if err != nil {
		return fmt.Errorf("construct orchestrator: %w", err)
	}

	logger.Info("starting orchestrator")
	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}

	ctrl := control.New(control.Config{Orchestrator: orch, Cache: cache, Logger: logger})
	go func() {
		if err := ctrl.ServeUnix(ctx, hd.SocketPath()); err != nil {
			logger.Error("control socket error", "error", err)
		}
	}()

	var cacheHTTP *http.Server
	if opts.cacheAddr != "" {
		srv := cacheserver.New(cacheserver.Config{
			Cache:             cache,
			Logger:            logger,
			RequestsPerSecond: opts.cacheRPS,
			Burst:             opts.cacheBurst,
		})
		cacheHTTP = &http.Server{Addr: opts.cacheAddr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logger.Info("cache HTTP namespace listening", "addr", opts.cacheAddr)
			if err := cacheHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("cache HTTP server error", "error", err)
			}
		}()
	}

	<-ctx.Done()

	logger.Info("shutting down")
	if cacheHTTP != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = cacheHTTP.Shutdown(shutdownCtx)
	}
	_ = ctrl.Close()
	orch.Cleanup()
	logger.Info("shutdown complete")
	return nil
}

// applyConfigOverrides writes any non-empty CLI flag value into doc,
// reporting whether anything changed.
func applyConfigOverrides(doc *playerconfig.Document, opts runOptions) bool {
	changed := false
	if opts.cmsURL != "" && doc.CMSURL != opts.cmsURL {
		doc.CMSURL = opts.cmsURL
		changed = true
	}
	if opts.cmsKey != "" && doc.CMSKey != opts.cmsKey {
		doc.CMSKey = opts.cmsKey
		changed = true
	}
	if opts.displayName != "" && doc.DisplayName != opts.displayName {
		doc.DisplayName = opts.displayName
		changed = true
	}
	return changed
}

// resolveHome returns a Dir from the flag value, or the platform default.
func resolveHome(flagValue string) (home.Dir, error) {
	if flagValue != "" {
		return home.New(flagValue), nil
	}
	return home.Default()
}

// logCommandSink is the default CommandSink: it logs command_action and
// trigger_webhook payloads rather than executing them, since running an
// arbitrary platform command or HTTP webhook is the embedding
// application's concern, not the core's.
type logCommandSink struct {
	logger *slog.Logger
}

func (s logCommandSink) RunCommand(ctx context.Context, code string, args map[string]string) {
	s.logger.Info("command_action received", "code", code, "args", args)
}

func (s logCommandSink) TriggerWebhook(ctx context.Context, code string) {
	s.logger.Info("trigger_webhook received", "code", code)
}

// noopGeoPoller never resolves a location: geolocation hardware access
// is platform-specific and out of scope for the core.
type noopGeoPoller struct{}

func (noopGeoPoller) PollLocation(ctx context.Context) (resolver.Location, bool, error) {
	return resolver.Location{}, false, nil
}
