package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/podmerge/podmerge/pkg/cache"
	"github.com/podmerge/podmerge/pkg/feed"
	"github.com/podmerge/podmerge/pkg/fetch"
	"github.com/podmerge/podmerge/pkg/handler"
	"github.com/podmerge/podmerge/pkg/merge"
	"github.com/podmerge/podmerge/pkg/server"
)

type Opts struct {
	ConfigPath string `long:"config" short:"c" default:"config.toml" env:"PODMERGE_CONFIG_PATH"`
	Debug      bool   `long:"debug"`
	NoBanner   bool   `long:"no-banner"`
}

const banner = `
                 _                               
 _ __   ___   __| |_ __ ___   ___ _ __ __ _  ___ 
| '_ \ / _ \ / _' | '_ ' _ \ / _ \ '__/ _' |/ _ \
| |_) | (_) | (_| | | | | | |  __/ | | (_| |  __/
| .__/ \___/ \__,_|_| |_| |_|\___|_|  \__, |\___|
|_|                                   |___/      
`

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)

	// Parse args
	opts := Opts{}
	_, err := flags.Parse(&opts)
	if err != nil {
		log.WithError(err).Fatal("failed to parse command line arguments")
	}

	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if !opts.NoBanner {
		log.Info(banner)
	}

	log.WithFields(log.Fields{
		"version": version,
		"commit":  commit,
		"date":    date,
	}).Info("running podmerge")

	// Load TOML file
	log.Debugf("loading configuration %q", opts.ConfigPath)
	cfg, err := LoadConfig(ctx, opts.ConfigPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration file")
	}

	configureLogging(cfg.Log)

	policy, err := merge.ParsePolicy(cfg.Merge.Policy)
	if err != nil {
		log.WithError(err).Fatal("invalid merge policy")
	}

	// Public feed cache
	log.Debugf("creating %s cache (ttl %s)", cfg.Cache.Backend, cfg.Cache.TTL)
	store, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		log.WithError(err).Fatal("failed to create cache")
	}

	defer func() {
		if store == nil {
			return
		}
		if err := store.Close(); err != nil {
			log.WithError(err).Error("failed to close cache")
		}
	}()

	fetcher := fetch.NewCaching(fetch.New(cfg.Fetch, &http.Client{}), store, cfg.Cache.TTL)

	h := handler.New(fetcher, handler.Config{
		Public:     cfg.Sources.Public,
		Authorized: cfg.Sources.Authorized,
		TokenParam: cfg.Feed.TokenParam,
		Policy:     policy,
		Feed: feed.Options{
			Generator: cfg.Feed.Generator,
			TTL:       cfg.Feed.TTL,
		},
		MaxAge: cfg.Cache.TTL,
	})

	// Keep the public feed warm
	if cfg.Cache.RefreshSchedule != "" && store != nil {
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

		refresh := func() {
			log.Debugf("refreshing %s feed", cfg.Sources.Public.Name)
			if err := fetcher.Refresh(ctx, cfg.Sources.Public); err != nil {
				log.WithError(err).Warn("failed to refresh public feed")
			}
		}

		if _, err := c.AddFunc(cfg.Cache.RefreshSchedule, refresh); err != nil {
			log.WithError(err).Fatalf("can't create cron task for schedule %q", cfg.Cache.RefreshSchedule)
		}

		group.Go(func() error {
			defer func() {
				log.Info("shutting down cron")
				<-c.Stop().Done()
			}()

			// Perform initial refresh after restart
			refresh()

			c.Start()

			<-ctx.Done()
			return ctx.Err()
		})
	}

	// Run web server
	srv := server.New(cfg.Server, h)

	group.Go(func() error {
		log.Infof("running listener at %s", srv.Addr)
		return srv.Run()
	})

	group.Go(func() error {
		// Shutdown web server
		defer func() {
			log.Info("shutting down web server")

			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Error("server shutdown failed")
			}
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			cancel()
			return nil
		}
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.WithError(err).Error("wait error")
	}

	log.Info("gracefully stopped")
}

func configureLogging(cfg Log) {
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	if cfg.Filename != "" {
		log.Infof("writing log to %s", cfg.Filename)
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}
}
