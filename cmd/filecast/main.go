package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jaywantadh/filecast/config"
	"github.com/jaywantadh/filecast/internal/catalog"
	"github.com/jaywantadh/filecast/internal/compressor"
	"github.com/jaywantadh/filecast/internal/downloader"
	"github.com/jaywantadh/filecast/internal/metadata"
	"github.com/jaywantadh/filecast/internal/storage"
	"github.com/jaywantadh/filecast/internal/transfer"
	"github.com/jaywantadh/filecast/pkg/env"
	"github.com/jaywantadh/filecast/pkg/logging"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "filecast",
		Usage: "Serve a catalog of files over TCP and fetch the ones you want",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "directory holding filecast.yaml",
				Value: env.GetEnv("FILECAST_CONFIG_DIR", "."),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "verbose text logging",
			},
		},
		Before: func(c *cli.Context) error {
			env.LoadEnv()
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			if c.IsSet("debug") {
				cfg.Debug = c.Bool("debug")
			}
			logging.InitLogger(cfg.Debug)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"s"},
				Usage:   "Run the producer",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "listen", Usage: "listen address (overrides listen_addr)"},
				},
				Action: serve,
			},
			{
				Name:    "fetch",
				Aliases: []string{"f"},
				Usage:   "Run the consumer until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server", Usage: "producer address (overrides server_addr)"},
				},
				Action: fetch,
			},
			{
				Name:   "status",
				Usage:  "List persisted download records",
				Action: status,
			},
			{
				Name:      "compress",
				Usage:     "Write an lz4-compressed copy of a listing file",
				ArgsUsage: "<listing>",
				Action:    compress,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logging.Logger().WithError(err).Fatal("filecast failed")
	}
}

func serve(c *cli.Context) error {
	cfg := config.Config
	if c.IsSet("listen") {
		cfg.ListenAddr = c.String("listen")
	}
	policy, err := transfer.ParsePolicy(cfg.NotFoundPolicy)
	if err != nil {
		return err
	}

	var cat *catalog.Catalog
	if cfg.CatalogPath != "" {
		cat, err = catalog.LoadListing(cfg.CatalogPath)
	} else {
		cat, err = catalog.Probe(cfg.ResourceDir)
	}
	if err != nil {
		return err
	}
	files, err := storage.NewLocalStorage(cfg.ResourceDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Log.WithFields(logrus.Fields{
		"entries": cat.Len(),
		"total":   humanize.IBytes(cat.TotalSize()),
	}).Info("📚 catalog loaded")

	srv := transfer.NewServer(cat, files, transfer.WithServerPolicy(policy), transfer.WithServerLogger(logging.Log))
	return srv.ListenAndServe(ctx, cfg.ListenAddr)
}

func fetch(c *cli.Context) error {
	cfg := config.Config
	if c.IsSet("server") {
		cfg.ServerAddr = c.String("server")
	}
	policy, err := transfer.ParsePolicy(cfg.NotFoundPolicy)
	if err != nil {
		return err
	}

	store, err := metadata.OpenRecordStore(cfg.StatePath)
	if err != nil {
		return err
	}
	defer store.Close()

	out, err := storage.NewLocalStorage(cfg.OutputDir)
	if err != nil {
		return err
	}

	dial := func(ctx context.Context) (downloader.Session, error) {
		ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		client, err := transfer.Dial(ctx, cfg.ServerAddr,
			transfer.WithClientPolicy(policy),
			transfer.WithClientLogger(logging.Log.WithField("server", cfg.ServerAddr)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	ledger := downloader.NewLedger(store, out, logging.Log)
	o := downloader.New(dial, downloader.FileWantList{Path: cfg.WantListPath}, ledger, out, downloader.Options{
		PollInterval: cfg.PollInterval,
		Progress:     transfer.NewProgressTracker(cfg.ProgressInterval, logging.Log),
		Logger:       logging.Log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Log.WithFields(logrus.Fields{
		"server":  cfg.ServerAddr,
		"wants":   cfg.WantListPath,
		"output":  cfg.OutputDir,
		"policy":  policy,
		"persist": cfg.StatePath != "",
	}).Info("🚀 consumer started")
	err = o.Run(ctx)
	logging.Log.Info("👋 consumer stopped")
	return err
}

func status(c *cli.Context) error {
	cfg := config.Config
	if cfg.StatePath == "" {
		return errors.New("state_path is not configured; nothing is persisted")
	}
	store, err := metadata.OpenRecordStore(cfg.StatePath)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.ListRecords()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no completed downloads")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%-40s %10s  %s  %s\n",
			rec.Name,
			humanize.IBytes(uint64(rec.Bytes)),
			humanize.Time(time.Unix(rec.CompletedAt, 0)),
			rec.Digest)
	}
	return nil
}

func compress(c *cli.Context) error {
	src := c.Args().First()
	if src == "" {
		return errors.New("missing listing path")
	}
	dst := src + compressor.Extension
	if err := compressor.CompressFile(src, dst); err != nil {
		return err
	}
	logging.Log.WithField("path", dst).Info("🗜️ listing compressed")
	return nil
}
