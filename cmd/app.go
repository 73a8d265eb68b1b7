package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ridoystarlord/discontented/assets"
	"github.com/ridoystarlord/discontented/contentful"
	"github.com/ridoystarlord/discontented/database"
	"github.com/ridoystarlord/discontented/importer"
	"github.com/ridoystarlord/discontented/loader"
	"github.com/ridoystarlord/discontented/locator"
	"github.com/ridoystarlord/discontented/pull"
	"github.com/ridoystarlord/discontented/push"
	"github.com/ridoystarlord/discontented/schema"
)

// exitOnError prints a failure line and exits.
func exitOnError(msg string, err error) {
	if err == nil {
		return
	}
	fmt.Println("❌", msg+":", err)
	os.Exit(1)
}

func contentfulOptions() contentful.Options {
	return contentful.Options{
		SpaceID:         cfg.Contentful.SpaceID,
		EnvironmentID:   cfg.Contentful.EnvironmentID,
		DeliveryToken:   cfg.Contentful.DeliveryToken,
		ManagementToken: cfg.Contentful.ManagementToken,
		DeliveryURL:     cfg.Contentful.DeliveryURL,
		ManagementURL:   cfg.Contentful.ManagementURL,
		Logger:          logger,
	}
}

func requireContentful() {
	exitOnError("Contentful settings", cfg.RequireContentful())
}

func newManagement() *contentful.Management {
	requireContentful()
	return contentful.NewManagement(contentfulOptions())
}

func newDelivery() *contentful.Delivery {
	requireContentful()
	return contentful.NewDelivery(contentfulOptions())
}

func connectDB(ctx context.Context) *database.Gateway {
	db, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	exitOnError("Connecting to database", err)
	db.PrintSQL = cfg.PrintSQL
	return db
}

func loadSnapshot() *schema.Snapshot {
	snap, err := loader.LoadSnapshot(cfg.SchemaFile)
	exitOnError("Loading schema", err)
	return snap
}

func importOptions() importer.BatchOptions {
	return importer.BatchOptions{
		PageSize:         cfg.Import.PageSize,
		Concurrency:      cfg.Import.Concurrency,
		ProgressInterval: cfg.Import.ProgressInterval,
	}
}

// newUploader returns nil when no asset buckets are configured.
func newUploader(ctx context.Context) *assets.Uploader {
	if len(cfg.AssetBuckets) == 0 {
		return nil
	}
	stores, err := assets.StoresFor(ctx, cfg.AssetBuckets)
	exitOnError("Configuring asset buckets", err)

	up := assets.NewUploader(stores, cfg.Naming().Locale(), logger)
	if cfg.Import.ProgressInterval > 0 {
		up.ProgressInterval = cfg.Import.ProgressInterval
	}
	return up
}

func newPullService(ctx context.Context, db *database.Gateway) *pull.Service {
	mgmt := newManagement()
	delivery := newDelivery()

	svc := &pull.Service{
		Naming:     cfg.Naming(),
		Snapshot:   loadSnapshot(),
		Management: mgmt,
		Delivery:   delivery,
		Locator:    &locator.Online{Delivery: delivery, Management: mgmt},
		Options:    importOptions(),
		Logger:     logger,
	}
	if db != nil {
		svc.DB = db
	}
	if up := newUploader(ctx); up != nil {
		svc.Assets = up
	}
	return svc
}

func newPushService(db *database.Gateway) *push.Service {
	return &push.Service{
		Naming:     cfg.Naming(),
		Snapshot:   loadSnapshot(),
		SpaceID:    cfg.Contentful.SpaceID,
		DB:         db,
		Management: newManagement(),
		Logger:     logger,
	}
}
