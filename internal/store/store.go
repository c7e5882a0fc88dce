// Package store defines where backups live. A Store lists the backups it
// holds and removes the ones a retention decision gives up on.
package store

import (
	"context"
	"fmt"

	"github.com/raoulx24/backup-pruner/internal/config"
	"github.com/raoulx24/backup-pruner/internal/logging"
	"github.com/raoulx24/backup-pruner/internal/retention"
	"github.com/raoulx24/backup-pruner/internal/store/gdrive"
	"github.com/raoulx24/backup-pruner/internal/store/local"
	"github.com/raoulx24/backup-pruner/internal/store/s3store"
)

// Store is a backup location.
type Store interface {
	// List returns every backup in the store, oldest first.
	List(ctx context.Context) ([]retention.Record, error)

	// Remove deletes, or moves to trash, the backup identified by r.ID.
	Remove(ctx context.Context, r retention.Record) error
}

// Opener builds a Store from its configuration.
type Opener func(ctx context.Context, sc config.StoreConfig) (Store, error)

// Open returns an Opener that logs through log.
func Open(log logging.Logger) Opener {
	return func(ctx context.Context, sc config.StoreConfig) (Store, error) {
		switch sc.Kind {
		case config.StoreLocal, "":
			return local.New(sc.Path, sc.TrashDir, log.With("store", "local")), nil
		case config.StoreS3:
			s, err := s3store.New(ctx, s3store.Options{
				Bucket:    sc.Bucket,
				KeyPrefix: sc.KeyPrefix,
				Region:    sc.Region,
				Endpoint:  sc.Endpoint,
			})
			if err != nil {
				return nil, err
			}
			return s, nil
		case config.StoreGDrive:
			s, err := gdrive.New(ctx, sc.Folder, sc.CredentialsFile, sc.Trash)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
		return nil, fmt.Errorf("unknown store kind %q", sc.Kind)
	}
}
