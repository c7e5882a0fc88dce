// Package gdrive keeps backups as files in a Google Drive folder.
//
// Credentials come from the Google client libraries: either a credentials
// file named in the config or Application Default Credentials.
package gdrive

import (
	"context"
	"fmt"
	"strings"
	"sync"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/raoulx24/backup-pruner/internal/retention"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Store lists the files in one Drive folder, found by name.
type Store struct {
	files  *drive.FilesService
	folder string
	trash  bool

	mu       sync.Mutex
	folderID string
}

func New(ctx context.Context, folder, credentialsFile string, trash bool) (*Store, error) {
	opts := []option.ClientOption{option.WithScopes(drive.DriveScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive client: %w", err)
	}
	return NewWithService(svc, folder, trash), nil
}

// NewWithService uses an existing Drive client. With trash set, removed
// backups go to the Drive trash instead of being deleted.
func NewWithService(svc *drive.Service, folder string, trash bool) *Store {
	return &Store{files: svc.Files, folder: folder, trash: trash}
}

// List returns the folder's files ordered by Drive's createdTime.
func (s *Store) List(ctx context.Context) ([]retention.Record, error) {
	folderID, err := s.resolveFolder(ctx)
	if err != nil {
		return nil, err
	}

	var records []retention.Record
	err = s.files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed = false", quote(folderID))).
		Spaces("drive").
		Fields("nextPageToken", "files(id, name, createdTime, size)").
		OrderBy("createdTime").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				created, _ := retention.ParseCreatedAt(f.CreatedTime)
				records = append(records, retention.Record{
					ID:        f.Id,
					Name:      f.Name,
					CreatedAt: created,
					Size:      f.Size,
				})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("listing drive folder %q: %w", s.folder, err)
	}
	return records, nil
}

func (s *Store) Remove(ctx context.Context, r retention.Record) error {
	if s.trash {
		if _, err := s.files.Update(r.ID, &drive.File{Trashed: true}).Context(ctx).Do(); err != nil {
			return fmt.Errorf("trashing %s: %w", r.Name, err)
		}
		return nil
	}
	if err := s.files.Delete(r.ID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deleting %s: %w", r.Name, err)
	}
	return nil
}

func (s *Store) resolveFolder(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.folderID != "" {
		return s.folderID, nil
	}

	res, err := s.files.List().
		Q(fmt.Sprintf("mimeType='%s' and name='%s' and trashed = false", folderMimeType, quote(s.folder))).
		Spaces("drive").
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("finding drive folder %q: %w", s.folder, err)
	}
	if len(res.Files) == 0 {
		return "", fmt.Errorf("drive folder %q not found", s.folder)
	}

	s.folderID = res.Files[0].Id
	return s.folderID, nil
}

func (s *Store) String() string {
	return "gdrive:" + s.folder
}

// quote escapes a value for use inside a single-quoted Drive query string.
func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
