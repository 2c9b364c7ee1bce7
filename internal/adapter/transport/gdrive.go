package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/semmidev/kibotos/internal/config"
	"github.com/semmidev/kibotos/internal/domain"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// GDriveTransport uploads chunks into a Google Drive folder using a
// service-account credentials file.
type GDriveTransport struct {
	service  *drive.Service
	folderID string
}

func NewGDrive(cfg *config.DestinationConfig) (*GDriveTransport, error) {
	service, err := drive.NewService(context.Background(),
		option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveTransport{
		service:  service,
		folderID: cfg.FolderID,
	}, nil
}

func (t *GDriveTransport) Upload(ctx context.Context, localPath string, progress domain.ProgressFunc) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	meta := &drive.File{
		Name:    filepath.Base(localPath),
		Parents: []string{t.folderID},
	}

	_, err = t.service.Files.Create(meta).
		Media(&progressReader{r: file, total: info.Size(), progress: progress}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	return nil
}

func (t *GDriveTransport) Close() error {
	return nil
}
