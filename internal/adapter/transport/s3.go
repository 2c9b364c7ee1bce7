package transport

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appconfig "github.com/semmidev/kibotos/internal/config"
	"github.com/semmidev/kibotos/internal/domain"
)

// S3Transport uploads chunks to an S3 bucket instead of an SFTP host.
type S3Transport struct {
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

func NewS3(cfg *appconfig.DestinationConfig) (*S3Transport, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Transport{
		uploader: s3manager.NewUploader(s3.NewFromConfig(awsCfg)),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

func (t *S3Transport) Upload(ctx context.Context, localPath string, progress domain.ProgressFunc) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	key := path.Join(t.prefix, filepath.Base(localPath))
	_, err = t.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &t.bucket,
		Key:    &key,
		Body:   &progressReader{r: file, total: info.Size(), progress: progress},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	return nil
}

func (t *S3Transport) Close() error {
	return nil
}
