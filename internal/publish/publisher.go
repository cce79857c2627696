package publish

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/rpattn/txgraph/internal/domain"
	"github.com/rpattn/txgraph/internal/export"
	"github.com/rpattn/txgraph/internal/logger"

	"github.com/spf13/afero"
)

// Publisher mirrors generated chunk files into a bucket.
type Publisher struct {
	uploader Uploader
	fs       afero.Fs
	bucket   string
	prefix   string
}

func NewPublisher(uploader Uploader, fs afero.Fs, bucket, prefix string) *Publisher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Publisher{
		uploader: uploader,
		fs:       fs,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

// Publish uploads every file under root, keeping its path relative to root
// as the object name below the configured prefix.
func (p *Publisher) Publish(ctx context.Context, root string, files []export.ChunkFile) ([]string, error) {
	log := logger.FromContext(ctx).With().Str("bucket", p.bucket).Logger()
	uris := make([]string, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return uris, err
		}
		object, err := p.objectName(root, file.Path)
		if err != nil {
			return uris, err
		}
		if err := p.upload(ctx, file.Path, object); err != nil {
			return uris, err
		}
		uri := fmt.Sprintf("gs://%s/%s", p.bucket, object)
		uris = append(uris, uri)
		log.Debug().Str("uri", uri).Int64("bytes", file.Bytes).Msg("chunk uploaded")
	}
	log.Info().Int("files", len(uris)).Msg("chunks published")
	return uris, nil
}

func (p *Publisher) upload(ctx context.Context, filePath, object string) error {
	f, err := p.fs.Open(filePath)
	if err != nil {
		return &domain.IOError{Op: "open", Path: filePath, Err: err}
	}
	defer f.Close()

	if err := p.uploader.UploadFile(ctx, p.bucket, object, f); err != nil {
		return &domain.IOError{Op: "upload", Path: filePath, Err: err}
	}
	return nil
}

func (p *Publisher) objectName(root, filePath string) (string, error) {
	rel, err := filepath.Rel(root, filePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", &domain.IOError{Op: "publish", Path: filePath, Err: fmt.Errorf("file is outside output root %s", root)}
	}
	return path.Join(p.prefix, filepath.ToSlash(rel)), nil
}
