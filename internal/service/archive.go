package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/datatecnica/sampleshare/internal/repository/objectstore"
)

// buildArchive streams the listed objects into an in-memory zip. Entry names
// are the object names with the prefix directory stripped, so the archive
// unpacks to the sample's own file tree.
func buildArchive(ctx context.Context, gw objectstore.Gateway, container string, refs []objectstore.ObjectRef, prefix string) (*bytes.Buffer, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	for _, ref := range refs {
		if err := addArchiveEntry(ctx, gw, zw, container, ref.Name, prefix); err != nil {
			zw.Close()
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf, nil
}

func addArchiveEntry(ctx context.Context, gw objectstore.Gateway, zw *zip.Writer, container, name, prefix string) error {
	reader, err := gw.Download(ctx, container, name)
	if err != nil {
		return fmt.Errorf("failed to read %s for archiving: %w", name, err)
	}
	defer reader.Close()

	arcname := strings.TrimPrefix(name, prefix)
	if arcname == "" {
		arcname = name
	}

	entry, err := zw.Create(arcname)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", arcname, err)
	}
	if _, err := io.Copy(entry, reader); err != nil {
		return fmt.Errorf("failed to write %s into archive: %w", arcname, err)
	}
	log.Debugf("Added %s to archive", arcname)
	return nil
}
