package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bassista/go_datastore/internal/logger"
	"github.com/bassista/go_datastore/internal/record"
)

// FileLoader reads wire records from a YAML (.yaml, .yml) or JSON seed file
// holding a list of records. The file is re-read on every call.
type FileLoader[ID comparable, W record.Identifiable[ID]] struct {
	path string
}

// NewFileLoader creates a loader for path.
func NewFileLoader[ID comparable, W record.Identifiable[ID]](path string) (*FileLoader[ID, W], error) {
	if path == "" {
		return nil, fmt.Errorf("seed file path is required")
	}
	return &FileLoader[ID, W]{path: path}, nil
}

func (l *FileLoader[ID, W]) LoadAll(ctx context.Context) ([]W, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var records []W
	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(payload, &records)
	default:
		err = json.Unmarshal(payload, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	logger.WithComponent("loader").Debugf("read %d records from %s", len(records), l.path)
	return records, nil
}

func (l *FileLoader[ID, W]) LoadOne(ctx context.Context, id ID) (W, error) {
	var zero W
	records, err := l.LoadAll(ctx)
	if err != nil {
		return zero, err
	}
	for _, r := range records {
		if r.RecordID() == id {
			return r, nil
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrNotFound, id)
}
