// Package recorder writes monitor values as JSON documents through afs.
package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/atomq/service/device"
)

// Service implements device.Recorder
type Service struct {
	fs      afs.Service
	baseURL string
}

// New creates a recorder writing under baseURL
func New(fs afs.Service, baseURL string) *Service {
	return &Service{fs: fs, baseURL: baseURL}
}

// Record writes <baseURL>/<runDirectory>/<beanID>.json
func (s *Service) Record(ctx context.Context, record *device.Record) (string, error) {
	if record == nil || record.BeanID == "" {
		return "", fmt.Errorf("record was empty")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record %v: %w", record.BeanID, err)
	}
	location := s.baseURL
	if record.RunDirectory != "" {
		location = url.Join(location, record.RunDirectory)
	}
	location = url.Join(location, record.BeanID+".json")
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write record %v: %w", location, err)
	}
	return location, nil
}

var _ device.Recorder = (*Service)(nil)
