// Package artifact offloads large node outputs to object storage,
// leaving a small reference in the Execution's Context in their place.
// Adapted from the teacher's internal/dataflow, which does the same
// for agent I/O payloads.
package artifact

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Ref is a reference to an artifact in storage, small enough to embed
// directly in an Execution's Context/NodeResult.Data in place of the
// payload it replaces.
type Ref struct {
	URI         string            `json:"uri"`
	ContentType string            `json:"contentType,omitempty"`
	Size        int64             `json:"size,omitempty"`
	Checksum    string            `json:"checksum,omitempty"`
	CreatedAt   time.Time         `json:"createdAt,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Backend is a storage backend for artifacts.
type Backend interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) (*Ref, error)
	Get(ctx context.Context, ref *Ref) (io.ReadCloser, error)
	Delete(ctx context.Context, ref *Ref) error
	List(ctx context.Context, prefix string) ([]*Ref, error)
	PresignGet(ctx context.Context, ref *Ref, expiry time.Duration) (string, error)
	PresignPut(ctx context.Context, path string, contentType string, expiry time.Duration) (string, error)
}

// Config selects and configures a Service's Backend.
type Config struct {
	// Type selects the backend: "memory", "s3", or "minio".
	Type string

	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool

	PathPrefix string
}

// DefaultConfig returns the in-memory backend, suitable for tests and
// single-process deployments with no object store configured.
func DefaultConfig() *Config {
	return &Config{Type: "memory", PathPrefix: "artifacts"}
}

// Service is the facade executor.applyResult calls through to offload
// large NodeResult payloads.
type Service struct {
	backend Backend
}

// New builds a Service from cfg, defaulting to DefaultConfig when nil.
func New(cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var backend Backend
	switch cfg.Type {
	case "memory":
		backend = NewMemoryBackend()
	case "s3", "minio":
		s3Backend, err := NewS3Backend(&S3Config{
			Endpoint:        cfg.Endpoint,
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UseSSL:          cfg.UseSSL,
			PathPrefix:      cfg.PathPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 backend: %w", err)
		}
		backend = s3Backend
	default:
		return nil, fmt.Errorf("unknown artifact backend type: %s", cfg.Type)
	}

	return &Service{backend: backend}, nil
}

// pathFor generates the storage path for a node output, scoped by the
// execution and node that produced it.
func pathFor(executionID, nodeID, name string) string {
	return fmt.Sprintf("executions/%s/nodes/%s/%s", executionID, nodeID, name)
}

// Store offloads data to the backend and returns its reference.
func (s *Service) Store(ctx context.Context, executionID, nodeID, name string, data io.Reader, contentType string) (*Ref, error) {
	return s.backend.Put(ctx, pathFor(executionID, nodeID, name), data, contentType)
}

// Fetch retrieves a previously stored artifact.
func (s *Service) Fetch(ctx context.Context, ref *Ref) (io.ReadCloser, error) {
	return s.backend.Get(ctx, ref)
}

// ListForExecution lists every artifact produced by an execution.
func (s *Service) ListForExecution(ctx context.Context, executionID string) ([]*Ref, error) {
	return s.backend.List(ctx, fmt.Sprintf("executions/%s/", executionID))
}

// DownloadURL generates a presigned download URL, when the backend
// supports one.
func (s *Service) DownloadURL(ctx context.Context, ref *Ref, expiry time.Duration) (string, error) {
	return s.backend.PresignGet(ctx, ref, expiry)
}

// MemoryBackend is an in-process Backend, used when no object store is
// configured.
type MemoryBackend struct {
	artifacts map[string]*memoryArtifact
}

type memoryArtifact struct {
	ref  *Ref
	data []byte
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{artifacts: make(map[string]*memoryArtifact)}
}

func (m *MemoryBackend) Put(ctx context.Context, path string, data io.Reader, contentType string) (*Ref, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}
	ref := &Ref{
		URI:         fmt.Sprintf("memory://%s", path),
		ContentType: contentType,
		Size:        int64(len(content)),
		CreatedAt:   time.Now().UTC(),
	}
	m.artifacts[path] = &memoryArtifact{ref: ref, data: content}
	return ref, nil
}

func (m *MemoryBackend) Get(ctx context.Context, ref *Ref) (io.ReadCloser, error) {
	path := strings.TrimPrefix(ref.URI, "memory://")
	a, ok := m.artifacts[path]
	if !ok {
		return nil, fmt.Errorf("artifact not found: %s", ref.URI)
	}
	return io.NopCloser(strings.NewReader(string(a.data))), nil
}

func (m *MemoryBackend) Delete(ctx context.Context, ref *Ref) error {
	delete(m.artifacts, strings.TrimPrefix(ref.URI, "memory://"))
	return nil
}

func (m *MemoryBackend) List(ctx context.Context, prefix string) ([]*Ref, error) {
	var refs []*Ref
	for path, a := range m.artifacts {
		if strings.HasPrefix(path, prefix) {
			refs = append(refs, a.ref)
		}
	}
	return refs, nil
}

func (m *MemoryBackend) PresignGet(ctx context.Context, ref *Ref, expiry time.Duration) (string, error) {
	return "", fmt.Errorf("presigned URLs not supported for memory backend")
}

func (m *MemoryBackend) PresignPut(ctx context.Context, path, contentType string, expiry time.Duration) (string, error) {
	return "", fmt.Errorf("presigned URLs not supported for memory backend")
}
