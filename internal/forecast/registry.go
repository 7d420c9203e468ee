package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sales-pipeline/internal/config"
	"sales-pipeline/internal/model"
)

// ErrModelNotFound is returned by Load for an unknown identifier.
var ErrModelNotFound = errors.New("model not found")

var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Registry saves fitted forecasters and loads them back read-only.
type Registry interface {
	Save(ctx context.Context, id string, h Handle) error
	Load(ctx context.Context, id string) (Predictor, error)
}

// envelope is the persisted form of a fitted forecaster.
type envelope struct {
	Kind    string          `json:"kind"`
	Params  Params          `json:"params"`
	State   json.RawMessage `json:"state"`
	SavedAt time.Time       `json:"saved_at"`
}

func encode(h Handle) ([]byte, error) {
	var f forecaster
	switch v := h.(type) {
	case forecaster:
		f = v
	case *readOnly:
		f = v.m
	default:
		return nil, &model.CapabilityError{Operation: "save", State: h.State().String()}
	}
	if f.State() == StateUntrained {
		return nil, &model.CapabilityError{Operation: "save", State: f.State().String()}
	}
	state, err := f.marshalState()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(envelope{
		Kind:    f.Kind(),
		Params:  f.Params(),
		State:   state,
		SavedAt: time.Now().UTC(),
	}, "", "  ")
}

// persisted moves a saved handle into StatePersisted.
func persisted(h Handle) {
	if f, ok := h.(forecaster); ok {
		f.markPersisted()
	}
}

func decode(data []byte) (Predictor, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode model envelope: %w", err)
	}
	f, err := build(env.Kind, env.Params)
	if err != nil {
		return nil, err
	}
	if err := f.unmarshalState(env.State); err != nil {
		return nil, fmt.Errorf("failed to restore %s state: %w", env.Kind, err)
	}
	f.markReadOnly()
	return &readOnly{m: f}, nil
}

// readOnly exposes only the Predictor capability of a loaded model.
type readOnly struct {
	m forecaster
}

func (r *readOnly) Kind() string   { return r.m.Kind() }
func (r *readOnly) Params() Params { return r.m.Params() }
func (r *readOnly) State() State   { return r.m.State() }

func (r *readOnly) Predict(ctx context.Context, h Horizon) (Series, error) {
	return r.m.Predict(ctx, h)
}

// idLocks serializes operations per model identifier.
type idLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *idLocks) lock(id string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func checkID(id string) error {
	if !modelIDPattern.MatchString(id) {
		return &model.ConfigurationError{Key: "forecast.model_id", Reason: fmt.Sprintf("invalid model id %q", id)}
	}
	return nil
}

// ------------------- Filesystem -------------------

// FileRegistry stores one JSON file per model id in a directory.
type FileRegistry struct {
	dir    string
	locks  idLocks
	logger *slog.Logger
}

// NewFileRegistry creates the registry directory if needed.
func NewFileRegistry(dir string, logger *slog.Logger) (*FileRegistry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	return &FileRegistry{dir: dir, logger: logger.With(slog.String("component", "file_registry"))}, nil
}

func (r *FileRegistry) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

func (r *FileRegistry) Save(ctx context.Context, id string, h Handle) error {
	if err := checkID(id); err != nil {
		return err
	}
	unlock := r.locks.lock(id)
	defer unlock()
	data, err := encode(h)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp := r.path(id) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write model %s: %w", id, err)
	}
	if err := os.Rename(tmp, r.path(id)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write model %s: %w", id, err)
	}
	persisted(h)
	r.logger.Info("model saved", slog.String("id", id), slog.String("kind", h.Kind()), slog.String("path", r.path(id)))
	return nil
}

func (r *FileRegistry) Load(ctx context.Context, id string) (Predictor, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	unlock := r.locks.lock(id)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", id, err)
	}
	return decode(data)
}

// ------------------- Object store -------------------

// ObjectRegistry stores models as JSON objects in an S3-compatible bucket.
type ObjectRegistry struct {
	client *minio.Client
	bucket string
	prefix string
	locks  idLocks
	logger *slog.Logger
}

// NewObjectRegistry connects to the object store and creates the bucket if
// it does not exist.
func NewObjectRegistry(ctx context.Context, cfg config.ObjectStoreConfig, logger *slog.Logger) (*ObjectRegistry, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, &model.ConfigurationError{Key: "objectstore", Reason: "endpoint and bucket are required"}
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &ObjectRegistry{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger.With(slog.String("component", "object_registry")),
	}, nil
}

func (r *ObjectRegistry) key(id string) string {
	return path.Join(r.prefix, id+".json")
}

func (r *ObjectRegistry) Save(ctx context.Context, id string, h Handle) error {
	if err := checkID(id); err != nil {
		return err
	}
	unlock := r.locks.lock(id)
	defer unlock()
	data, err := encode(h)
	if err != nil {
		return err
	}

	_, err = r.client.PutObject(ctx, r.bucket, r.key(id), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to upload model %s: %w", id, err)
	}
	persisted(h)
	r.logger.Info("model saved", slog.String("id", id), slog.String("kind", h.Kind()),
		slog.String("bucket", r.bucket), slog.String("key", r.key(id)))
	return nil
}

func (r *ObjectRegistry) Load(ctx context.Context, id string) (Predictor, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	unlock := r.locks.lock(id)
	defer unlock()

	obj, err := r.client.GetObject(ctx, r.bucket, r.key(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch model %s: %w", id, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
		}
		return nil, fmt.Errorf("failed to read model %s: %w", id, err)
	}
	return decode(data)
}

// NewRegistry builds the configured registry backend.
func NewRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Registry, error) {
	switch cfg.Forecast.Registry.Backend {
	case "object":
		return NewObjectRegistry(ctx, cfg.ObjectStore, logger)
	default:
		return NewFileRegistry(cfg.Forecast.Registry.Dir, logger)
	}
}
