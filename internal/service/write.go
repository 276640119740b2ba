package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/onto/internal/apperr"
	"github.com/starford/onto/internal/model"
	"github.com/starford/onto/internal/storage"
	"github.com/starford/onto/internal/validator"
)

// DefaultNamespace is the directory used for new instances without a namespace.
const DefaultNamespace = "default"

var (
	idPattern   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// WriteResult describes a committed write.
type WriteResult struct {
	Path     string            `json:"path"`
	Checksum string            `json:"checksum"`
	Report   *validator.Report `json:"report"`
}

// CreateInstanceRequest describes a new instance file.
type CreateInstanceRequest struct {
	ID         string                    `json:"id,omitempty"`
	Class      string                    `json:"class"`
	Namespace  string                    `json:"namespace,omitempty"`
	Components map[string]map[string]any `json:"components,omitempty"`
	Relations  map[string]any            `json:"relations,omitempty"`
}

// Validate checks the request shape. Schema conformance is left to the
// commit gate.
func (r *CreateInstanceRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Class, validation.Required, validation.Match(namePattern)),
		validation.Field(&r.ID, validation.Match(idPattern)),
		validation.Field(&r.Namespace, validation.Match(namePattern)),
	)
}

type instanceEntry struct {
	Class      string                    `yaml:"_class"`
	ID         string                    `yaml:"_id"`
	Namespace  string                    `yaml:"_namespace,omitempty"`
	Components map[string]map[string]any `yaml:"components,omitempty"`
	Relations  map[string]any            `yaml:"relations,omitempty"`
}

type instanceFile struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Spec       struct {
		Classes []instanceEntry `yaml:"classes"`
	} `yaml:"spec"`
}

// RenderInstance returns the storage document for a single instance.
func RenderInstance(req CreateInstanceRequest) ([]byte, error) {
	f := instanceFile{APIVersion: model.APIVersion, Kind: model.Kind}
	f.Spec.Classes = []instanceEntry{{
		Class:      req.Class,
		ID:         req.ID,
		Namespace:  req.Namespace,
		Components: req.Components,
		Relations:  req.Relations,
	}}
	out, err := yaml.Marshal(&f)
	if err != nil {
		return nil, fmt.Errorf("service: render instance: %w", err)
	}
	return out, nil
}

// InstancePath returns the store path for a new instance.
func InstancePath(namespace, class, id string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return path.Join(namespace, class, id+".yaml")
}

// WriteFile replaces (or creates) the file at p. When ifMatch is non-empty
// it must equal the checksum of the current content.
func (s *Service) WriteFile(ctx context.Context, p string, content []byte, ifMatch string) (*WriteResult, error) {
	if !storage.IsStorageFile(p) {
		return nil, fmt.Errorf("service: %s is not a storage file: %w", p, apperr.ErrInvalidInput)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if ifMatch != "" {
		existing, err := s.store.Read(p)
		if err != nil {
			return nil, fmt.Errorf("service: %s: %w", p, apperr.ErrNotFound)
		}
		if storage.Checksum(existing) != ifMatch {
			return nil, fmt.Errorf("service: %s changed: %w", p, apperr.ErrConflict)
		}
	}
	return s.commit(ctx, p, func() error { return s.store.Write(p, content) })
}

// CreateInstance writes a new single-instance file. A missing id is
// replaced with a random UUID.
func (s *Service) CreateInstance(ctx context.Context, req CreateInstanceRequest) (*WriteResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("service: %w: %w", apperr.ErrInvalidInput, err)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	if _, dup := g.Instance(req.ID); dup {
		return nil, fmt.Errorf("service: instance %q: %w", req.ID, apperr.ErrAlreadyExists)
	}

	p := InstancePath(req.Namespace, req.Class, req.ID)
	content, err := RenderInstance(req)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	exists, err := s.store.Exists(p)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("service: %s: %w", p, apperr.ErrAlreadyExists)
	}
	return s.commit(ctx, p, func() error { return s.store.Write(p, content) })
}

// DeleteInstance removes the file holding id. Files that define more than
// one instance are refused.
func (s *Service) DeleteInstance(ctx context.Context, id string) (*WriteResult, error) {
	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	inst, ok := g.Instance(id)
	if !ok {
		return nil, fmt.Errorf("service: instance %q: %w", id, apperr.ErrNotFound)
	}
	for _, other := range g.Instances {
		if other != inst && other.SourceFile == inst.SourceFile {
			return nil, fmt.Errorf("service: %s holds more than one instance: %w", inst.SourceFile, apperr.ErrConflict)
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.commit(ctx, inst.SourceFile, func() error { return s.store.Delete(inst.SourceFile) })
}

// commit applies mutate to the file at p, reloads the whole graph and
// validates it. A failing report restores the previous file state and
// returns a *ValidationError. Callers hold writeMu.
func (s *Service) commit(ctx context.Context, p string, mutate func() error) (*WriteResult, error) {
	previous, readErr := s.store.Read(p)
	existed := readErr == nil

	if err := mutate(); err != nil {
		return nil, fmt.Errorf("service: write %s: %w", p, err)
	}

	snap, report, err := s.build()
	if err == nil && report.Passed(s.strict) {
		s.install(snap, report)
		res := &WriteResult{Path: p, Report: report}
		if data, err := s.store.Read(p); err == nil {
			res.Checksum = storage.Checksum(data)
		}
		return res, nil
	}

	if rbErr := s.restore(p, previous, existed); rbErr != nil {
		s.logger.Error("service: rollback failed", slog.String("path", p), slog.String("error", rbErr.Error()))
		err = errors.Join(err, rbErr)
	}
	if reloadErr := s.reload(ctx); reloadErr != nil {
		err = errors.Join(err, reloadErr)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("service: write rejected",
		slog.String("path", p),
		slog.Int("errors", len(report.Errors)),
		slog.Int("warnings", len(report.Warnings)))
	return nil, &ValidationError{Path: p, Report: report}
}

func (s *Service) restore(p string, previous []byte, existed bool) error {
	if existed {
		return s.store.Write(p, previous)
	}
	ok, err := s.store.Exists(p)
	if err != nil || !ok {
		return err
	}
	return s.store.Delete(p)
}
