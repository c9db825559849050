package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"testgen/internal/domain/entity"
	"testgen/internal/domain/repository"
	"testgen/internal/infrastructure/metrics"
)

const metadataFile = "metadata.json"

// ArtifactRepository stores each artifact as <base>/<request_id>/<file>.py plus
// a metadata.json describing it.
type ArtifactRepository struct {
	basePath string
}

var _ repository.ArtifactRepository = (*ArtifactRepository)(nil)

func (r *ArtifactRepository) BasePath() string {
	return r.basePath
}

func NewArtifactRepository(basePath string) (*ArtifactRepository, error) {
	info, err := os.Stat(basePath)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(basePath, 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", basePath, mkErr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check directory %s: %w", basePath, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("path %s exists but is not a directory", basePath)
	}

	return &ArtifactRepository{basePath: basePath}, nil
}

type artifactMetadata struct {
	entity.GeneratedArtifact
	File string `json:"file"`
}

func (r *ArtifactRepository) Save(ctx context.Context, artifact *entity.GeneratedArtifact) error {
	metrics.IncArtifactOp("save")

	requestDir, err := r.requestDir(artifact.RequestID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(requestDir, 0o755); err != nil {
		return fmt.Errorf("failed to create request directory: %w", err)
	}

	fileName := artifact.FileName()
	if err := os.WriteFile(filepath.Join(requestDir, fileName), []byte(artifact.Code), 0o644); err != nil {
		metrics.IncError("artifact_repo", "write_code")
		return fmt.Errorf("failed to write file %s: %w", fileName, err)
	}

	// code lives in its own file
	meta := artifactMetadata{GeneratedArtifact: *artifact, File: fileName}
	meta.Code = ""
	metadataData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(requestDir, metadataFile), metadataData, 0o644); err != nil {
		metrics.IncError("artifact_repo", "write_metadata")
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

func (r *ArtifactRepository) Get(ctx context.Context, requestID string) (*entity.GeneratedArtifact, error) {
	metrics.IncArtifactOp("get")

	requestDir, err := r.requestDir(requestID)
	if err != nil {
		return nil, err
	}
	metadataData, err := os.ReadFile(filepath.Join(requestDir, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", entity.ErrArtifactNotFound, requestID)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta artifactMetadata
	if err := json.Unmarshal(metadataData, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	code, err := os.ReadFile(filepath.Join(requestDir, filepath.Base(meta.File)))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", meta.File, err)
	}

	artifact := meta.GeneratedArtifact
	artifact.Code = string(code)
	return &artifact, nil
}

// List returns the stored request ids, sorted.
func (r *ArtifactRepository) List(ctx context.Context) ([]string, error) {
	metrics.IncArtifactOp("list")

	var requests []string
	err := filepath.WalkDir(r.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == r.basePath {
			return nil
		}
		if _, err := os.Stat(filepath.Join(path, metadataFile)); err == nil {
			requests = append(requests, filepath.Base(path))
		}
		return fs.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(requests)
	return requests, nil
}

func (r *ArtifactRepository) Delete(ctx context.Context, requestID string) error {
	metrics.IncArtifactOp("delete")

	requestDir, err := r.requestDir(requestID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(requestDir); err != nil {
		return fmt.Errorf("failed to delete request directory: %w", err)
	}
	return nil
}

// requestDir rejects ids that would escape the base directory.
func (r *ArtifactRepository) requestDir(requestID string) (string, error) {
	if requestID == "" || requestID == "." || requestID == ".." ||
		strings.ContainsAny(requestID, `/\`) {
		return "", entity.NewInputError("request_id", "invalid request id %q", requestID)
	}
	return filepath.Join(r.basePath, requestID), nil
}
