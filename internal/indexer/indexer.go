// Package indexer runs the acquisition, parsing, persistence and graph
// construction pipeline for a repository.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"repograph/internal/cache"
	"repograph/internal/facts"
	"repograph/internal/graph"
	"repograph/internal/source"
	"repograph/internal/store"
)

// Parser turns fetched files into a fact table.
type Parser interface {
	Parse(ctx context.Context, files []source.File) (facts.Table, error)
}

// metadataSource is implemented by sources that can describe the
// repository, such as GitHub.
type metadataSource interface {
	Metadata(ctx context.Context) (map[string]any, error)
}

// Options configure an Indexer.
type Options struct {
	// Levels annotates stored graphs with node levels.
	Levels bool
	// GraphDir, when set, receives a node-link file per indexed repository.
	GraphDir string
}

// Result summarizes one indexing run.
type Result struct {
	RepoID      int64       `json:"repo_id"`
	Repository  string      `json:"repository"`
	Files       int         `json:"files"`
	Stats       graph.Stats `json:"stats"`
	Fingerprint string      `json:"fingerprint"`
	GraphPath   string      `json:"graph_path,omitempty"`
	Duration    string      `json:"duration"`
}

// Indexer owns the pipeline collaborators. Graphs it builds are canonical
// (never clustered); clustering is applied by readers on a copy.
type Indexer struct {
	parser Parser
	store  *store.Store
	graphs *cache.Cache[*graph.Graph]
	opts   Options

	mu     sync.RWMutex
	latest map[string]string // repository name -> fingerprint
}

// New returns an Indexer.
func New(parser Parser, st *store.Store, graphs *cache.Cache[*graph.Graph], opts Options) *Indexer {
	return &Indexer{
		parser: parser,
		store:  st,
		graphs: graphs,
		opts:   opts,
		latest: make(map[string]string),
	}
}

// Index fetches src, parses it, stores its facts, builds and stores its
// graph, and caches the graph under the facts' fingerprint.
func (ix *Indexer) Index(ctx context.Context, src source.Source) (*Result, error) {
	start := time.Now()
	name := src.Name()
	log := logrus.WithField("repository", name)

	files, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	log.WithField("files", len(files)).Info("fetched repository")

	table, err := ix.parser.Parse(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	metadata := map[string]any{"source": name, "files": len(files)}
	if ms, ok := src.(metadataSource); ok {
		if meta, err := ms.Metadata(ctx); err != nil {
			log.WithError(err).Warn("failed to fetch repository metadata")
		} else {
			metadata = meta
		}
	}

	repoID, err := ix.store.UpsertRepository(ctx, name, metadata)
	if err != nil {
		return nil, err
	}
	if err := ix.store.StoreFacts(ctx, repoID, table); err != nil {
		return nil, err
	}

	fingerprint := table.Fingerprint()
	g, err := ix.graphs.GetOrBuild(fingerprint, func() (*graph.Graph, error) {
		return graph.Build(table, graph.Options{Levels: ix.opts.Levels}), nil
	})
	if err != nil {
		return nil, err
	}
	if err := ix.store.StoreGraph(ctx, repoID, fingerprint, g); err != nil {
		return nil, err
	}
	ix.remember(name, fingerprint)

	res := &Result{
		RepoID:      repoID,
		Repository:  name,
		Files:       len(table),
		Stats:       g.Stats(),
		Fingerprint: fingerprint,
	}
	if ix.opts.GraphDir != "" {
		res.GraphPath = GraphPath(ix.opts.GraphDir, name)
		if err := graph.Save(g, res.GraphPath); err != nil {
			return nil, err
		}
	}
	res.Duration = time.Since(start).Round(time.Millisecond).String()

	log.WithFields(logrus.Fields{
		"nodes":    res.Stats.TotalNodes,
		"edges":    res.Stats.TotalEdges,
		"duration": res.Duration,
	}).Info("indexed repository")
	return res, nil
}

// Graph returns the canonical graph of an indexed repository. A stored graph
// that is missing or fails to decode is rebuilt from the stored facts.
func (ix *Indexer) Graph(ctx context.Context, repository string) (*graph.Graph, error) {
	if fp, ok := ix.fingerprint(repository); ok {
		if g, ok := ix.graphs.Get(fp); ok {
			return g, nil
		}
	}

	repo, err := ix.store.Repository(ctx, repository)
	if err != nil {
		return nil, err
	}

	g, fp, err := ix.store.Graph(ctx, repo.ID)
	switch {
	case err == nil:
		ix.graphs.Add(fp, g)
		ix.remember(repository, fp)
		return g, nil
	case errors.Is(err, graph.ErrDecode), errors.Is(err, store.ErrNotFound):
		logrus.WithField("repository", repository).WithError(err).Warn("stored graph unusable, rebuilding from facts")
	default:
		return nil, err
	}

	table, err := ix.store.Facts(ctx, repo.ID)
	if err != nil {
		return nil, err
	}
	fp = table.Fingerprint()
	g, err = ix.graphs.GetOrBuild(fp, func() (*graph.Graph, error) {
		return graph.Build(table, graph.Options{Levels: ix.opts.Levels}), nil
	})
	if err != nil {
		return nil, err
	}
	if err := ix.store.StoreGraph(ctx, repo.ID, fp, g); err != nil {
		return nil, err
	}
	ix.remember(repository, fp)
	return g, nil
}

// Facts returns the stored fact table of a repository.
func (ix *Indexer) Facts(ctx context.Context, repository string) (facts.Table, error) {
	repo, err := ix.store.Repository(ctx, repository)
	if err != nil {
		return nil, err
	}
	return ix.store.Facts(ctx, repo.ID)
}

// Repositories lists the indexed repositories.
func (ix *Indexer) Repositories(ctx context.Context) ([]store.Repository, error) {
	return ix.store.Repositories(ctx)
}

// Forget drops the cached graph of a repository.
func (ix *Indexer) Forget(repository string) {
	ix.mu.Lock()
	fp, ok := ix.latest[repository]
	delete(ix.latest, repository)
	ix.mu.Unlock()
	if ok {
		ix.graphs.Evict(fp)
	}
}

func (ix *Indexer) remember(repository, fingerprint string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.latest[repository] = fingerprint
}

func (ix *Indexer) fingerprint(repository string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	fp, ok := ix.latest[repository]
	return fp, ok
}

var unsafePathChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// GraphPath returns the file a repository's graph is saved to under dir.
func GraphPath(dir, repository string) string {
	name := strings.Trim(unsafePathChars.Replace(repository), "_")
	if name == "" {
		name = "repository"
	}
	return filepath.Join(dir, name+".json")
}
