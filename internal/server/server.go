// Package server exposes indexed repository graphs over the Model Context
// Protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"repograph/internal/indexer"
	"repograph/internal/source"
)

// IndexStatus is the indexing state of one repository.
type IndexStatus string

const (
	IndexStatusIdle       IndexStatus = "idle"
	IndexStatusInProgress IndexStatus = "in_progress"
	IndexStatusReady      IndexStatus = "ready"
	IndexStatusFailed     IndexStatus = "failed"
)

// ErrNoRepository is returned when a tool names no repository and nothing
// has been indexed in this session.
var ErrNoRepository = errors.New("no repository given and none indexed yet")

type indexState struct {
	status   IndexStatus
	err      error
	started  time.Time
	duration time.Duration
	result   *indexer.Result
	ready    chan struct{}
}

// Options configure a Server.
type Options struct {
	Name     string
	Version  string
	Sources  source.Options
	MaxWords int
	Cluster  bool
}

// Server serves graph queries for the repositories known to its indexer.
type Server struct {
	mcpServer    *mcp.Server
	indexer      *indexer.Indexer
	opts         Options
	systemPrompt string

	indexMu sync.RWMutex
	states  map[string]*indexState
	current string
}

// New returns a Server with every tool and resource registered.
func New(ix *indexer.Indexer, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "repograph"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    opts.Name,
			Version: opts.Version,
		}, nil),
		indexer:      ix,
		opts:         opts,
		systemPrompt: usageGuidelines,
		states:       make(map[string]*indexState),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves MCP over stdin/stdout until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Index indexes target, a local directory or a GitHub URL, tracking its
// status for index_status and for tools waiting on it.
func (s *Server) Index(ctx context.Context, target string) (*indexer.Result, error) {
	src, st, err := s.start(target)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, src, st)
}

// IndexInBackground registers target as the current repository and indexes
// it in a new goroutine. Errors opening the source or a concurrent index of
// the same repository are returned before the goroutine starts.
func (s *Server) IndexInBackground(ctx context.Context, target string) error {
	src, st, err := s.start(target)
	if err != nil {
		return err
	}
	go func() {
		if _, err := s.run(ctx, src, st); err != nil {
			logrus.WithField("target", target).WithError(err).Error("background indexing failed")
		}
	}()
	return nil
}

func (s *Server) start(target string) (source.Source, *indexState, error) {
	src, err := source.Open(target, s.opts.Sources)
	if err != nil {
		return nil, nil, err
	}
	st, err := s.begin(src.Name())
	if err != nil {
		return nil, nil, err
	}
	return src, st, nil
}

func (s *Server) run(ctx context.Context, src source.Source, st *indexState) (*indexer.Result, error) {
	res, err := s.indexer.Index(ctx, src)
	s.finish(src.Name(), st, res, err)
	return res, err
}

func (s *Server) begin(name string) (*indexState, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if st, ok := s.states[name]; ok && st.status == IndexStatusInProgress {
		return nil, fmt.Errorf("indexing of %s already in progress", name)
	}
	st := &indexState{
		status:  IndexStatusInProgress,
		started: time.Now(),
		ready:   make(chan struct{}),
	}
	s.states[name] = st
	s.current = name
	return st, nil
}

func (s *Server) finish(name string, st *indexState, res *indexer.Result, err error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	st.duration = time.Since(st.started)
	st.result = res
	st.err = err
	if err != nil {
		st.status = IndexStatusFailed
	} else {
		st.status = IndexStatusReady
	}
	close(st.ready)
}

// GetIndexStatus returns the status of a repository in this session.
func (s *Server) GetIndexStatus(name string) (IndexStatus, error, time.Duration) {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()

	st, ok := s.states[name]
	if !ok {
		return IndexStatusIdle, nil, 0
	}
	if st.status == IndexStatusInProgress {
		return st.status, nil, time.Since(st.started)
	}
	return st.status, st.err, st.duration
}

// WaitForIndex blocks until a running index of name completes. It returns
// at once for repositories not being indexed in this session.
func (s *Server) WaitForIndex(ctx context.Context, name string) error {
	s.indexMu.RLock()
	st, ok := s.states[name]
	s.indexMu.RUnlock()
	if !ok {
		return nil
	}
	select {
	case <-st.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// repository maps a tool argument to a stored repository name: GitHub URLs
// become owner/repo, existing directories their absolute path, and an empty
// argument the repository indexed last.
func (s *Server) repository(arg string) (string, error) {
	if arg == "" {
		s.indexMu.RLock()
		defer s.indexMu.RUnlock()
		if s.current == "" {
			return "", ErrNoRepository
		}
		return s.current, nil
	}
	if source.IsGitHubURL(arg) {
		ref, err := source.ParseRepoURL(arg)
		if err != nil {
			return "", err
		}
		return ref.Owner + "/" + ref.Repo, nil
	}
	if info, err := os.Stat(arg); err == nil && info.IsDir() {
		return source.NewLocal(arg).Name(), nil
	}
	return arg, nil
}
