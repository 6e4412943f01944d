package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

// ErrInvalidURL is returned for URLs that do not name a GitHub repository.
var ErrInvalidURL = errors.New("invalid GitHub repository URL")

var repoURLPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)(/.*)?$`)

// RepoRef identifies a repository and an optional subdirectory in it.
type RepoRef struct {
	Owner string
	Repo  string
	Path  string
}

// String returns the canonical https URL of the repository.
func (r RepoRef) String() string {
	return fmt.Sprintf("https://github.com/%s/%s", r.Owner, r.Repo)
}

// ParseRepoURL splits https://github.com/<owner>/<repo>[/path] into its
// parts. A trailing slash is ignored.
func ParseRepoURL(raw string) (RepoRef, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	m := repoURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return RepoRef{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return RepoRef{
		Owner: m[1],
		Repo:  strings.TrimSuffix(m[2], ".git"),
		Path:  strings.Trim(m[3], "/"),
	}, nil
}

// GitHub fetches a repository through the GitHub contents API.
type GitHub struct {
	ref         RepoRef
	token       string
	apiURL      string
	httpClient  *http.Client
	maxFileSize int64
}

// GitHubOption customizes a GitHub source.
type GitHubOption func(*GitHub)

// WithAPIURL points the source at another API endpoint.
func WithAPIURL(u string) GitHubOption {
	return func(g *GitHub) { g.apiURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHub) { g.httpClient = c }
}

// WithMaxFileSize skips files larger than n bytes. Zero disables the limit.
func WithMaxFileSize(n int64) GitHubOption {
	return func(g *GitHub) { g.maxFileSize = n }
}

// WithSubdirectory restricts fetching to one directory of the repository.
func WithSubdirectory(dir string) GitHubOption {
	return func(g *GitHub) { g.ref.Path = strings.Trim(dir, "/") }
}

// NewGitHub returns a source for the repository at repoURL. token may be
// empty for public repositories, subject to API rate limits.
func NewGitHub(repoURL, token string, opts ...GitHubOption) (*GitHub, error) {
	ref, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	g := &GitHub{
		ref:    ref,
		token:  token,
		apiURL: DefaultGitHubAPI,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Name returns owner/repo.
func (g *GitHub) Name() string {
	return g.ref.Owner + "/" + g.ref.Repo
}

// Ref returns the parsed repository reference.
func (g *GitHub) Ref() RepoRef {
	return g.ref
}

type contentEntry struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Fetch walks the repository tree and returns every UTF-8 file in it.
// Paths are relative to the repository root, not to the subdirectory.
func (g *GitHub) Fetch(ctx context.Context) ([]File, error) {
	var files []File
	if err := g.walk(ctx, g.ref.Path, &files); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", g.Name(), err)
	}
	return files, nil
}

func (g *GitHub) walk(ctx context.Context, dir string, files *[]File) error {
	var entries []contentEntry
	if err := g.getJSON(ctx, g.contentsURL(dir), &entries); err != nil {
		return err
	}
	for _, e := range entries {
		switch e.Type {
		case "dir":
			if err := g.walk(ctx, e.Path, files); err != nil {
				return err
			}
		case "file":
			if g.tooLarge(e.Size) {
				logrus.WithField("path", e.Path).Debug("skipping large file")
				continue
			}
			f, ok, err := g.file(ctx, e.Path)
			if err != nil {
				return err
			}
			if ok {
				*files = append(*files, f)
			}
		}
	}
	return nil
}

func (g *GitHub) file(ctx context.Context, p string) (File, bool, error) {
	var entry contentEntry
	if err := g.getJSON(ctx, g.contentsURL(p), &entry); err != nil {
		return File{}, false, err
	}
	// Files over the API's inline limit come back with encoding "none" and
	// no content.
	if entry.Encoding != "base64" || g.tooLarge(entry.Size) {
		logrus.WithFields(logrus.Fields{
			"path":     p,
			"encoding": entry.Encoding,
			"size":     entry.Size,
		}).Debug("skipping file without inline content")
		return File{}, false, nil
	}
	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(entry.Content, "\n", ""))
	if err != nil {
		logrus.WithField("path", p).WithError(err).Debug("skipping undecodable file")
		return File{}, false, nil
	}
	if !isText(content) {
		return File{}, false, nil
	}
	return File{Path: p, Content: content}, true, nil
}

func (g *GitHub) tooLarge(size int64) bool {
	return g.maxFileSize > 0 && size > g.maxFileSize
}

// Metadata returns the repository description document from the API.
func (g *GitHub) Metadata(ctx context.Context) (map[string]any, error) {
	var meta map[string]any
	u := fmt.Sprintf("%s/repos/%s/%s", g.apiURL, url.PathEscape(g.ref.Owner), url.PathEscape(g.ref.Repo))
	if err := g.getJSON(ctx, u, &meta); err != nil {
		return nil, fmt.Errorf("fetch metadata for %s: %w", g.Name(), err)
	}
	return meta, nil
}

func (g *GitHub) contentsURL(p string) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents", g.apiURL, url.PathEscape(g.ref.Owner), url.PathEscape(g.ref.Repo))
	if p != "" {
		u += "/" + escapePath(p)
	}
	return u
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func (g *GitHub) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if g.token != "" {
		req.Header.Set("Authorization", "token "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("GitHub API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode GitHub response: %w", err)
	}
	return nil
}
