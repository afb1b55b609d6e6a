package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pdf-annotator/internal/domain"
)

// ErrBlobNotFound is returned when a stored object does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// LocalBlobStore keeps file bytes under a directory on disk.
type LocalBlobStore struct {
	root string
}

var _ domain.BlobStore = (*LocalBlobStore)(nil)

// NewLocalBlobStore creates a blob store rooted at root, creating the directory if needed
func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalBlobStore{root: root}, nil
}

func (s *LocalBlobStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", fmt.Errorf("invalid blob path %q", path)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes r to path, replacing any previous object atomically.
func (s *LocalBlobStore) Put(ctx context.Context, path string, r io.Reader) (int64, error) {
	dst, err := s.resolve(path)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(tmp, readerWithContext(ctx, r))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return 0, err
	}
	return n, nil
}

func (s *LocalBlobStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	p, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	return f, err
}

func (s *LocalBlobStore) LocalPath(ctx context.Context, path string) (string, error) {
	p, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrBlobNotFound
		}
		return "", err
	}
	return p, nil
}

// SupabaseStorage stores objects in a Supabase storage bucket over its REST API.
type SupabaseStorage struct {
	baseURL    string
	apiKey     string
	bucket     string
	cacheDir   string
	httpClient *http.Client

	mu     sync.Mutex
	cached map[string]string
}

var _ domain.BlobStore = (*SupabaseStorage)(nil)

// NewStorageService creates a new Supabase storage client; downloads for the
// renderer are cached under cacheDir
func NewStorageService(
	baseURL string,
	apiKey string,
	bucket string,
	cacheDir string,
) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		bucket:     bucket,
		cacheDir:   cacheDir,
		httpClient: http.DefaultClient,
		cached:     make(map[string]string),
	}
}

func (s *SupabaseStorage) objectURL(path string) string {
	return s.baseURL + "/storage/v1/object/" + s.bucket + "/" + strings.TrimLeft(path, "/")
}

func (s *SupabaseStorage) Put(
	ctx context.Context,
	path string,
	file io.Reader,
) (int64, error) {
	counter := &countingReader{r: file}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(path), counter)
	if err != nil {
		return 0, err
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("storage upload failed: %s", resp.Status)
	}

	s.mu.Lock()
	delete(s.cached, path)
	s.mu.Unlock()
	return counter.n, nil
}

func (s *SupabaseStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		resp.Body.Close()
		return nil, ErrBlobNotFound
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("storage download failed: %s", resp.Status)
	}
	return resp.Body, nil
}

// LocalPath downloads the object once into the cache directory.
func (s *SupabaseStorage) LocalPath(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	if p, ok := s.cached[path]; ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	body, err := s.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.cacheDir, "blob-*"+filepath.Ext(path))
	if err != nil {
		return "", err
	}
	_, err = io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	s.mu.Lock()
	s.cached[path] = tmp.Name()
	s.mu.Unlock()
	return tmp.Name(), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
