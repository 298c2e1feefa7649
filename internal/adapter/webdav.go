package adapter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/studio-b12/gowebdav"

	"glucotrack/internal/domain"
)

// WebDAVConfig holds the connection settings of a remote WebDAV share.
// Credentials are supplied out of band through configuration.
type WebDAVConfig struct {
	BaseURL  string
	Username string
	Password string
	Root     string
}

// WebDAV is an FS over a remote WebDAV share. Failures reaching the server
// surface as domain.ErrBackendUnavailable and are never retried.
type WebDAV struct {
	client *gowebdav.Client
	base   string
	root   string
}

// NewWebDAV connects to the share and verifies the credentials
func NewWebDAV(cfg WebDAVConfig) (*WebDAV, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid webdav url %q: %w", cfg.BaseURL, err)
	}

	root, err := CleanPath(cfg.Root)
	if err != nil {
		return nil, err
	}

	w := &WebDAV{
		client: gowebdav.NewClient(cfg.BaseURL, cfg.Username, cfg.Password),
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		root:   root,
	}
	if err := w.client.Connect(); err != nil {
		return nil, domain.NewBackendError(domain.BackendWebDAV, "connect", cfg.BaseURL, err)
	}
	if root != "" {
		if err := w.client.MkdirAll(w.remote(""), 0755); err != nil {
			return nil, domain.NewBackendError(domain.BackendWebDAV, "mkdir", root, err)
		}
	}
	return w, nil
}

// Kind returns the backend kind
func (w *WebDAV) Kind() domain.BackendKind {
	return domain.BackendWebDAV
}

// Root returns the share URL joined with the root folder
func (w *WebDAV) Root() string {
	if w.root == "" {
		return w.base
	}
	return w.base + "/" + w.root
}

func (w *WebDAV) remote(name string) string {
	return "/" + path.Join(w.root, name)
}

func (w *WebDAV) classify(op, name string, err error) error {
	if gowebdav.IsErrNotFound(err) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return domain.NewBackendError(domain.BackendWebDAV, op, name, err)
}

// Exists issues a PROPFIND for name
func (w *WebDAV) Exists(name string) (bool, error) {
	clean, err := CleanPath(name)
	if err != nil {
		return false, err
	}
	if _, err := w.client.Stat(w.remote(clean)); err != nil {
		if gowebdav.IsErrNotFound(err) {
			return false, nil
		}
		return false, w.classify("stat", clean, err)
	}
	return true, nil
}

// Open streams name from the server, or buffers writes until Close uploads them
func (w *WebDAV) Open(name string, mode Mode) (File, error) {
	clean, err := CleanPath(name)
	if err != nil {
		return nil, err
	}

	if mode == ModeWrite {
		return &uploadFile{name: clean, upload: func(r io.Reader) error {
			if err := w.client.WriteStream(w.remote(clean), r, 0644); err != nil {
				return w.classify("put", clean, err)
			}
			return nil
		}}, nil
	}

	rc, err := w.client.ReadStream(w.remote(clean))
	if err != nil {
		return nil, w.classify("get", clean, err)
	}
	return &readOnlyFile{ReadCloser: rc, name: clean}, nil
}

// MkdirAll creates the collection and its parents
func (w *WebDAV) MkdirAll(name string) error {
	clean, err := CleanPath(name)
	if err != nil {
		return err
	}
	if err := w.client.MkdirAll(w.remote(clean), 0755); err != nil {
		return w.classify("mkcol", clean, err)
	}
	return nil
}

var errReadOnly = errors.New("file opened for reading")
var errWriteOnly = errors.New("file opened for writing")

type readOnlyFile struct {
	io.ReadCloser
	name string
}

func (f *readOnlyFile) Write([]byte) (int, error) {
	return 0, fmt.Errorf("%s: %w", f.name, errReadOnly)
}

// uploadFile collects writes and hands them to upload on Close
type uploadFile struct {
	name   string
	buf    bytes.Buffer
	upload func(io.Reader) error
	closed bool
}

func (f *uploadFile) Read([]byte) (int, error) {
	return 0, fmt.Errorf("%s: %w", f.name, errWriteOnly)
}

func (f *uploadFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *uploadFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.upload(&f.buf)
}
