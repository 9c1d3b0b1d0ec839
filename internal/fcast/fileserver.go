package fcast

import (
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// MaxPartialBytes bounds how much of a file a single ranged GET response may
// return, so one request from a receiver cannot hold a connection open
// streaming an arbitrarily large chunk. Fixed at 1 MiB (spec.md §9 open
// question on the partial-content cap).
const MaxPartialBytes = 1 << 20

// fileEntry is one registered file: its path on disk and the content type
// advertised to receivers.
type fileEntry struct {
	path        string
	contentType string
}

// FileServer serves registered local files over HTTP/1.1 GET with Range
// support, keyed by opaque UUIDs so receivers cannot enumerate the registry.
type FileServer struct {
	mu      sync.RWMutex
	entries map[string]fileEntry

	watcher *fsnotify.Watcher
	server  *http.Server
	addr    net.Addr
}

// NewFileServer creates a file server with an empty registry and starts its
// directory watcher. It binds no socket; Serve binds the listener and starts
// serving.
func NewFileServer() (*FileServer, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fs := &FileServer{
		entries: make(map[string]fileEntry),
		watcher: watcher,
	}
	go fs.watchLoop()
	return fs, nil
}

// Register adds a file to the registry and returns its opaque key. The
// file's containing directory is watched so a deleted or moved file is
// evicted rather than silently served stale.
func (fs *FileServer) Register(path, contentType string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	key := uuid.NewString()

	fs.mu.Lock()
	fs.entries[key] = fileEntry{path: abs, contentType: contentType}
	fs.mu.Unlock()

	if err := fs.watcher.Add(filepath.Dir(abs)); err != nil {
		log.Printf("FILESERVER: watch %s: %v", filepath.Dir(abs), err)
	}
	return key, nil
}

// Unregister removes a file from the registry.
func (fs *FileServer) Unregister(key string) {
	fs.mu.Lock()
	delete(fs.entries, key)
	fs.mu.Unlock()
}

// URL builds the URL a receiver should use to fetch the registered file,
// given this server's bound address.
func (fs *FileServer) URL(key string) string {
	return "http://" + fs.addr.String() + "/" + key
}

func (fs *FileServer) watchLoop() {
	for {
		select {
		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			fs.evict(event.Name)
		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("FILESERVER: watch error: %v", err)
		}
	}
}

func (fs *FileServer) evict(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for key, entry := range fs.entries {
		if entry.path == path {
			delete(fs.entries, key)
		}
	}
}

// Serve binds an ephemeral TCP listener on IPv6 "::" (falling back to IPv4
// "0.0.0.0" when that fails) and starts serving in the background. Returns
// the bound address.
func (fs *FileServer) Serve() (net.Addr, error) {
	ln, err := net.Listen("tcp", "[::]:0")
	if err != nil {
		ln, err = net.Listen("tcp", "0.0.0.0:0")
		if err != nil {
			return nil, err
		}
	}
	fs.addr = ln.Addr()

	mux := http.NewServeMux()
	mux.HandleFunc("/", fs.handleFile)
	fs.server = &http.Server{Handler: mux}

	go func() {
		if err := fs.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("FILESERVER: serve: %v", err)
		}
	}()
	return fs.addr, nil
}

// Close shuts down the HTTP server and the directory watcher.
func (fs *FileServer) Close() error {
	if fs.server != nil {
		_ = fs.server.Close()
	}
	return fs.watcher.Close()
}

func (fs *FileServer) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/")
	fs.mu.RLock()
	entry, ok := fs.entries[key]
	fs.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(entry.path)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	start, end, status := parseRange(r.Header.Get("Range"), info.Size())
	if status == http.StatusBadRequest {
		http.Error(w, "malformed range", http.StatusBadRequest)
		return
	}
	length := end - start + 1
	if status == http.StatusPartialContent && length > MaxPartialBytes {
		length = MaxPartialBytes
		end = start + length - 1
	}

	if entry.contentType != "" {
		w.Header().Set("Content-Type", entry.contentType)
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	if status == http.StatusPartialContent {
		w.Header().Set("Content-Range", contentRangeHeader(start, end, info.Size()))
	}
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := f.Seek(start, 0); err != nil {
		return
	}
	_, _ = io.CopyN(w, f, length)
}

// parseRange parses a "bytes=start-end" Range header, returning the whole
// file when the header is absent and signaling 400 when it is malformed.
func parseRange(header string, size int64) (start, end int64, status int) {
	if header == "" {
		return 0, size - 1, http.StatusOK
	}
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, http.StatusBadRequest
	}
	parts := strings.SplitN(header[len(prefix):], "-", 2)
	if len(parts) != 2 {
		return 0, 0, http.StatusBadRequest
	}
	s, errS := strconv.ParseInt(parts[0], 10, 64)
	if errS != nil {
		return 0, 0, http.StatusBadRequest
	}
	e, errE := strconv.ParseInt(parts[1], 10, 64)
	if errE != nil || e >= size {
		e = size - 1
	}
	if s < 0 || s > e {
		return 0, 0, http.StatusBadRequest
	}
	return s, e, http.StatusPartialContent
}

func contentRangeHeader(start, end, size int64) string {
	return "bytes " + strconv.FormatInt(start, 10) + "-" + strconv.FormatInt(end, 10) + "/" + strconv.FormatInt(size, 10)
}
