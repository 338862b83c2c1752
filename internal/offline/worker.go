// Package offline implements the client's request cache layer: an
// http.RoundTripper that picks a caching strategy per request class, keeps
// versioned cache partitions and signals clients when connectivity returns.
package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/foldr/foldr-go/internal/model"
)

const (
	DefaultPrefix  = "foldr"
	DefaultTimeout = 10 * time.Second

	// CacheHeader is set to "hit" on responses served from a partition.
	CacheHeader = "X-Foldr-Cache"
)

var ErrNotInstalled = errors.New("offline: worker is not installed")

// State is the lifecycle state of a Worker.
type State int

const (
	StateNew State = iota
	StateInstalled
	StateActivated
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInstalled:
		return "installed"
	case StateActivated:
		return "activated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StatusSink receives the outcome of every upstream round trip.
type StatusSink interface {
	Set(online bool)
}

// StatusSource is a connectivity signal the worker can watch.
type StatusSource interface {
	IsOnline() bool
	Subscribe() (<-chan bool, func())
}

// Options configures a Worker. Origin and Version are required.
type Options struct {
	Origin    *url.URL
	Prefix    string
	Version   string
	Manifest  []string
	Transport http.RoundTripper
	Timeout   time.Duration
	Storage   Storage
	Status    StatusSink
	Now       func() time.Time
}

// Worker is the request cache layer.
type Worker struct {
	origin   *url.URL
	prefix   string
	static   string
	runtime  string
	manifest []string
	client   *http.Client
	storage  Storage
	status   StatusSink
	now      func() time.Time

	mu     sync.Mutex
	state  State
	subs   map[int]chan Message
	nextID int

	refreshes sync.WaitGroup
}

// New creates a Worker in StateNew.
func New(opts Options) (*Worker, error) {
	if opts.Origin == nil || opts.Origin.Host == "" {
		return nil, errors.New("offline: origin is required")
	}
	if opts.Version == "" {
		return nil, errors.New("offline: version is required")
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Worker{
		origin:   opts.Origin,
		prefix:   opts.Prefix,
		static:   fmt.Sprintf("%s-static-%s", opts.Prefix, opts.Version),
		runtime:  fmt.Sprintf("%s-runtime-%s", opts.Prefix, opts.Version),
		manifest: opts.Manifest,
		client: &http.Client{
			Transport: opts.Transport,
			Timeout:   opts.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		storage: opts.Storage,
		status:  opts.Status,
		now:     opts.Now,
		subs:    make(map[int]chan Message),
	}, nil
}

// StaticPartition is the partition filled by Install.
func (w *Worker) StaticPartition() string { return w.static }

// RuntimePartition is the partition filled while serving requests.
func (w *Worker) RuntimePartition() string { return w.runtime }

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Install precaches every manifest path into the static partition. Any
// failed fetch fails the install.
func (w *Worker) Install(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, path := range w.manifest {
		g.Go(func() error {
			return w.precache(gctx, path)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("install %s: %w", w.static, err)
	}

	w.mu.Lock()
	w.state = StateInstalled
	w.mu.Unlock()

	slog.Info("offline worker installed", "partition", w.static, "entries", len(w.manifest))
	return nil
}

func (w *Worker) precache(ctx context.Context, path string) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("manifest entry %q: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.origin.ResolveReference(ref).String(), nil)
	if err != nil {
		return err
	}

	resp, err := w.fetch(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: status %d", req.URL, resp.StatusCode)
	}

	_, err = w.keep(ctx, w.static, cacheKey(req), resp)
	return err
}

// Activate drops every partition that does not belong to the current
// version.
func (w *Worker) Activate(ctx context.Context) error {
	if w.State() == StateNew {
		return ErrNotInstalled
	}

	names, err := w.storage.Partitions(ctx)
	if err != nil {
		return fmt.Errorf("listing partitions: %w", err)
	}
	for _, name := range names {
		if name == w.static || name == w.runtime {
			continue
		}
		if err := w.storage.DropPartition(ctx, name); err != nil {
			return fmt.Errorf("dropping partition %s: %w", name, err)
		}
		slog.Info("dropped stale cache partition", "partition", name)
	}

	w.mu.Lock()
	w.state = StateActivated
	w.mu.Unlock()
	return nil
}

// Post delivers a client message to the worker.
func (w *Worker) Post(ctx context.Context, msg Message) error {
	switch msg.Type {
	case SkipWaiting:
		if w.State() == StateInstalled {
			return w.Activate(ctx)
		}
		return nil
	case ClearCache:
		names, err := w.storage.Partitions(ctx)
		if err != nil {
			return fmt.Errorf("listing partitions: %w", err)
		}
		for _, name := range names {
			if err := w.storage.DropPartition(ctx, name); err != nil {
				return fmt.Errorf("dropping partition %s: %w", name, err)
			}
		}
		slog.Info("cache cleared", "partitions", len(names))
		return nil
	}
	return fmt.Errorf("offline: unsupported message %q", msg.Type)
}

// Subscribe registers a client for worker broadcasts. Undelivered duplicates
// are dropped, so a slow client sees each pending message type once.
func (w *Worker) Subscribe() (<-chan Message, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	ch := make(chan Message, 1)
	w.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.subs, id)
			close(ch)
		})
	}
}

func (w *Worker) broadcast(msg Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Watch broadcasts SyncNow every time src goes from offline to online. It
// returns when ctx is done or src closes the subscription.
func (w *Worker) Watch(ctx context.Context, src StatusSource) {
	ch, unsubscribe := src.Subscribe()
	defer unsubscribe()

	online := src.IsOnline()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			if v && !online {
				slog.Info("connectivity regained, requesting sync")
				w.broadcast(Message{Type: SyncNow})
			}
			online = v
		}
	}
}

// Wait blocks until background refreshes have finished.
func (w *Worker) Wait() {
	w.refreshes.Wait()
}

// RoundTrip implements http.RoundTripper. Network failures are answered with
// synthesized 503 responses; an error is returned only when the request's own
// context ends.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	switch Classify(req, w.origin) {
	case ClassAPI:
		return w.networkOnly(req, ClassAPI)
	case ClassExternal:
		return w.networkFirst(req)
	default:
		return w.cacheFirst(req)
	}
}

func (w *Worker) networkOnly(req *http.Request, class Class) (*http.Response, error) {
	resp, err := w.fetch(req)
	if err != nil {
		return w.unavailable(req, class, err)
	}
	return resp, nil
}

func (w *Worker) cacheFirst(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return w.networkOnly(req, ClassShell)
	}

	ctx := req.Context()
	key := cacheKey(req)
	if e, ok := w.lookup(ctx, key, w.servingPartitions(ctx)...); ok {
		w.refresh(req, key)
		return e.response(req), nil
	}

	resp, err := w.fetch(req)
	if err != nil {
		return w.unavailable(req, ClassShell, err)
	}
	return w.keep(ctx, w.runtime, key, resp)
}

// servingPartitions lists the partitions shell requests are answered from.
// Until this version is activated, older generations under the same prefix
// are still live and act as a fallback.
func (w *Worker) servingPartitions(ctx context.Context) []string {
	parts := []string{w.runtime, w.static}
	if w.State() == StateActivated {
		return parts
	}
	names, err := w.storage.Partitions(ctx)
	if err != nil {
		slog.Warn("listing cache partitions failed", "error", err)
		return parts
	}
	for _, name := range names {
		if name != w.runtime && name != w.static && strings.HasPrefix(name, w.prefix+"-") {
			parts = append(parts, name)
		}
	}
	return parts
}

func (w *Worker) networkFirst(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return w.networkOnly(req, ClassExternal)
	}

	ctx := req.Context()
	key := cacheKey(req)
	resp, err := w.fetch(req)
	if err == nil {
		return w.keep(ctx, w.runtime, key, resp)
	}
	if ctx.Err() == nil {
		if e, ok := w.lookup(ctx, key, w.runtime); ok {
			return e.response(req), nil
		}
	}
	return w.unavailable(req, ClassExternal, err)
}

// refresh re-fetches a cached shell entry after the cached copy was served.
func (w *Worker) refresh(req *http.Request, key string) {
	ctx := context.WithoutCancel(req.Context())
	bg := req.Clone(ctx)

	w.refreshes.Add(1)
	go func() {
		defer w.refreshes.Done()

		resp, err := w.fetch(bg)
		if err != nil {
			slog.Debug("background refresh failed", "url", key, "error", err)
			return
		}
		resp, err = w.keep(ctx, w.runtime, key, resp)
		if err != nil {
			slog.Debug("background refresh failed", "url", key, "error", err)
			return
		}
		resp.Body.Close()
	}()
}

// fetch sends req upstream. Only requests to the app origin feed the status
// sink; a third-party outage says nothing about our connectivity.
func (w *Worker) fetch(req *http.Request) (*http.Response, error) {
	upstream := sameOrigin(req.URL, w.origin)
	resp, err := w.client.Do(req)
	if err != nil {
		if upstream && req.Context().Err() == nil {
			w.setOnline(false)
		}
		return nil, err
	}
	if upstream {
		w.setOnline(true)
	}
	return resp, nil
}

func (w *Worker) setOnline(online bool) {
	if w.status != nil {
		w.status.Set(online)
	}
}

// keep stores a 200 response to a GET under key and returns an equivalent
// response with a fresh body. Other responses pass through untouched.
func (w *Worker) keep(ctx context.Context, partition, key string, resp *http.Response) (*http.Response, error) {
	if resp.Request == nil || resp.Request.Method != http.MethodGet || resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	e := Entry{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body, StoredAt: w.now()}
	if err := w.storage.Put(ctx, partition, key, e); err != nil {
		slog.Warn("failed to cache response", "partition", partition, "url", key, "error", err)
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}

func (w *Worker) lookup(ctx context.Context, key string, partitions ...string) (Entry, bool) {
	for _, p := range partitions {
		e, ok, err := w.storage.Get(ctx, p, key)
		if err != nil {
			slog.Warn("cache lookup failed", "partition", p, "url", key, "error", err)
			continue
		}
		if ok {
			return e, true
		}
	}
	return Entry{}, false
}

// unavailable builds the 503 returned when the network fails. If the
// request's own context ended, that error is returned instead.
func (w *Worker) unavailable(req *http.Request, class Class, cause error) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	slog.Debug("network unavailable", "class", class, "url", req.URL.String(), "error", cause)

	header := http.Header{}
	var body []byte
	if class == ClassAPI {
		header.Set("Content-Type", "application/json")
		body, _ = json.Marshal(model.ErrorResponse{Success: false, Error: "Offline", Offline: true})
	} else {
		header.Set("Content-Type", "text/plain; charset=utf-8")
		body = []byte("Offline")
	}
	return newResponse(req, http.StatusServiceUnavailable, header, body), nil
}

func (e Entry) response(req *http.Request) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set(CacheHeader, "hit")
	return newResponse(req, e.Status, header, e.Body)
}

func newResponse(req *http.Request, status int, header http.Header, body []byte) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func cacheKey(req *http.Request) string {
	u := *req.URL
	u.Fragment = ""
	return u.String()
}
