package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/webharvest/internal/domain/binding"
	"github.com/GriffinCanCode/webharvest/internal/domain/container"
	"github.com/GriffinCanCode/webharvest/internal/domain/dom"
	"github.com/GriffinCanCode/webharvest/internal/domain/eventbus"
	"github.com/GriffinCanCode/webharvest/internal/domain/matcher"
	"github.com/GriffinCanCode/webharvest/internal/domain/notifier"
	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
	"github.com/GriffinCanCode/webharvest/internal/domain/runtime"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webharvest/internal/shared/id"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRequest  = errors.New("invalid session request")
	ErrNoPage          = errors.New("session has no browser page")
)

// PageOpener hands out a browser page per session. Pages that implement
// io.Closer are closed with their session.
type PageOpener interface {
	Open(ctx context.Context, url string) (operation.Page, error)
}

// Sink is attached to every new session's bus
type Sink interface {
	Attach(sessionID id.SessionID, bus *eventbus.Bus) (detach func())
}

// Options configures a Manager
type Options struct {
	Containers       *container.Registry
	Operations       *operation.Registry
	Pages            PageOpener
	Sinks            []Sink
	Match            matcher.Options
	OperationTimeout time.Duration
	BatchConcurrency int
	HistoryLimit     int
	ScriptTimeout    time.Duration
	PollInterval     time.Duration
	Logger           *zap.Logger
	Metrics          *monitoring.Metrics
}

// CreateRequest selects the catalog slice of a new session. URL alone
// resolves site and page through the catalog url patterns; Site with an
// optional Page picks them explicitly.
type CreateRequest struct {
	Site string `json:"site,omitempty"`
	Page string `json:"page,omitempty"`
	URL  string `json:"url,omitempty"`
	// Browser opens a page for the session and navigates it to URL
	Browser bool `json:"browser,omitempty"`
	// PollMs overrides the manager's poll interval; zero keeps it
	PollMs int `json:"pollMs,omitempty"`
}

// Session is one browser session and its runtime components
type Session struct {
	ID        id.SessionID
	Site      string
	Version   string
	PageID    string
	URL       string
	CreatedAt time.Time

	Bus        *eventbus.Bus
	Notifier   *notifier.Notifier
	Executor   *operation.Executor
	Bindings   *binding.Registry
	Controller *runtime.Controller

	page   operation.Page
	detach []func()
	stop   context.CancelFunc
	done   chan struct{}
}

// Page returns the session's browser page, or nil
func (s *Session) Page() operation.Page {
	return s.page
}

// Execute runs one operation for the session. A request without elements
// acts on the container's matched elements in the current graph.
func (s *Session) Execute(ctx context.Context, req operation.Request) operation.Result {
	return s.Executor.Execute(ctx, s.withElements(req))
}

// ExecuteBatch runs reqs independently, results in input order
func (s *Session) ExecuteBatch(ctx context.Context, reqs []operation.Request) []operation.Result {
	filled := make([]operation.Request, len(reqs))
	for i, req := range reqs {
		filled[i] = s.withElements(req)
	}
	return s.Executor.ExecuteBatch(ctx, filled)
}

func (s *Session) withElements(req operation.Request) operation.Request {
	if len(req.Elements) == 0 && req.ContainerID != "" {
		req.Elements = binding.ElementsOf(s.Controller.CurrentGraph(), req.ContainerID)
	}
	return req
}

// Info is the listing form of a session
type Info struct {
	ID         id.SessionID `json:"id"`
	Site       string       `json:"site"`
	Version    string       `json:"version"`
	Page       string       `json:"page"`
	URL        string       `json:"url,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	State      string       `json:"state"`
	Containers int          `json:"containers"`
	Focus      string       `json:"focus,omitempty"`
	Browser    bool         `json:"browser"`
	Rules      int          `json:"rules"`
}

// Info summarizes the session
func (s *Session) Info() Info {
	info := Info{
		ID:         s.ID,
		Site:       s.Site,
		Version:    s.Version,
		Page:       s.PageID,
		URL:        s.URL,
		CreatedAt:  s.CreatedAt,
		State:      s.Controller.State().String(),
		Containers: s.Controller.CurrentGraph().Len(),
		Browser:    s.page != nil,
		Rules:      len(s.Bindings.Rules()),
	}
	if f := s.Controller.CurrentFocus(); f != nil {
		info.Focus = f.ID
	}
	return info
}

// Manager creates and tracks sessions. Every session gets its own bus,
// notifier, executor, binding registry and controller; only the operation
// and container registries are shared.
type Manager struct {
	opts    Options
	logger  *zap.Logger
	metrics *monitoring.Metrics

	sessions sync.Map
	mu       sync.Mutex
	count    int
}

// NewManager creates a session manager
func NewManager(opts Options) *Manager {
	if opts.Containers == nil {
		opts.Containers = container.NewRegistry(opts.Logger)
	}
	if opts.Operations == nil {
		opts.Operations = operation.NewRegistry()
	}
	return &Manager{
		opts:    opts,
		logger:  logging.OrNop(opts.Logger),
		metrics: opts.Metrics,
	}
}

// Create builds a session for req
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	res, err := m.resolve(req)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        id.NewSessionID(),
		Site:      res.Site,
		Version:   res.Version,
		PageID:    res.Page,
		URL:       req.URL,
		CreatedAt: time.Now(),
	}
	logger := m.logger.With(zap.String("session", s.ID.String()))

	if req.Browser {
		if m.opts.Pages == nil {
			return nil, fmt.Errorf("%w: browser is disabled", ErrInvalidRequest)
		}
		page, err := m.opts.Pages.Open(ctx, req.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open page: %w", err)
		}
		s.page = page
	}

	s.Bus = eventbus.New(eventbus.Options{
		HistoryLimit: m.opts.HistoryLimit,
		Logger:       logger,
		Metrics:      m.metrics,
	})
	s.Notifier = notifier.New(s.Bus, logger)
	s.Executor = operation.NewExecutor(m.opts.Operations, operation.ExecutorOptions{
		SessionID:        s.ID,
		Page:             s.page,
		Timeout:          m.opts.OperationTimeout,
		BatchConcurrency: m.opts.BatchConcurrency,
		Logger:           logger,
		Metrics:          m.metrics,
	})
	s.Bindings = binding.New(binding.Options{
		Bus:      s.Bus,
		Executor: s.Executor,
		Graph:    func() *matcher.Graph { return s.Controller.CurrentGraph() },
		Logger:   logger,
		Metrics:  m.metrics,
	})
	s.Controller = runtime.New(res.Definitions, m.opts.Match, runtime.Collaborators{
		Bus:      s.Bus,
		Notifier: s.Notifier,
		Bindings: s.Bindings,
		Logger:   logger,
		Metrics:  m.metrics,
	})

	if err := m.registerRules(s, res.Rules); err != nil {
		m.teardown(s)
		return nil, err
	}
	for _, sink := range m.opts.Sinks {
		s.detach = append(s.detach, sink.Attach(s.ID, s.Bus))
	}

	m.sessions.Store(s.ID, s)
	m.adjustCount(1)

	poll := m.opts.PollInterval
	if req.PollMs > 0 {
		poll = time.Duration(req.PollMs) * time.Millisecond
	}
	if poll > 0 && s.page != nil {
		m.startPolling(s, poll)
	}

	logger.Info("Session created",
		zap.String("site", s.Site),
		zap.String("version", s.Version),
		zap.String("page", s.PageID),
		zap.Int("definitions", len(res.Definitions)),
		zap.Bool("browser", s.page != nil))
	return s, nil
}

func (m *Manager) resolve(req CreateRequest) (*container.Resolution, error) {
	switch {
	case req.Site != "":
		return m.opts.Containers.Lookup(req.Site, req.Page)
	case req.URL != "":
		return m.opts.Containers.Resolve(req.URL)
	default:
		return nil, fmt.Errorf("%w: site or url is required", ErrInvalidRequest)
	}
}

func (m *Manager) registerRules(s *Session, specs []container.RuleSpec) error {
	for _, spec := range specs {
		if _, err := m.addRule(s, spec); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) addRule(s *Session, spec container.RuleSpec) (binding.Rule, error) {
	rule, err := binding.FromSpec(spec, binding.ScriptOptions{Timeout: m.opts.ScriptTimeout, Logger: m.logger})
	if err != nil {
		return binding.Rule{}, fmt.Errorf("failed to build rule: %w", err)
	}
	if err := s.Bindings.Register(rule); err != nil {
		return binding.Rule{}, fmt.Errorf("failed to register rule: %w", err)
	}
	return rule, nil
}

// AddRule builds a rule from spec and registers it on the session. A spec
// without an id gets a generated one.
func (m *Manager) AddRule(sessionID id.SessionID, spec container.RuleSpec) (binding.Rule, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return binding.Rule{}, err
	}
	return m.addRule(s, spec)
}

func (m *Manager) startPolling(s *Session, interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.refresh(ctx, s); err != nil && ctx.Err() == nil {
					m.logger.Warn("Snapshot poll failed",
						zap.String("session", s.ID.String()),
						zap.Error(err))
				}
			}
		}
	}()
}

// Get returns a session by id
func (m *Manager) Get(sessionID id.SessionID) (*Session, error) {
	val, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return val.(*Session), nil
}

// List returns every session, oldest first
func (m *Manager) List() []Info {
	var out []Info
	m.sessions.Range(func(_, value any) bool {
		out = append(out, value.(*Session).Info())
		return true
	})
	// session ids are monotonic ulids
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Ingest runs a snapshot through the session's controller
func (m *Manager) Ingest(ctx context.Context, sessionID id.SessionID, snapshot *dom.Node) (*matcher.Graph, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.Controller.OnSnapshot(ctx, snapshot), nil
}

// Refresh captures a snapshot from the session's page and ingests it
func (m *Manager) Refresh(ctx context.Context, sessionID id.SessionID) (*matcher.Graph, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return m.refresh(ctx, s)
}

func (m *Manager) refresh(ctx context.Context, s *Session) (*matcher.Graph, error) {
	if s.page == nil {
		return nil, ErrNoPage
	}
	snapshot, err := s.page.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture snapshot: %w", err)
	}
	return s.Controller.OnSnapshot(ctx, snapshot), nil
}

// Close stops and removes a session
func (m *Manager) Close(sessionID id.SessionID) error {
	val, ok := m.sessions.LoadAndDelete(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s := val.(*Session)
	m.teardown(s)
	m.adjustCount(-1)

	m.logger.Info("Session closed", zap.String("session", s.ID.String()))
	return nil
}

// CloseAll closes every session
func (m *Manager) CloseAll() {
	m.sessions.Range(func(key, _ any) bool {
		_ = m.Close(key.(id.SessionID))
		return true
	})
}

func (m *Manager) teardown(s *Session) {
	if s.stop != nil {
		s.stop()
		<-s.done
	}
	for _, detach := range s.detach {
		detach()
	}
	s.Controller.Close()
	if c, ok := s.page.(io.Closer); ok {
		if err := c.Close(); err != nil {
			m.logger.Warn("Failed to close page", zap.String("session", s.ID.String()), zap.Error(err))
		}
	}
}

func (m *Manager) adjustCount(delta int) {
	m.mu.Lock()
	m.count += delta
	count := m.count
	m.mu.Unlock()
	m.metrics.SetSessionsActive(count)
}
