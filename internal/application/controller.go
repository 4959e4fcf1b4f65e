package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bnema/catq/internal/domain"
	"github.com/bnema/catq/internal/logging"
	"github.com/bnema/catq/internal/metrics"
	"github.com/bnema/catq/internal/ports"
	"github.com/go-logr/logr"
)

var (
	ErrControllerClosed     = errors.New("session controller closed")
	ErrControllerNotStarted = errors.New("session controller not started")
)

type ControllerOption func(*SessionController)

func WithLogger(logger logr.Logger) ControllerOption {
	return func(c *SessionController) {
		c.logger = logger
	}
}

func WithRecorder(recorder *metrics.Recorder) ControllerOption {
	return func(c *SessionController) {
		c.recorder = recorder
	}
}

func WithClock(clock ports.Clock) ControllerOption {
	return func(c *SessionController) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithSessionIDs replaces the generator used to tag sessions.
func WithSessionIDs(newID func() string) ControllerOption {
	return func(c *SessionController) {
		c.newID = newID
	}
}

func WithItemCap(itemCap int) ControllerOption {
	return func(c *SessionController) {
		c.itemCap = itemCap
	}
}

type event struct {
	msg   Msg
	reply chan error
}

// SessionController runs the session machine on a single event loop.
// Identity emissions, commands and request completions are applied one at a
// time; requests run on their own goroutines and report back as events.
type SessionController struct {
	api        ports.AssessmentAPI
	identities ports.IdentitySource
	logger     logr.Logger
	recorder   *metrics.Recorder
	clock      ports.Clock
	newID      func() string
	itemCap    int

	events  chan event
	done    chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	unsubscribe func()
	closed      bool
	requestCtx  context.Context

	mu            sync.RWMutex
	machine       Machine
	watchers      map[int]func(domain.Snapshot)
	nextWatcherID int
}

func NewSessionController(api ports.AssessmentAPI, identities ports.IdentitySource, opts ...ControllerOption) *SessionController {
	c := &SessionController{
		api:        api,
		identities: identities,
		logger:     logr.Discard(),
		clock:      ports.SystemClock{},
		itemCap:    domain.DefaultItemCap,
		events:     make(chan event),
		done:       make(chan struct{}),
		watchers:   map[int]func(domain.Snapshot){},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithName("session-controller")
	c.machine = NewMachine(c.itemCap, c.newID)

	return c
}

// Start subscribes to the identity source and begins processing events.
// Requests issued by the controller use ctx; cancelling it aborts them.
func (c *SessionController) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.closed {
		return ErrControllerClosed
	}
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("session controller already started")
	}

	c.requestCtx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.loop()

	unsubscribe, err := c.identities.Subscribe(c.requestCtx, func(identity domain.Identity) {
		c.post(IdentityChanged{Identity: identity})
	})
	if err != nil {
		c.shutdownLocked()
		return fmt.Errorf("subscribe to identity source: %w", err)
	}
	c.unsubscribe = unsubscribe

	c.logger.V(logging.DEBUG).Info("Session controller started.", "item_cap", c.itemCap)
	return nil
}

// Close releases the identity subscription and stops the event loop.
// Replies arriving afterwards are dropped.
func (c *SessionController) Close() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.shutdownLocked()
}

func (c *SessionController) shutdownLocked() {
	if c.closed {
		return
	}
	c.closed = true

	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	close(c.done)
	c.wg.Wait()
	c.logger.V(logging.DEBUG).Info("Session controller stopped.")
}

func (c *SessionController) SelectOption(ctx context.Context, label string) error {
	return c.command(ctx, SelectOption{Label: label})
}

// Advance submits the selected option, or re-issues the request that failed last.
func (c *SessionController) Advance(ctx context.Context) error {
	return c.command(ctx, Advance{})
}

func (c *SessionController) Restart(ctx context.Context) error {
	return c.command(ctx, Restart{})
}

func (c *SessionController) Finish(ctx context.Context) error {
	return c.command(ctx, Finish{})
}

func (c *SessionController) Snapshot() domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.machine.Snapshot()
}

// Watch registers fn to receive a snapshot after every applied transition.
// fn runs on the event loop and must not call back into the controller
// synchronously.
func (c *SessionController) Watch(fn func(domain.Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.nextWatcherID
	c.nextWatcherID++
	c.watchers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}
}

func (c *SessionController) command(ctx context.Context, msg Msg) error {
	if !c.started.Load() {
		return ErrControllerNotStarted
	}

	reply := make(chan error, 1)
	select {
	case c.events <- event{msg: msg, reply: reply}:
	case <-c.done:
		return ErrControllerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SessionController) post(msg Msg) {
	select {
	case c.events <- event{msg: msg}:
	case <-c.done:
	}
}

func (c *SessionController) loop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *SessionController) handle(ev event) {
	c.mu.Lock()
	before := c.machine
	next, effects, err := before.Update(ev.msg)
	if err == nil {
		c.machine = next
	}
	snapshot := c.machine.Snapshot()
	watchers := make([]func(domain.Snapshot), 0, len(c.watchers))
	for _, fn := range c.watchers {
		watchers = append(watchers, fn)
	}
	c.mu.Unlock()

	if ev.reply != nil {
		ev.reply <- err
	}

	if err != nil {
		if errors.Is(err, ErrStaleResponse) {
			op := completedOperation(ev.msg)
			c.recorder.StaleResponse(string(op))
			c.logger.V(logging.DEBUG).Info("Dropped stale response.", "operation", op, "session", completedSessionID(ev.msg))
		}
		return
	}

	c.observe(before.Snapshot(), snapshot, ev.msg)

	for _, effect := range effects {
		c.execute(effect)
	}

	for _, fn := range watchers {
		fn(snapshot)
	}
}

func (c *SessionController) observe(before, after domain.Snapshot, msg Msg) {
	if after.ID != before.ID && after.Status == domain.StatusStarting {
		c.recorder.SessionStarted()
		c.logger.Info("Session started.", "identity", after.Identity, "session", after.ID)
	}

	if after.Status == domain.StatusIdle && before.Status != domain.StatusIdle {
		c.logger.Info("Identity cleared, session discarded.", "session", before.ID)
	}

	if submitted, ok := msg.(SubmitCompleted); ok && submitted.Err == nil {
		c.recorder.Answer(submitted.Result.Correct)
		c.logger.V(logging.DEBUG).Info("Answer accepted.", "session", after.ID, "item_index", after.ItemIndex, "theta", after.Theta)
	}

	if after.Status == domain.StatusFinished && before.Status != domain.StatusFinished {
		c.recorder.SessionFinished(string(after.FinishReason))
		c.logger.Info("Session finished.",
			"session", after.ID,
			"reason", after.FinishReason,
			"items", after.ItemIndex,
			"correct", after.CorrectCount,
			"theta", after.Theta)
	}

	if err := completedErr(msg); err != nil {
		c.logger.Error(err, "Assessment request failed, waiting for manual retry.", "operation", completedOperation(msg), "session", after.ID)
	}

	if after.NoItem && !before.NoItem {
		c.logger.Info("Service returned neither an item nor completion.", "session", after.ID)
	}
}

func (c *SessionController) execute(effect Effect) {
	ctx := c.requestCtx

	go func() {
		started := c.clock.Now()

		switch effect.Operation {
		case domain.OperationStart:
			err := c.api.StartSession(ctx, effect.Identity)
			c.recorder.ObserveRequest(string(effect.Operation), c.clock.Now().Sub(started), err)
			c.post(StartCompleted{SessionID: effect.SessionID, Err: err})
		case domain.OperationFetch:
			result, err := c.api.NextItem(ctx, effect.Identity)
			c.recorder.ObserveRequest(string(effect.Operation), c.clock.Now().Sub(started), err)
			c.post(FetchCompleted{SessionID: effect.SessionID, Result: result, Err: err})
		case domain.OperationSubmit:
			result, err := c.api.SubmitAnswer(ctx, effect.Answer)
			c.recorder.ObserveRequest(string(effect.Operation), c.clock.Now().Sub(started), err)
			c.post(SubmitCompleted{SessionID: effect.SessionID, Result: result, Err: err})
		}
	}()
}

func completedOperation(msg Msg) domain.Operation {
	switch msg.(type) {
	case StartCompleted:
		return domain.OperationStart
	case FetchCompleted:
		return domain.OperationFetch
	case SubmitCompleted:
		return domain.OperationSubmit
	default:
		return domain.OperationNone
	}
}

func completedErr(msg Msg) error {
	switch msg := msg.(type) {
	case StartCompleted:
		return msg.Err
	case FetchCompleted:
		return msg.Err
	case SubmitCompleted:
		return msg.Err
	default:
		return nil
	}
}

func completedSessionID(msg Msg) string {
	switch msg := msg.(type) {
	case StartCompleted:
		return msg.SessionID
	case FetchCompleted:
		return msg.SessionID
	case SubmitCompleted:
		return msg.SessionID
	default:
		return ""
	}
}
