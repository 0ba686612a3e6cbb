// Package tgflow runs message flows as a Telegram bot.
//
// A Wrapper wires the pieces together: the telego client, the update router, the
// conversation manager that hands button presses and text to waiting runs, a per-user
// run lock and Prometheus metrics. Flows are registered in code or declared in the
// configuration, and bound to bot commands.
//
// Basic usage:
//
//	cfg, _ := config.LoadFromFile("config.yaml")
//	w, _ := tgflow.New(cfg)
//	w.RegisterFlow(myFlow)
//	w.RegisterCommand("start", "Open the menu", myFlow.Name(), "main")
//	w.Start(ctx)
package tgflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/0xVanfer/tg-flow/config"
	"github.com/0xVanfer/tg-flow/conv"
	"github.com/0xVanfer/tg-flow/core"
	"github.com/0xVanfer/tg-flow/flow"
	"github.com/0xVanfer/tg-flow/handler"
	"github.com/0xVanfer/tg-flow/lock"
	"github.com/0xVanfer/tg-flow/metrics"
)

// BusyText answers a command sent while the user's previous run is still active.
const BusyText = "⏳ Please finish or cancel the current dialog first."

var (
	// ErrBusy is returned by StartFlow when the user already has an active run.
	ErrBusy = errors.New("user has an active run")

	// ErrUnknownFlow is returned by StartFlow for a flow that was never registered.
	ErrUnknownFlow = errors.New("unknown flow")
)

// Option customises a Wrapper.
type Option func(*Wrapper)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(w *Wrapper) {
		if log != nil {
			w.log = log
		}
	}
}

// WithBot uses an existing bot instead of creating one from the configured token.
func WithBot(bot *core.Bot) Option {
	return func(w *Wrapper) { w.bot = bot }
}

// WithLocker overrides the run lock. By default Redis is used when configured, memory otherwise.
func WithLocker(l lock.Locker) Option {
	return func(w *Wrapper) { w.locker = l }
}

// WithTransport overrides the transport runs talk through. Useful in tests.
func WithTransport(t flow.Transport) Option {
	return func(w *Wrapper) { w.transport = t }
}

// Wrapper is the main entry point of tg-flow.
// Use New to create an instance, register flows and commands, then Start.
type Wrapper struct {
	bot         *core.Bot          // Telegram API operations
	config      *config.Config     // Bot, engine and flow settings
	router      *handler.Router    // Dispatches commands, callbacks and messages
	convManager *conv.Manager      // Active runs and their pending waiters
	transport   flow.Transport     // What runs send and await through
	locker      lock.Locker        // One run per user, across instances with Redis
	redis       redis.UniversalClient
	registry    *prometheus.Registry
	collector   *metrics.Collector
	rootLog     *slog.Logger // Handed to components, which add their own "component"
	log         *slog.Logger

	flows    map[string]*flow.Flow
	commands []telego.BotCommand

	botHandler *th.BotHandler
	baseCtx    context.Context // Parent of every run, set by Start
	runs       sync.WaitGroup
	mu         sync.RWMutex
}

// New creates a Wrapper from cfg. Flows declared in cfg are not built; use
// NewWithHandlers for that.
func New(cfg *config.Config, opts ...Option) (*Wrapper, error) {
	if cfg == nil {
		return nil, errors.New("configuration cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Wrapper{
		config:   cfg,
		log:      slog.Default(),
		flows:    make(map[string]*flow.Flow),
		registry: prometheus.NewRegistry(),
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.rootLog = w.log
	w.log = w.rootLog.With("component", "tgflow")

	if w.bot == nil {
		bot, err := core.NewBot(cfg.Bot.Token, cfg.Bot.ParseMode)
		if err != nil {
			return nil, fmt.Errorf("create bot: %w", err)
		}
		w.bot = bot
	}
	if len(cfg.Bot.AllowFrom) > 0 {
		w.bot.SetAuthFunc(func(_ context.Context, userID int64, _ string) bool {
			return cfg.Bot.Allowed(userID)
		})
	}

	w.convManager = conv.NewManager(cfg.Bot.DefaultTTL, w.rootLog)
	w.router = handler.NewRouter(w.bot, w.convManager, w.rootLog)
	if w.transport == nil {
		w.transport = conv.NewTransport(w.bot, w.convManager)
	}

	if w.locker == nil {
		w.locker = w.newLocker()
	}

	var err error
	w.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if w.collector, err = metrics.NewCollector(w.registry); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	if err := w.collector.TrackConversations(w.convManager.Count); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	for _, cmd := range cfg.Bot.Commands {
		w.RegisterCommand(cmd.Command, cmd.Description, cmd.Flow, cmd.Start)
	}
	return w, nil
}

// NewWithHandlers creates a Wrapper and builds every flow declared in cfg, resolving
// handler names in registry.
func NewWithHandlers(cfg *config.Config, registry *config.HandlerRegistry, opts ...Option) (*Wrapper, error) {
	w, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	for name, fc := range cfg.Flows {
		f, err := fc.Build(registry, w.FlowOptions()...)
		if err != nil {
			return nil, fmt.Errorf("flow %q: %w", name, err)
		}
		w.RegisterFlow(f)
	}
	return w, nil
}

func (w *Wrapper) newLocker() lock.Locker {
	rc := w.config.Redis
	if rc.Addr == "" {
		return lock.NewMemory()
	}
	w.redis = redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	w.log.Info("using redis run lock", "addr", rc.Addr)
	return lock.NewRedis(w.redis, rc.Prefix)
}

// FlowOptions returns the options every flow run by this Wrapper should be built with:
// logger, metrics observer and engine defaults from the configuration.
func (w *Wrapper) FlowOptions() []flow.Option {
	opts := []flow.Option{
		flow.WithLogger(w.rootLog),
		flow.WithObserver(w.collector),
		flow.WithInputCleanup(w.config.Engine.InputCleanup),
	}
	if w.config.Engine.FailureMessage != "" {
		opts = append(opts, flow.WithFailureMessage(w.config.Engine.FailureMessage))
	}
	return opts
}

// RegisterFlow makes f available to commands by its name. A flow with the same name is replaced.
func (w *Wrapper) RegisterFlow(f *flow.Flow) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flows[f.Name()] = f
}

// Flow returns a registered flow.
func (w *Wrapper) Flow(name string) (*flow.Flow, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	f, ok := w.flows[name]
	return f, ok
}

// RegisterCommand binds a bot command to a flow. The flow is looked up when the command
// arrives, so it may be registered later. start is the first state.
func (w *Wrapper) RegisterCommand(command, description, flowName, start string) {
	w.mu.Lock()
	w.commands = append(w.commands, telego.BotCommand{Command: command, Description: description})
	w.mu.Unlock()

	w.router.RegisterCommand(command, func(ctx context.Context, msg telego.Message, _ string) error {
		err := w.StartFlow(ctx, msg.From.ID, flowName, start)
		if errors.Is(err, ErrBusy) {
			_, sendErr := w.bot.SendMessage(ctx, msg.Chat.ID, BusyText, nil)
			return sendErr
		}
		return err
	})
}

// StartFlow starts a run of the named flow for userID in the background. It returns
// ErrBusy if the user already has a run, here or on another instance sharing the lock.
func (w *Wrapper) StartFlow(ctx context.Context, userID int64, flowName, start string, opts ...flow.RunOption) error {
	f, ok := w.Flow(flowName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFlow, flowName)
	}
	if start == "" {
		start = w.startState(f)
	}

	unlock, err := w.locker.TryLock(ctx, "user:"+strconv.FormatInt(userID, 10), w.config.Redis.LockTTL)
	if errors.Is(err, lock.ErrLocked) {
		return ErrBusy
	}
	if err != nil {
		return fmt.Errorf("lock run: %w", err)
	}

	w.mu.RLock()
	parent := w.baseCtx
	w.mu.RUnlock()

	runID := uuid.NewString()
	ttl := w.config.Bot.DefaultTTL
	if fc := w.config.GetFlow(flowName); fc != nil {
		ttl = fc.GetTTL(ttl)
	}
	runCtx, _, err := w.convManager.Start(parent, userID, flowName, runID, ttl)
	if err != nil {
		_ = unlock(ctx)
		if errors.Is(err, conv.ErrActive) {
			return ErrBusy
		}
		return err
	}

	if fc := w.config.GetFlow(flowName); fc != nil && len(fc.InitialData) > 0 {
		opts = append([]flow.RunOption{flow.WithInitialData(fc.InitialData)}, opts...)
	}
	opts = append(opts, flow.WithRunID(runID))

	w.runs.Add(1)
	go func() {
		defer w.runs.Done()
		defer func() {
			if err := unlock(context.WithoutCancel(runCtx)); err != nil {
				w.log.Warn("release run lock", "user_id", userID, "error", err)
			}
			w.convManager.End(userID)
		}()

		completed, err := f.Run(runCtx, w.transport, userID, w.bot, start, opts...)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			w.log.Error("flow run failed", "flow", flowName, "run_id", runID, "user_id", userID, "error", err)
		default:
			w.log.Debug("flow run ended", "flow", flowName, "run_id", runID, "user_id", userID, "completed", completed)
		}
	}()
	return nil
}

// startState is the declared start of a config flow, or the first state added.
func (w *Wrapper) startState(f *flow.Flow) string {
	if fc := w.config.GetFlow(f.Name()); fc != nil && fc.Start != "" {
		return fc.Start
	}
	if states := f.States(); len(states) > 0 {
		return states[0]
	}
	return ""
}

// Start registers commands with Telegram, begins long polling and processes updates in
// the background. Cancel ctx to stop polling and every active run.
func (w *Wrapper) Start(ctx context.Context) error {
	w.mu.Lock()
	w.baseCtx = ctx
	commands := append([]telego.BotCommand(nil), w.commands...)
	flows := len(w.flows)
	w.mu.Unlock()

	// Register bot commands with Telegram
	if w.config.Bot.ShouldRegisterCommands() && len(commands) > 0 {
		if err := w.bot.SetMyCommands(ctx, commands); err != nil {
			w.log.Warn("register commands", "error", err)
		}
	}

	// Start long polling to receive updates from Telegram
	updates, err := w.bot.Telego().UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	w.botHandler, err = th.NewBotHandler(w.bot.Telego(), updates)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}
	w.router.SetupHandler(w.botHandler)

	w.convManager.StartCleanupTask(ctx, w.config.Engine.CleanupInterval)

	if w.config.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, w.config.Metrics.Addr, metrics.NewHandler(w.registry), w.log); err != nil {
				w.log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	go func() {
		if err := w.botHandler.Start(); err != nil {
			w.log.Error("bot handler stopped", "error", err)
		}
	}()

	w.log.Info("bot started", "flows", flows, "commands", len(commands))
	return nil
}

// Stop stops update processing, waits for active runs to end and releases resources.
// Runs end when the context passed to Start is cancelled; cancel it before calling Stop.
func (w *Wrapper) Stop(ctx context.Context) {
	if w.botHandler != nil {
		if err := w.botHandler.Stop(); err != nil {
			w.log.Warn("stop bot handler", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		w.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.log.Warn("runs still active at shutdown", "count", w.convManager.Count())
	}

	if w.config.Bot.DeleteCommandsOnExit {
		if err := w.bot.DeleteMyCommands(context.WithoutCancel(ctx)); err != nil {
			w.log.Warn("delete commands", "error", err)
		}
	}
	if w.redis != nil {
		_ = w.redis.Close()
	}
}

// Bot returns the underlying core.Bot for direct Telegram API access.
func (w *Wrapper) Bot() *core.Bot {
	return w.bot
}

// Config returns the current configuration.
func (w *Wrapper) Config() *config.Config {
	return w.config
}

// Router returns the router for registering custom callback and message handlers.
func (w *Wrapper) Router() *handler.Router {
	return w.router
}

// Conversations returns the manager of active runs.
func (w *Wrapper) Conversations() *conv.Manager {
	return w.convManager
}

// Metrics returns the gatherer behind the /metrics endpoint.
func (w *Wrapper) Metrics() prometheus.Gatherer {
	return w.registry
}
