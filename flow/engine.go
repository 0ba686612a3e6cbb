package flow

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Flow is a registered set of states and the engine that runs them.
// A Flow is safe for concurrent runs; each run owns its own State.
type Flow struct {
	name   string
	states map[string]*Definition
	order  []string
	mu     sync.RWMutex

	log            *slog.Logger
	observer       Observer
	failureMessage string
	inputCleanup   time.Duration
}

// New creates an empty flow.
func New(name string, opts ...Option) *Flow {
	f := &Flow{
		name:           name,
		states:         make(map[string]*Definition),
		log:            slog.Default(),
		observer:       NopObserver{},
		failureMessage: DefaultFailureMessage,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.With("component", "flow", "flow", name)
	return f
}

// Name returns the flow name.
func (f *Flow) Name() string {
	return f.name
}

// Add registers a state. The definition is copied; later changes to it have no effect.
func (f *Flow) Add(def Definition) error {
	if def.Pagination != nil {
		p := *def.Pagination
		def.Pagination = &p
	}
	def.NextStates = maps.Clone(def.NextStates)
	def.ExitButtons = slices.Clone(def.ExitButtons)
	if err := def.normalize(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.states[def.ID]; exists {
		return configErr(def.ID, "state registered twice")
	}
	f.states[def.ID] = &def
	f.order = append(f.order, def.ID)
	return nil
}

// MustAdd registers states and panics on the first error.
func (f *Flow) MustAdd(defs ...Definition) *Flow {
	for _, d := range defs {
		if err := f.Add(d); err != nil {
			panic(err)
		}
	}
	return f
}

// Get returns a registered state.
func (f *Flow) Get(id string) (*Definition, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.states[id]
	return d, ok
}

// States returns registered state ids in registration order.
func (f *Flow) States() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.order)
}

// Validate checks cross-state references and that the flow can end.
func (f *Flow) Validate() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.states) == 0 {
		return configErr("", "flow %q has no states", f.name)
	}
	canExit := false
	for _, id := range f.order {
		d := f.states[id]
		for token, target := range d.NextStates {
			if !f.knownLocked(target) {
				return configErr(id, "button %q leads to unknown state %q", token, target)
			}
		}
		if d.DefaultNext != "" && !f.knownLocked(d.DefaultNext) {
			return configErr(id, "default next state %q is unknown", d.DefaultNext)
		}
		if d.canExit() {
			canExit = true
		}
	}
	if !canExit {
		return configErr("", "flow %q has no exit path", f.name)
	}
	return nil
}

func (f *Flow) knownLocked(id string) bool {
	if id == Exit {
		return true
	}
	_, ok := f.states[id]
	return ok
}

// Run drives one conversation from start until it exits, times out or fails.
//
// It returns true when the run reached an exit button, a terminal state or a handler
// returned Exit. Timeouts return false with a nil error. Configuration, handler and
// transport problems return false with an error.
func (f *Flow) Run(ctx context.Context, t Transport, userID int64, api any, start string, opts ...RunOption) (bool, error) {
	cfg := runConfig{runID: uuid.NewString()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := f.Validate(); err != nil {
		return false, err
	}
	if _, ok := f.Get(start); !ok {
		return false, configErr(start, "start state is not registered")
	}

	s := NewState(cfg.runID, userID)
	s.Update(cfg.data)
	s.CurrentID = start

	r := &run{
		f:   f,
		t:   t,
		s:   s,
		api: api,
		log: f.log.With("run_id", cfg.runID, "user_id", userID),
	}

	began := time.Now()
	f.observer.RunStarted(f.name, s)
	r.log.Info("flow run started", "start", start)

	ok, outcome, err := r.loop(ctx)

	elapsed := time.Since(began)
	f.observer.RunFinished(f.name, outcome, elapsed)
	if err != nil && outcome == OutcomeFailed {
		r.log.Error("flow run failed", "state", s.CurrentID, "error", err, "elapsed", elapsed)
	} else {
		r.log.Info("flow run finished", "state", s.CurrentID, "outcome", outcome, "elapsed", elapsed)
	}
	return ok, err
}

// run holds the per-run collaborators. It is only touched by the goroutine calling Run.
type run struct {
	f       *Flow
	t       Transport
	s       *State
	api     any
	log     *slog.Logger
	pending *ButtonPress // Last press, answered on the next render or exit
	text    string       // Content of the last render
}

type moveKind int

const (
	moveStay moveKind = iota
	moveForward
	moveBack
	moveExit
)

type move struct {
	kind moveKind
	next string
}

func (r *run) loop(ctx context.Context) (bool, Outcome, error) {
	entering, returning := true, false
	for {
		d, ok := r.f.Get(r.s.CurrentID)
		if !ok {
			return false, OutcomeFailed, configErr(r.s.CurrentID, "state is not registered")
		}

		notice := ""
		if entering {
			r.f.observer.StateEntered(r.f.name, d.ID)
			// A state reached through back keeps its page and cached items.
			if d.Pagination != nil && !returning {
				resetPage(r.s, d.ID)
			}
			if d.OnEnter != nil {
				if err := d.OnEnter(ctx, r.s, r.api, r.s.UserID); err != nil {
					return r.fail(ctx, d, "on_enter", err)
				}
			}
			notice = d.EnterNotification
			entering, returning = false, false
		}

		text, kb, err := r.build(ctx, d)
		if err != nil {
			return r.fail(ctx, d, "build", err)
		}

		if notice != "" && (d.NotificationStyle == PopupBrief || d.NotificationStyle == PopupAlert) {
			r.notify(ctx, notice, d.NotificationStyle, d.AutoDelete)
			notice = ""
		}
		r.answer(ctx, "", false)

		if err := r.render(ctx, d, text, kb); err != nil {
			return false, OutcomeFailed, err
		}
		r.notify(ctx, notice, d.NotificationStyle, d.AutoDelete)

		if d.Terminal {
			if d.OnExit != nil {
				if err := d.OnExit(ctx, r.s, r.api, r.s.UserID); err != nil {
					return r.fail(ctx, d, "on_exit", err)
				}
			}
			return true, OutcomeCompleted, nil
		}

		in, err := r.await(ctx, d, kb)
		if err != nil {
			switch {
			case errors.Is(err, ErrTimeout):
				r.timeout(ctx, d)
				return false, OutcomeTimeout, nil
			case ctx.Err() != nil:
				return false, OutcomeCancelled, ctx.Err()
			default:
				return false, OutcomeFailed, &TransportError{Op: "await", Err: err}
			}
		}
		r.f.observer.InputReceived(r.f.name, d.ID, in.Kind)

		var mv move
		if in.Kind == InputButton {
			mv, err = r.onButton(ctx, d, kb, in.Button)
		} else {
			mv, err = r.onText(ctx, d, in.Text)
		}
		if err != nil {
			return r.fail(ctx, d, "input", err)
		}

		switch mv.kind {
		case moveStay:
			continue
		case moveExit:
			return r.exit(ctx, d)
		case moveBack:
			prev, ok := r.s.pop()
			if !ok {
				return r.exit(ctx, d)
			}
			if err := r.leave(ctx, d); err != nil {
				return r.fail(ctx, d, "on_exit", err)
			}
			r.s.CurrentID = prev
			returning = true
		case moveForward:
			if _, ok := r.f.Get(mv.next); !ok {
				return false, OutcomeFailed, configErr(d.ID, "transition to unknown state %q", mv.next)
			}
			if err := r.leave(ctx, d); err != nil {
				return r.fail(ctx, d, "on_exit", err)
			}
			r.s.push(d.ID)
			r.s.CurrentID = mv.next
		}
		entering = true
	}
}

// build evaluates content and keyboard, merging pagination output.
func (r *run) build(ctx context.Context, d *Definition) (string, Keyboard, error) {
	text := d.Text
	if d.TextFunc != nil {
		t, err := d.TextFunc(ctx, r.s, r.api, r.s.UserID)
		if err != nil {
			return "", nil, err
		}
		text = t
	}
	kb := d.Keyboard
	if d.KeyboardFunc != nil {
		k, err := d.KeyboardFunc(ctx, r.s, r.api, r.s.UserID)
		if err != nil {
			return "", nil, err
		}
		kb = k
	}

	if p := d.Pagination; p != nil {
		pageText, pageKB, err := p.renderPage(ctx, d, r.s, r.api, r.s.UserID)
		if err != nil {
			return "", nil, err
		}
		if pageText != "" {
			text += "\n\n" + pageText
		}
		merged := append(Keyboard{}, pageKB...)
		merged = append(merged, kb...)
		if p.CloseText != "" {
			merged = append(merged, []Button{{Text: p.CloseText, Data: p.CloseData}})
		}
		kb = merged
	}

	if d.acceptsText() && d.InputPrompt != "" {
		text += "\n\n" + d.InputPrompt
	}
	return text, kb, nil
}

// render sends or edits according to the state's action. A failed edit is retried once
// as a send.
func (r *run) render(ctx context.Context, d *Definition, text string, kb Keyboard) error {
	last := r.s.LastMessage
	edit := !last.IsZero() && (d.Action == ActionEdit || (d.Action == ActionAuto && r.t.Editable(last)))
	if edit {
		ref, err := r.t.Edit(ctx, last, text, kb)
		if err == nil {
			if ref.IsZero() {
				ref = last
			}
			r.s.LastMessage = ref
			r.text = text
			r.f.observer.Rendered(r.f.name, d.ID, ActionEdit)
			r.log.Debug("state rendered", "state", d.ID, "action", ActionEdit)
			return nil
		}
		r.log.Warn("edit failed, sending new message", "state", d.ID, "error", err)
	}

	ref, err := r.t.Send(ctx, r.s.UserID, text, kb)
	if err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	r.s.LastMessage = ref
	r.text = text
	r.f.observer.Rendered(r.f.name, d.ID, ActionSend)
	r.log.Debug("state rendered", "state", d.ID, "action", ActionSend)
	return nil
}

// await waits for input according to the state type. Text states that show buttons
// honour them too.
func (r *run) await(ctx context.Context, d *Definition, kb Keyboard) (Input, error) {
	userID := r.s.UserID
	switch {
	case d.Type == StateMixed, d.Type == StateText && kb.Len() > 0:
		return r.t.AwaitEither(ctx, userID, d.Timeout)
	case d.Type == StateText:
		reply, err := r.t.AwaitText(ctx, userID, d.Timeout)
		if err != nil {
			return Input{}, err
		}
		return Input{Kind: InputText, Text: reply}, nil
	default:
		press, err := r.t.AwaitButton(ctx, userID, d.Timeout)
		if err != nil {
			return Input{}, err
		}
		return Input{Kind: InputButton, Button: press}, nil
	}
}

// onButton resolves a button press. Exit and back tokens win, then pagination controls,
// then the button's own handler, then OnButton, then NextStates.
func (r *run) onButton(ctx context.Context, d *Definition, kb Keyboard, press ButtonPress) (move, error) {
	r.pending = &press
	data := press.Data

	if d.IsExit(data) || (d.Pagination != nil && d.Pagination.CloseText != "" && data == d.Pagination.CloseData) {
		return move{kind: moveExit}, nil
	}
	if d.BackButton != "" && data == d.BackButton {
		return move{kind: moveBack}, nil
	}
	if d.Pagination != nil {
		switch data {
		case PagePrev:
			turnPage(r.s, d.ID, -1)
			return move{kind: moveStay}, nil
		case PageNext:
			turnPage(r.s, d.ID, 1)
			return move{kind: moveStay}, nil
		case PageInfo:
			return move{kind: moveStay}, nil
		}
	}

	if b, ok := kb.Find(data); ok && b.Handler != nil {
		next, err := b.Handler(ctx, r.s, r.api, r.s.UserID)
		if err != nil {
			return move{}, err
		}
		return r.resolve(d, next), nil
	}
	if d.OnButton != nil {
		next, err := d.OnButton(ctx, data, r.s, r.api, r.s.UserID)
		if err != nil {
			return move{}, err
		}
		if next != "" {
			return r.resolve(d, next), nil
		}
	}
	if next, ok := d.NextStates[data]; ok {
		return r.resolve(d, next), nil
	}
	r.log.Debug("button has no transition", "state", d.ID, "data", data)
	return move{kind: moveStay}, nil
}

// onText handles a text reply: cancel keywords, validation, storage and OnInput.
func (r *run) onText(ctx context.Context, d *Definition, reply TextReply) (move, error) {
	if r.f.inputCleanup > 0 {
		r.deleteLater(ctx, reply.Message, r.f.inputCleanup)
	}

	trimmed := strings.TrimSpace(reply.Text)
	for _, kw := range d.CancelKeywords {
		if strings.EqualFold(trimmed, kw) {
			return move{kind: moveBack}, nil
		}
	}

	var value any = reply.Text
	if d.Validator != nil {
		v, err := d.Validator.Validate(ctx, reply.Text)
		if err != nil {
			if !errors.Is(err, ErrValidationRejected) {
				return move{}, err
			}
			r.log.Debug("input rejected", "state", d.ID, "reason", err)
			r.sendTemp(ctx, err.Error(), DefaultAutoDelete)
			return move{kind: moveStay}, nil
		}
		value = v
	}
	r.s.Set(d.storageKey(), value)

	if d.OnInput != nil {
		next, err := d.OnInput(ctx, reply.Text, r.s, r.api, r.s.UserID)
		if err != nil {
			return move{}, err
		}
		return r.resolve(d, next), nil
	}
	return r.resolve(d, d.DefaultNext), nil
}

func (r *run) resolve(d *Definition, next string) move {
	switch next {
	case "", d.ID:
		return move{kind: moveStay}
	case Exit:
		return move{kind: moveExit}
	default:
		return move{kind: moveForward, next: next}
	}
}

// leave calls OnExit for a state being left through a transition.
func (r *run) leave(ctx context.Context, d *Definition) error {
	if d.OnExit == nil {
		return nil
	}
	return d.OnExit(ctx, r.s, r.api, r.s.UserID)
}

// exit ends the run successfully from state d.
func (r *run) exit(ctx context.Context, d *Definition) (bool, Outcome, error) {
	if err := r.leave(ctx, d); err != nil {
		return r.fail(ctx, d, "on_exit", err)
	}
	r.notify(ctx, d.ExitNotification, d.NotificationStyle, d.AutoDelete)
	r.answer(ctx, "", false)

	if !d.KeepButtonsOnExit && !r.s.LastMessage.IsZero() {
		if _, err := r.t.Edit(ctx, r.s.LastMessage, r.text, nil); err != nil {
			r.log.Debug("remove buttons failed", "state", d.ID, "error", err)
		}
	}
	return true, OutcomeCompleted, nil
}

// timeout ends the run after an await expired.
func (r *run) timeout(ctx context.Context, d *Definition) {
	r.log.Info("flow run timed out", "state", d.ID, "timeout", d.Timeout)
	if err := r.leave(ctx, d); err != nil {
		r.log.Warn("on_exit failed after timeout", "state", d.ID, "error", err)
	}
	if !r.s.LastMessage.IsZero() {
		if err := r.t.Delete(ctx, r.s.LastMessage); err != nil {
			r.log.Debug("delete after timeout failed", "state", d.ID, "error", err)
		}
	}
}

// fail aborts the run after a handler error, telling the user when configured.
func (r *run) fail(ctx context.Context, d *Definition, hook string, err error) (bool, Outcome, error) {
	r.answer(ctx, "", false)
	if r.f.failureMessage != "" {
		if _, sendErr := r.t.Send(ctx, r.s.UserID, r.f.failureMessage, nil); sendErr != nil {
			r.log.Warn("send failure notice failed", "error", sendErr)
		}
	}
	return false, OutcomeFailed, &HandlerError{StateID: d.ID, Hook: hook, Err: err}
}
