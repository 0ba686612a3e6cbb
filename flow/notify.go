package flow

import (
	"context"
	"time"
)

// deleteTimeout bounds a deferred delete that runs after the run may have finished.
const deleteTimeout = 10 * time.Second

// answer acknowledges the pending button press, if any. Every press is answered once.
func (r *run) answer(ctx context.Context, text string, alert bool) {
	if r.pending == nil {
		return
	}
	press := *r.pending
	r.pending = nil
	if err := r.t.Answer(ctx, press, text, alert); err != nil {
		r.log.Warn("answer callback failed", "error", err)
	}
}

// notify shows text in the given style. Popup styles need a pending press and fall back
// to a temporary message without one.
func (r *run) notify(ctx context.Context, text string, style NotificationStyle, autoDelete time.Duration) {
	if text == "" {
		return
	}
	switch style {
	case PopupBrief, PopupAlert:
		if r.pending != nil {
			r.answer(ctx, text, style == PopupAlert)
			return
		}
		r.sendTemp(ctx, text, autoDelete)
	case MessagePerm:
		if _, err := r.t.Send(ctx, r.s.UserID, text, nil); err != nil {
			r.log.Warn("send notification failed", "error", err)
		}
	default:
		r.sendTemp(ctx, text, autoDelete)
	}
}

// sendTemp posts a message that deletes itself after delay, unless delay is negative.
func (r *run) sendTemp(ctx context.Context, text string, delay time.Duration) {
	ref, err := r.t.Send(ctx, r.s.UserID, text, nil)
	if err != nil {
		r.log.Warn("send notification failed", "error", err)
		return
	}
	r.deleteLater(ctx, ref, delay)
}

// deleteLater schedules deletion of ref without blocking the run. A negative delay
// leaves the message in place.
func (r *run) deleteLater(ctx context.Context, ref MessageRef, delay time.Duration) {
	if ref.IsZero() || delay < 0 {
		return
	}
	bg := context.WithoutCancel(ctx)
	log := r.log
	t := r.t
	time.AfterFunc(delay, func() {
		dctx, cancel := context.WithTimeout(bg, deleteTimeout)
		defer cancel()
		if err := t.Delete(dctx, ref); err != nil {
			log.Debug("deferred delete failed", "message_id", ref.MessageID, "error", err)
		}
	})
}
