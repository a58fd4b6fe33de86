package worker

import (
	"context"
	"fmt"

	"github.com/vytor/starcards/internal/logger"
	"github.com/vytor/starcards/internal/models"
)

// EventSender delivers one event to the remote aggregator.
type EventSender interface {
	PushEvent(ctx context.Context, ev models.SyncEvent) bool
}

// PushEventJob sends a single study event.
type PushEventJob struct {
	Sender EventSender
	Event  models.SyncEvent
}

func (j *PushEventJob) Name() string { return "push_event" }

func (j *PushEventJob) Run(ctx context.Context) error {
	if !j.Sender.PushEvent(ctx, j.Event) {
		return fmt.Errorf("event for %s on card %s not delivered", j.Event.Student, j.Event.CardID)
	}
	return nil
}

// Pusher hands study events to the pool so the caller never waits on the
// network. Events that do not fit in the queue are dropped.
type Pusher struct {
	pool   *Pool
	sender EventSender
}

func NewPusher(pool *Pool, sender EventSender) *Pusher {
	return &Pusher{pool: pool, sender: sender}
}

// Push enqueues ev for delivery.
func (p *Pusher) Push(ctx context.Context, ev models.SyncEvent) {
	if p.pool.TrySubmit(&PushEventJob{Sender: p.sender, Event: ev}) {
		return
	}
	logger.FromContext(ctx).WithPrefix("pusher").Warn("sync queue full or stopped, dropping event: student=%s, card_id=%s, pending=%d", ev.Student, ev.CardID, p.pool.QueueSize())
}
