package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vgarvardt/gue/v5"
	"github.com/vgarvardt/gue/v5/adapter/pgxv5"
)

// Sender enqueues messages into gue queues kept in postgres
type Sender struct {
	gc         *gue.Client
	priorities map[string]gue.JobPriority
}

// NewSender initializes gue sender
func NewSender(pool *pgxpool.Pool) (*Sender, error) {
	if pool == nil {
		return nil, fmt.Errorf("no pool")
	}
	gc, err := gue.NewClient(pgxv5.NewConnPool(pool))
	if err != nil {
		return nil, fmt.Errorf("can't init gue: %w", err)
	}
	return &Sender{gc: gc, priorities: map[string]gue.JobPriority{}}, nil
}

// WithPriority sets the priority of jobs sent to the queue, lower value is picked first
func (s *Sender) WithPriority(queue string, p int16) *Sender {
	s.priorities[queue] = gue.JobPriority(p)
	return s
}

// SendMessage enqueues the message, queue name is used as the job type too
func (s *Sender) SendMessage(ctx context.Context, msg messages.Message, queue string) error {
	args, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("can't marshal msg: %w", err)
	}
	j := &gue.Job{Type: queue, Queue: queue, Args: args, Priority: s.priorities[queue]}
	if err := s.gc.Enqueue(ctx, j); err != nil {
		return fmt.Errorf("can't send msg to %s: %w", queue, err)
	}
	goapp.Log.Debug().Str("queue", queue).Int16("priority", int16(j.Priority)).Msg("sent")
	return nil
}
