package queryservice

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/api"
	"github.com/airenas/supaquery/internal/pkg/messages"
	"github.com/airenas/supaquery/internal/pkg/persistence"
	"github.com/airenas/supaquery/internal/pkg/utils"
	"github.com/airenas/supaquery/internal/pkg/utils/handler"
	"github.com/vgarvardt/gue/v5"
)

// JobLoader provides job state
type JobLoader interface {
	LoadJob(ctx context.Context, id string) (*persistence.Job, error)
}

// HandlerData keeps data required for handler
type HandlerData struct {
	GueClient   *gue.Client
	WorkerCount int
	DB          JobLoader
	WSHandler   WSConnHandler
}

// StartStatusHandler starts the event queue listener for job status events
// returns channel for tracking if all jobs are finished
func StartStatusHandler(ctx context.Context, data *HandlerData) (chan struct{}, error) {
	if err := validateHandler(data); err != nil {
		return nil, err
	}
	goapp.Log.Info().Msg("Starting listen for messages")

	wm := gue.WorkMap{
		messages.StatusChange: handler.Create(data, handleStatus, handler.DefaultOpts[messages.JobMessage]().
			WithTimeout(time.Minute)),
	}

	pool, err := gue.NewWorkerPool(
		data.GueClient, wm, data.WorkerCount,
		gue.WithPoolQueue(messages.StatusChange),
		gue.WithPoolLogger(utils.NewGueLoggerAdapter("status-worker")),
		gue.WithPoolPollInterval(500*time.Millisecond),
		gue.WithPoolPollStrategy(gue.RunAtPollStrategy),
		gue.WithPoolID("status-worker"),
	)
	if err != nil {
		return nil, fmt.Errorf("could not build gue workers pool: %w", err)
	}
	res := make(chan struct{}, 1)
	go func() {
		goapp.Log.Info().Msg("Starting workers")
		if err := pool.Run(ctx); err != nil {
			goapp.Log.Error().Err(err).Msg("pool error")
		}
		goapp.Log.Info().Msg("Pool workers finished")
		res <- struct{}{}
	}()
	return res, nil
}

func handleStatus(ctx context.Context, m *messages.JobMessage, data *HandlerData) error {
	goapp.Log.Info().Str("ID", m.ID).Str("status", m.Status).Msg("handling status change event")

	conns, found := data.WSHandler.GetConnections(m.ID)
	if !found {
		goapp.Log.Debug().Str("ID", m.ID).Msg("no connections found")
		return nil
	}
	res, err := loadJob(ctx, data.DB, m.ID)
	if err != nil {
		return err
	}
	for _, c := range conns {
		if err := sendMsg(c, res); err != nil {
			goapp.Log.Error().Err(err).Send()
		}
	}
	return nil
}

// SendCurrent pushes the current job state to a new subscriber
func (data *HandlerData) SendCurrent(conn WsConn, id string) {
	ctx, cf := context.WithTimeout(context.Background(), 10*time.Second)
	defer cf()
	res, err := loadJob(ctx, data.DB, id)
	if err != nil {
		goapp.Log.Warn().Err(err).Str("ID", id).Msg("can't send current state")
		return
	}
	if err := sendMsg(conn, res); err != nil {
		goapp.Log.Error().Err(err).Send()
	}
}

func loadJob(ctx context.Context, db JobLoader, id string) (*api.Job, error) {
	job, err := db.LoadJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cannot get job %s: %w", id, err)
	}
	if job == nil {
		return nil, fmt.Errorf("no job %s", id)
	}
	return mapJob(job)
}

func sendMsg(c WsConn, res *api.Job) error {
	goapp.Log.Debug().Str("ID", res.ID).Msg("Sending job to websocket")
	err := c.WriteJSON(res)
	if err != nil {
		return fmt.Errorf("cannot write to websocket: %w", err)
	}
	goapp.Log.Debug().Str("ID", res.ID).Msg("sent msg to websocket")
	return nil
}

func validateHandler(data *HandlerData) error {
	if data.GueClient == nil {
		return fmt.Errorf("no gue client")
	}
	if data.WorkerCount < 1 {
		return fmt.Errorf("no worker count provided")
	}
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	if data.WSHandler == nil {
		return fmt.Errorf("no WSHandler")
	}
	return nil
}
