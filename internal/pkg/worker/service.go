package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/api"
	"github.com/airenas/supaquery/internal/pkg/batch"
	"github.com/airenas/supaquery/internal/pkg/intent"
	"github.com/airenas/supaquery/internal/pkg/messages"
	"github.com/airenas/supaquery/internal/pkg/persistence"
	"github.com/airenas/supaquery/internal/pkg/status"
	"github.com/airenas/supaquery/internal/pkg/utils"
	"github.com/airenas/supaquery/internal/pkg/utils/handler"
	"github.com/vgarvardt/gue/v5"
)

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(context.Context, amessages.Message, string) error
}

// DB provides job persistence
type DB interface {
	LoadJob(ctx context.Context, id string) (*persistence.Job, error)
	UpdateJob(ctx context.Context, job *persistence.Job) error
}

// Router executes queries
type Router interface {
	Classify(ctx context.Context, q string) *intent.Intent
	HandleIntent(ctx context.Context, q string, in *intent.Intent, pf func(batch.Progress)) *api.Response
}

// ServiceData keeps data required for service work
type ServiceData struct {
	GueClient   *gue.Client
	WorkerCount int
	MsgSender   MsgSender
	DB          DB
	Router      Router
	Testing     bool
	Timeout     time.Duration
}

const maxFailures = 3

// StartWorkerService starts the event queue listener service to execute queued queries
// returns channel for tracking if all jobs are finished
func StartWorkerService(ctx context.Context, data *ServiceData) (chan struct{}, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	goapp.Log.Info().Int("workers", data.WorkerCount).Msg("Starting listen for messages")
	if data.Testing {
		goapp.Log.Warn().Msg("SERVICE IN TEST MODE")
	}
	timeout := data.Timeout
	if timeout <= 0 {
		timeout = time.Hour
	}

	wm := gue.WorkMap{
		messages.Work: handler.Create(data, handleJob, handler.DefaultOpts[messages.JobMessage]().
			WithFailure(failureHandler(data)).WithTimeout(timeout).
			WithBackoff(handler.DefaultBackoffOrTest(data.Testing))),
	}

	pool, err := gue.NewWorkerPool(
		data.GueClient, wm, data.WorkerCount,
		gue.WithPoolQueue(messages.Work),
		gue.WithPoolLogger(utils.NewGueLoggerAdapter("query-worker")),
		gue.WithPoolPollInterval(500*time.Millisecond),
		gue.WithPoolPollStrategy(gue.RunAtPollStrategy),
		gue.WithPoolID("query-worker"),
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

func handleJob(ctx context.Context, m *messages.JobMessage, data *ServiceData) error {
	goapp.Log.Info().Str("ID", m.ID).Msg("handling job")
	job, err := data.DB.LoadJob(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("can't load job: %w", err)
	}
	if job == nil {
		goapp.Log.Warn().Str("ID", m.ID).Msg("no job, skip")
		return nil
	}
	if status.From(job.Status).Final() {
		goapp.Log.Info().Str("ID", m.ID).Str("status", job.Status).Msg("job is finished, skip")
		return nil
	}
	in := data.Router.Classify(ctx, job.Query)
	job.Intent = utils.ToSQLStr(string(in.Kind))
	job.Status = status.Processing.String()
	if err := data.DB.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("can't save job: %w", err)
	}
	if err := sendStatus(ctx, data, job); err != nil {
		return err
	}
	if err := inform(ctx, data, m, amessages.InformTypeStarted); err != nil {
		return err
	}

	pt := &progressTracker{data: data, job: job}
	resp := data.Router.HandleIntent(ctx, job.Query, in, pt.update)
	if err := pt.error(); err != nil {
		return err
	}

	if job.Result, err = json.Marshal(resp); err != nil {
		return fmt.Errorf("can't marshal result: %w", err)
	}
	if resp.Success {
		job.Status = status.Complete.String()
	} else {
		job.Status = status.Failed.String()
		job.Error = utils.ToSQLStr(resp.Error)
	}
	if err := data.DB.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("can't save job: %w", err)
	}
	goapp.Log.Info().Str("ID", m.ID).Str("status", job.Status).Msg("job finished")
	if err := sendStatus(ctx, data, job); err != nil {
		return err
	}
	return inform(ctx, data, m, informType(resp.Success))
}

// progressTracker saves batch progress into the job, the first failure is kept and reported after the batch
type progressTracker struct {
	data *ServiceData
	job  *persistence.Job
	lock sync.Mutex
	err  error
}

func (pt *progressTracker) update(p batch.Progress) {
	pt.lock.Lock()
	defer pt.lock.Unlock()
	if pt.err != nil {
		return
	}
	ctx, cf := context.WithTimeout(context.Background(), 10*time.Second)
	defer cf()
	pt.job.Done, pt.job.Total = int32(p.Done), int32(p.Total)
	if err := pt.data.DB.UpdateJob(ctx, pt.job); err != nil {
		pt.err = fmt.Errorf("can't save progress: %w", err)
		return
	}
	if err := sendStatus(ctx, pt.data, pt.job); err != nil {
		goapp.Log.Warn().Err(err).Str("ID", pt.job.ID).Msg("can't send progress")
	}
}

func (pt *progressTracker) error() error {
	pt.lock.Lock()
	defer pt.lock.Unlock()
	return pt.err
}

func failureHandler(data *ServiceData) func(context.Context, *messages.JobMessage, error, *gue.Job) (bool, time.Duration, error) {
	return func(ctx context.Context, m *messages.JobMessage, err error, j *gue.Job) (bool, time.Duration, error) {
		if j.ErrorCount+1 < maxFailures {
			return true, 0, nil
		}
		goapp.Log.Error().Err(err).Str("ID", m.ID).Int32("errCount", j.ErrorCount).Msg("job failed")
		if hErr := markFailed(ctx, data, m, err); hErr != nil {
			return true, 0, hErr
		}
		return false, 0, nil
	}
}

func markFailed(ctx context.Context, data *ServiceData, m *messages.JobMessage, err error) error {
	job, lErr := data.DB.LoadJob(ctx, m.ID)
	if lErr != nil {
		return fmt.Errorf("can't load job: %w", lErr)
	}
	if job == nil {
		return nil
	}
	job.Status = status.Failed.String()
	job.Error = utils.ToSQLStr(err.Error())
	if err := data.DB.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("can't save job: %w", err)
	}
	if err := sendStatus(ctx, data, job); err != nil {
		return err
	}
	return inform(ctx, data, m, amessages.InformTypeFailed)
}

func sendStatus(ctx context.Context, data *ServiceData, job *persistence.Job) error {
	if err := data.MsgSender.SendMessage(ctx, messages.NewStatusMessage(job.ID, job.Status), messages.StatusChange); err != nil {
		return fmt.Errorf("can't send msg: %w", err)
	}
	return nil
}

func inform(ctx context.Context, data *ServiceData, m *messages.JobMessage, it string) error {
	err := data.MsgSender.SendMessage(ctx, &amessages.InformMessage{
		QueueMessage: *amessages.NewQueueMessageFromM(&m.QueueMessage),
		Type:         it, At: time.Now()}, messages.Inform)
	if err != nil {
		return fmt.Errorf("can't send msg: %w", err)
	}
	return nil
}

func informType(success bool) string {
	if success {
		return amessages.InformTypeFinished
	}
	return amessages.InformTypeFailed
}

func validate(data *ServiceData) error {
	if data.GueClient == nil {
		return fmt.Errorf("no gue client")
	}
	if data.WorkerCount < 1 {
		return fmt.Errorf("no worker count provided")
	}
	if data.MsgSender == nil {
		return fmt.Errorf("no msg sender")
	}
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	if data.Router == nil {
		return fmt.Errorf("no router")
	}
	return nil
}
