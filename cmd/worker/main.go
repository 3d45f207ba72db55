package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/app"
	"github.com/airenas/supaquery/internal/pkg/messages"
	"github.com/airenas/supaquery/internal/pkg/postgres"
	"github.com/airenas/supaquery/internal/pkg/utils"
	"github.com/airenas/supaquery/internal/pkg/worker"
	"github.com/labstack/gommon/color"
	"github.com/vgarvardt/gue/v5"
	"github.com/vgarvardt/gue/v5/adapter/pgxv5"
)

func main() {
	goapp.StartWithDefault()
	cfg := goapp.Config
	app.SetDefaults(cfg)

	data := &worker.ServiceData{}
	ctx := context.Background()

	dbPool, err := app.NewDBPool(ctx, cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	data.GueClient, err = gue.NewClient(pgxv5.NewConnPool(dbPool))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue")
	}
	data.WorkerCount = defaultV(cfg.GetInt("worker.count"), 1)
	data.Timeout = defaultV(cfg.GetDuration("worker.timeout"), time.Hour)
	data.Testing = cfg.GetBool("worker.testing")
	sender, err := postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue sender")
	}
	data.MsgSender = sender.WithPriority(messages.StatusChange, -10)
	db, err := postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}
	data.DB = db

	data.Router, err = app.NewRouter(cfg, dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init router")
	}

	printBanner()
	go utils.RunPerfEndpoint(cfg.GetInt("debug.port"))

	ctx, cancelFunc := context.WithCancel(context.Background())
	doneCh, err := worker.StartWorkerService(ctx, data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start worker service")
	}
	/////////////////////// Waiting for terminate
	waitCh := make(chan os.Signal, 2)
	signal.Notify(waitCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCh:
		goapp.Log.Info().Msg("Got exit signal")
	case <-doneCh:
		goapp.Log.Info().Msg("Service exit")
	}
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
}

func defaultV[T comparable](v, d T) T {
	var zero T
	if v == zero {
		return d
	}
	return v
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
   _______  ______  ____ _____ ___  _____  _______  __
  / ___/ / / / __ \/ __ ` + "`" + `/ __ ` + "`" + `/ / / / _ \/ ___/ / / /
 (__  ) /_/ / /_/ / /_/ / /_/ / /_/ /  __/ /  / /_/ / 
/____/\__,_/ .___/\__,_/\__, /\__,_/\___/_/   \__, /  
          /_/             /_/                /____/   v: %s

                      __            
 _      ______  _____/ /_____  _____
| | /| / / __ \/ ___/ //_/ _ \/ ___/
| |/ |/ / /_/ / /  / ,< /  __/ /    
|__/|__/\____/_/  /_/|_|\___/_/     

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/supaquery"))
}
