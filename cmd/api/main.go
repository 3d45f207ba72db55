package main

import (
	"context"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/app"
	"github.com/airenas/supaquery/internal/pkg/postgres"
	"github.com/airenas/supaquery/internal/pkg/queryservice"
	"github.com/airenas/supaquery/internal/pkg/utils"
	"github.com/labstack/gommon/color"
	"github.com/vgarvardt/gue/v5"
	"github.com/vgarvardt/gue/v5/adapter/pgxv5"
)

func main() {
	goapp.StartWithDefault()
	cfg := goapp.Config
	app.SetDefaults(cfg)

	printBanner()
	go utils.RunPerfEndpoint(cfg.GetInt("debug.port"))

	data := &queryservice.Data{}
	data.Port = cfg.GetInt("port")
	data.QueryTimeout = cfg.GetDuration("query.timeout")

	ctx := context.Background()
	dbPool, err := app.NewDBPool(ctx, cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	db, err := postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}
	data.DB = db
	data.Checker = db
	data.Router, err = app.NewRouter(cfg, dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init router")
	}
	data.MsgSender, err = postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue sender")
	}
	data.Cleaner, err = postgres.NewJobCleaner(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init cleaner")
	}

	hData := &queryservice.HandlerData{}
	hData.DB = db
	hData.WorkerCount = cfg.GetInt("worker.count")
	hData.GueClient, err = gue.NewClient(pgxv5.NewConnPool(dbPool))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue")
	}
	wsh := queryservice.NewWSConnKeeper(cfg.GetDuration("ws.timeout")).OnSubscribe(hData.SendCurrent)
	data.WSHandler = wsh
	hData.WSHandler = wsh

	goapp.Log.Info().Msg("starting handler")
	ctx, cancelFunc := context.WithCancel(ctx)
	doneCh, err := queryservice.StartStatusHandler(ctx, hData)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start status handler service")
	}

	goapp.Log.Info().Msg("starting web service")
	if err := queryservice.StartWebServer(data); err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
	goapp.Log.Info().Msg("exit web service")
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
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

    ____ _____  (_)
   / __ ` + "`" + `/ __ \/ / 
  / /_/ / /_/ / /  
  \__,_/ .___/_/   
      /_/          

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/supaquery"))
}
