package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	aclean "github.com/airenas/async-api/pkg/clean"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/app"
	"github.com/airenas/supaquery/internal/pkg/postgres"
	"github.com/labstack/gommon/color"
)

func main() {
	goapp.StartWithDefault()
	cfg := goapp.Config
	app.SetDefaults(cfg)

	ctx := context.Background()
	dbPool, err := app.NewDBPool(ctx, cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	dbCleaner, err := postgres.NewJobCleaner(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}

	tData := aclean.TimerData{}
	tData.IDsProvider, err = postgres.NewExpiredJobs(dbPool, cfg.GetDuration("timer.expire"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init IDs provider")
	}

	printBanner()

	cleaner := &aclean.CleanerGroup{}
	cleaner.Jobs = append(cleaner.Jobs, dbCleaner)

	tData.RunEvery = cfg.GetDuration("timer.runEvery")
	tData.Cleaner = cleaner

	goapp.Log.Info().Dur("duration", cfg.GetDuration("timer.expire")).Msg("expire")

	ctxTimer, cancelFunc := context.WithCancel(ctx)
	doneCh, err := aclean.StartCleanTimer(ctxTimer, &tData)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start timer")
	}
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

var (
	version = "DEV"
)

func printBanner() {
	banner :=
		`
   _______  ______  ____ _____ ___  _____  _______  __
  / ___/ / / / __ \/ __ ` + "`" + `/ __ ` + "`" + `/ / / / _ \/ ___/ / / /
 (__  ) /_/ / /_/ / /_/ / /_/ / /_/ /  __/ /  / /_/ / 
/____/\__,_/ .___/\__,_/\__, /\__,_/\___/_/   \__, /  
          /_/             /_/                /____/   v: %s

        __                
  _____/ /__  ____ _____  
 / ___/ / _ \/ __ ` + "`" + `/ __ \ 
/ /__/ /  __/ /_/ / / / / 
\___/_/\___/\__,_/_/ /_/  

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/supaquery"))
}
