package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/app"
	"github.com/airenas/supaquery/internal/pkg/repl"
	"github.com/labstack/gommon/color"
)

func main() {
	goapp.StartWithDefault()
	cfg := goapp.Config
	app.SetDefaults(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := app.NewDBPool(ctx, cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	router, err := app.NewRouter(cfg, dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init router")
	}

	r, err := repl.New(router, os.Stdin, os.Stdout)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init repl")
	}
	if !isTerminal(os.Stdin) {
		r.Sequential()
	}
	if cfg.GetBool("cli.noColor") {
		r.NoColor()
	}

	printBanner()

	if err := r.Run(ctx); err != nil {
		goapp.Log.Error().Err(err).Msg("repl failed")
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	st, err := f.Stat()
	if err != nil {
		return false
	}
	return st.Mode()&os.ModeCharDevice != 0
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

%s
________________________________________________________
`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/supaquery"))
}
