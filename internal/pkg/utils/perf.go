package utils

import (
	"fmt"
	"net/http"
	"time"

	"github.com/airenas/go-app/pkg/goapp"

	_ "net/http/pprof"
)

// RunPerfEndpoint serves pprof handlers on the port, does nothing if port <= 0
func RunPerfEndpoint(port int) {
	if port <= 0 {
		goapp.Log.Debug().Msg("no debug.port - skip pprof")
		return
	}
	goapp.Log.Info().Int("port", port).Msg("starting pprof endpoint")
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		goapp.Log.Error().Err(err).Msg("can't start pprof endpoint")
	}
}
