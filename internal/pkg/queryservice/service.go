package queryservice

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/airenas/supaquery/internal/pkg/api"
	"github.com/airenas/supaquery/internal/pkg/batch"
	"github.com/airenas/supaquery/internal/pkg/intent"
	"github.com/airenas/supaquery/internal/pkg/messages"
	"github.com/airenas/supaquery/internal/pkg/persistence"
	"github.com/airenas/supaquery/internal/pkg/status"
	"github.com/airenas/supaquery/internal/pkg/utils"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Router executes a query synchronously
type Router interface {
	Classify(ctx context.Context, q string) *intent.Intent
	HandleIntent(ctx context.Context, q string, in *intent.Intent, pf func(batch.Progress)) *api.Response
}

// JobDB keeps async jobs
type JobDB interface {
	InsertJob(ctx context.Context, job *persistence.Job) error
	LoadJob(ctx context.Context, id string) (*persistence.Job, error)
}

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(context.Context, amessages.Message, string) error
}

// Cleaner deletes job data
type Cleaner interface {
	Clean(ctx context.Context, id string) error
}

// Checker reports if the backing services are reachable
type Checker interface {
	Live(ctx context.Context) error
}

// WSConnHandler WebSocket connection wrapper
type WSConnHandler interface {
	HandleConnection(WsConn) error
	GetConnections(id string) ([]WsConn, bool)
}

// Data keeps data required for service work
type Data struct {
	Port         int
	Router       Router
	DB           JobDB
	MsgSender    MsgSender
	Cleaner      Cleaner
	Checker      Checker
	WSHandler    WSConnHandler
	QueryTimeout time.Duration
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Int("port", data.Port).Msg("Starting HTTP query service")
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	// sync batches may run for minutes
	e.Server.WriteTimeout = queryTimeout(data) + 10*time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("supaquery", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	promMdlw.Use(e)

	e.POST("/api/query", query(data))
	e.POST("/api/jobs", addJob(data))
	e.GET("/api/jobs/:id", getJob(data))
	e.DELETE("/api/jobs/:id", deleteJob(data))
	e.GET("/live", live(data))
	e.GET("/subscribe", subscribeHandler(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		if data.Checker != nil {
			if err := data.Checker.Live(c.Request().Context()); err != nil {
				goapp.Log.Error().Err(err).Msg("not live")
				return c.JSONBlob(http.StatusServiceUnavailable, []byte(`{"service":"OK","db":"FAIL"}`))
			}
		}
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

func query(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("query method")()

		req, err := takeQuery(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, &api.Response{Error: err.Error()})
		}
		goapp.Log.Info().Str("query", goapp.Sanitize(req.Query)).Msg("processing")
		ctx, cf := context.WithTimeout(c.Request().Context(), queryTimeout(data))
		defer cf()

		in := data.Router.Classify(ctx, req.Query)
		goapp.Log.Info().Str("intent", string(in.Kind)).Msg("classified")
		return c.JSON(http.StatusOK, data.Router.HandleIntent(ctx, req.Query, in, nil))
	}
}

func addJob(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("add job method")()
		ctx := c.Request().Context()

		req, err := takeQuery(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		now := time.Now()
		job := &persistence.Job{ID: uuid.New().String(), Query: req.Query, Email: utils.ToSQLStr(req.Email),
			Status: status.Pending.String(), Created: now, Updated: now}
		if err := data.DB.InsertJob(ctx, job); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		if err := data.MsgSender.SendMessage(ctx, messages.NewJobMessage(job.ID), messages.Work); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		goapp.Log.Info().Str("ID", job.ID).Msg("job queued")
		res, err := mapJob(job)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func getJob(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("job method")()

		id := c.Param("id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "No ID")
		}
		job, err := data.DB.LoadJob(c.Request().Context(), id)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError, "Service error")
		}
		if job == nil {
			return echo.NewHTTPError(http.StatusNotFound, "Unknown ID: "+id)
		}
		res, err := mapJob(job)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError, "Service error")
		}
		return c.JSON(http.StatusOK, res)
	}
}

func deleteJob(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("delete method")()

		id := c.Param("id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "No ID")
		}
		if err := data.Cleaner.Clean(c.Request().Context(), id); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError, "Can't delete")
		}
		return c.String(http.StatusOK, "deleted")
	}
}

func takeQuery(c echo.Context) (*api.QueryRequest, error) {
	var req api.QueryRequest
	if err := c.Bind(&req); err != nil {
		goapp.Log.Warn().Err(err).Msg("can't bind")
		return nil, errors.New("Wrong request")
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, errors.New("Query is required")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		return nil, errors.Errorf("wrong email '%s'", req.Email)
	}
	return &req, nil
}

func queryTimeout(data *Data) time.Duration {
	if data.QueryTimeout > 0 {
		return data.QueryTimeout
	}
	return 15 * time.Minute
}

func validate(data *Data) error {
	if data.Router == nil {
		return errors.New("no router")
	}
	if data.DB == nil {
		return errors.New("no DB")
	}
	if data.MsgSender == nil {
		return errors.New("no msg sender")
	}
	if data.Cleaner == nil {
		return errors.New("no cleaner")
	}
	if data.WSHandler == nil {
		return errors.New("no WSHandler")
	}
	return nil
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	}}

func subscribeHandler(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return err
		}
		defer ws.Close()

		return data.WSHandler.HandleConnection(ws)
	}
}
