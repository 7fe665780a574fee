// Package web serves the patent search UI and its JSON API.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/patentscout/internal/metrics"
	"github.com/FranksOps/patentscout/internal/report"
	"github.com/FranksOps/patentscout/internal/serp"
	"github.com/FranksOps/patentscout/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Result count bounds of the UI.
const (
	MinNum     = 11
	MaxNum     = 50
	DefaultNum = 11
)

const emptyQueryMsg = "Please enter a query to search."

// Searcher runs searches and reads stored reports. *pipeline.Pipeline
// implements it. Report wraps storage.ErrNotFound for unknown IDs.
type Searcher interface {
	Run(ctx context.Context, query string, count int) (*storage.Report, error)
	History(ctx context.Context, filter storage.Filter) ([]*storage.Report, error)
	Report(ctx context.Context, id string) (*storage.Report, error)
}

// Server is the HTTP front end.
type Server struct {
	e        *echo.Echo
	searcher Searcher
	logger   *slog.Logger
	srv      *http.Server
}

// New builds the server for addr and registers its routes.
func New(searcher Searcher, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		e:        echo.New(),
		searcher: searcher,
		logger:   logger,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.e,
		ReadHeaderTimeout: 5 * time.Second,
		// A 50 result search enriches every page; leave room for it.
		WriteTimeout: 5 * time.Minute,
	}

	e := s.e
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			s.logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("path", v.URIPath),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.GET("/", s.index)
	e.GET("/search", s.search)
	e.GET("/reports/:file", s.docx)
	e.GET("/api/search", s.apiSearch)
	e.GET("/api/history", s.apiHistory)
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	return s
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.e }

// ListenAndServe serves until Shutdown is called. It returns nil at once if
// Shutdown already ran.
func (s *Server) ListenAndServe() error {
	s.logger.Info("web server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// parseNum reads the num parameter; empty means DefaultNum.
func parseNum(raw string) (int, error) {
	if raw == "" {
		return DefaultNum, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < MinNum || n > MaxNum {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("num must be a number between %d and %d", MinNum, MaxNum))
	}
	return n, nil
}

// searchParams validates q and num before any search is run.
func searchParams(c echo.Context) (string, int, error) {
	q := strings.TrimSpace(c.QueryParam("q"))
	num, err := parseNum(c.QueryParam("num"))
	if err != nil {
		return q, DefaultNum, err
	}
	if q == "" {
		return q, num, echo.NewHTTPError(http.StatusBadRequest, emptyQueryMsg)
	}
	return q, num, nil
}

// httpError maps search errors to status codes.
func httpError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	var cfgErr *serp.ConfigurationError
	var upErr *serp.UpstreamError

	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, serp.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, emptyQueryMsg).SetInternal(err)
	case errors.Is(err, serp.ErrInvalidCount):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.As(err, &cfgErr):
		return echo.NewHTTPError(http.StatusInternalServerError, cfgErr.Error()).SetInternal(err)
	case errors.As(err, &upErr):
		return echo.NewHTTPError(http.StatusBadGateway, upErr.Error()).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed").SetInternal(err)
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	he := httpError(err)
	msg := fmt.Sprint(he.Message)

	if he.Code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request().URL.Path, "status", he.Code, "err", err)
	}
	if c.Response().Committed {
		return
	}

	if path := c.Request().URL.Path; strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/reports/") {
		_ = c.JSON(he.Code, map[string]string{"error": msg})
		return
	}

	q := strings.TrimSpace(c.QueryParam("q"))
	num, numErr := parseNum(c.QueryParam("num"))
	if numErr != nil {
		num = DefaultNum
	}
	_ = s.renderPage(c, he.Code, report.Page{Query: q, Num: num, Error: msg})
}

func (s *Server) renderPage(c echo.Context, code int, p report.Page) error {
	p.Form = true
	p.MinNum, p.MaxNum = MinNum, MaxNum
	if p.Num == 0 {
		p.Num = DefaultNum
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return report.WriteHTML(c.Response(), p)
}

func (s *Server) index(c echo.Context) error {
	return s.renderPage(c, http.StatusOK, report.Page{})
}

func (s *Server) search(c echo.Context) error {
	q, num, err := searchParams(c)
	if err != nil {
		return err
	}
	rep, err := s.searcher.Run(c.Request().Context(), q, num)
	if err != nil {
		return err
	}
	return s.renderPage(c, http.StatusOK, report.Page{Query: q, Num: num, Report: rep})
}

// docx serves a stored report as a Word document. The q and num parameters
// of the download link are used to search again only when the report is not
// in the history store.
func (s *Server) docx(c echo.Context) error {
	id, ok := strings.CutSuffix(c.Param("file"), ".docx")
	if !ok || id == "" {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}

	ctx := c.Request().Context()
	rep, err := s.searcher.Report(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		if strings.TrimSpace(c.QueryParam("q")) == "" {
			return echo.NewHTTPError(http.StatusNotFound, "report not found").SetInternal(err)
		}
		q, num, perr := searchParams(c)
		if perr != nil {
			return perr
		}
		s.logger.Debug("report not stored, searching again", "id", id, "query", q)
		if rep, err = s.searcher.Run(ctx, q, num); err != nil {
			return err
		}
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "report unavailable").SetInternal(err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, report.DocxContentType)
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", report.DocxFilename))
	res.WriteHeader(http.StatusOK)
	return report.WriteDocx(res, rep)
}

func (s *Server) apiSearch(c echo.Context) error {
	q, num, err := searchParams(c)
	if err != nil {
		return err
	}
	rep, err := s.searcher.Run(c.Request().Context(), q, num)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (s *Server) apiHistory(c echo.Context) error {
	filter := storage.Filter{Query: c.QueryParam("query"), Limit: 20}

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, name+" must be a non-negative integer")
		}
		*dst = n
	}

	if raw := c.QueryParam("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be an RFC 3339 timestamp")
		}
		filter.Since = &since
	}

	reports, err := s.searcher.History(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "history unavailable").SetInternal(err)
	}
	if reports == nil {
		reports = []*storage.Report{}
	}
	return c.JSON(http.StatusOK, reports)
}
