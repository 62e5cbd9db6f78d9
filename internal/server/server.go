// Package server exposes the REST admin surface for sessions and mock handlers.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"mockbody/internal/logger"
	"mockbody/pkg/api"
	"mockbody/pkg/model"
	"mockbody/pkg/traffic"
)

// maxBodySize caps uploaded mock bodies.
const maxBodySize = "64M"

type Server struct {
	e   *echo.Echo
	svc api.Service
	log logger.Logger
}

func New(svc api.Service, l logger.Logger) *Server {
	if l == nil {
		l = logger.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxBodySize))

	s := &Server{e: e, svc: svc, log: l}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.e.POST("/sessions", s.startSession)
	s.e.GET("/sessions", s.listSessions)
	s.e.POST("/sessions/:sid/resume", s.resumeSession)
	s.e.DELETE("/sessions/:sid", s.stopSession)

	s.e.PUT("/sessions/:sid/handlers", s.putHandler)
	s.e.GET("/sessions/:sid/handlers", s.listHandlers)
	s.e.DELETE("/sessions/:sid/handlers/:hid", s.deleteHandler)

	s.e.GET("/sessions/:sid/handlers/:hid/body", s.getBody)
	s.e.PUT("/sessions/:sid/handlers/:hid/body", s.setBody)
	s.e.GET("/sessions/:sid/handlers/:hid/body/size", s.encodedSize)
	s.e.PATCH("/sessions/:sid/handlers/:hid/headers", s.patchHeader)
	s.e.POST("/sessions/:sid/handlers/:hid/patch", s.jsonPatch)

	s.e.POST("/sessions/:sid/resolve", s.resolve)
	s.e.GET("/sessions/:sid/stats", s.stats)
}

// Start blocks serving on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("admin api listening", "addr", addr)
	err := s.e.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// Handler exposes the route tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) startSession(c echo.Context) error {
	id, err := s.svc.StartSession()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"session": id})
}

func (s *Server) listSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"sessions": s.svc.ListSessions()})
}

func (s *Server) resumeSession(c echo.Context) error {
	id := model.SessionID(c.Param("sid"))
	if err := s.svc.ResumeSession(id); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"session": id})
}

func (s *Server) stopSession(c echo.Context) error {
	if err := s.svc.StopSession(model.SessionID(c.Param("sid"))); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) putHandler(c echo.Context) error {
	var def model.HandlerDef
	if err := c.Bind(&def); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hid, err := s.svc.PutHandler(model.SessionID(c.Param("sid")), def)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"handler": hid})
}

func (s *Server) listHandlers(c echo.Context) error {
	defs, err := s.svc.ListHandlers(model.SessionID(c.Param("sid")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"handlers": defs})
}

func (s *Server) deleteHandler(c echo.Context) error {
	err := s.svc.DeleteHandler(model.SessionID(c.Param("sid")), model.HandlerID(c.Param("hid")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getBody(c echo.Context) error {
	body, err := s.svc.GetBody(model.SessionID(c.Param("sid")), model.HandlerID(c.Param("hid")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, body)
}

func (s *Server) setBody(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	err = s.svc.SetBody(model.SessionID(c.Param("sid")), model.HandlerID(c.Param("hid")), body)
	if err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) encodedSize(c echo.Context) error {
	n, err := s.svc.EncodedSize(model.SessionID(c.Param("sid")), model.HandlerID(c.Param("hid")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"encodedSize": n})
}

type headerPatch struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Delete bool   `json:"delete,omitempty"`
}

func (s *Server) patchHeader(c echo.Context) error {
	var p headerPatch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if p.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "header name required")
	}

	sid := model.SessionID(c.Param("sid"))
	hid := model.HandlerID(c.Param("hid"))
	var err error
	if p.Delete {
		err = s.svc.DeleteResponseHeader(sid, hid, p.Name)
	} else {
		err = s.svc.SetResponseHeader(sid, hid, p.Name, p.Value)
	}
	if err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type jsonPatchRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func (s *Server) jsonPatch(c echo.Context) error {
	var p jsonPatchRequest
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if p.Path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "json path required")
	}
	err := s.svc.ApplyJSONPatch(model.SessionID(c.Param("sid")), model.HandlerID(c.Param("hid")), p.Path, p.Value)
	if err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) resolve(c echo.Context) error {
	var req traffic.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := s.svc.Resolve(c.Request().Context(), model.SessionID(c.Param("sid")), &req)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) stats(c echo.Context) error {
	stats, err := s.svc.GetStats(model.SessionID(c.Param("sid")))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrSessionNotFound), errors.Is(err, model.ErrHandlerNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		s.log.Error("request failed", "path", c.Path(), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
