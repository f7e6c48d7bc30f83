package server

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lockwatch/lockdash/dashboard"
	"github.com/lockwatch/lockdash/surface"
)

const eventsRoute = "/ws"

func (s *Server) registerRoutes() {
	g := s.echo.Group(s.basePath)

	for _, p := range s.pages {
		g.GET(p.Path, s.pageHandler(p))
	}

	static, _ := fs.Sub(assets, "static")
	g.StaticFS("/static", static)

	api := g.Group("/api")
	api.GET("/surfaces", s.listSurfaces)
	api.GET("/surfaces/:id", s.getSurface)
	api.POST("/surfaces/:id/controls/:control", s.clickControl,
		RateLimit(s.cfg.Server.Control.Limit, s.cfg.Server.Control.Burst))

	g.GET(eventsRoute, s.streamEvents)
}

type shellWidget struct {
	ID      surface.ID
	Title   string
	HTML    template.HTML
	Version uint64
}

type shellData struct {
	AppName string
	Base    string
	Page    dashboard.Page
	Pages   []dashboard.Page
	Widgets []shellWidget
}

func (s *Server) pageHandler(p dashboard.Page) echo.HandlerFunc {
	return func(c echo.Context) error {
		data := shellData{
			AppName: s.cfg.App.Name,
			Base:    s.basePath,
			Page:    p,
			Pages:   s.pages,
		}
		for _, w := range p.Widgets {
			sw := shellWidget{ID: w.Surface, Title: w.Title}
			if snap, err := s.hub.Snapshot(w.Surface); err == nil {
				sw.HTML = snap.HTML
				sw.Version = snap.Version
			}
			data.Widgets = append(data.Widgets, sw)
		}

		var buf bytes.Buffer
		if err := shell.ExecuteTemplate(&buf, "shell", data); err != nil {
			return err
		}
		return c.HTMLBlob(http.StatusOK, buf.Bytes())
	}
}

func (s *Server) listSurfaces(c echo.Context) error {
	return formatSuccessResponse(c, http.StatusOK, s.hub.Snapshots())
}

func (s *Server) getSurface(c echo.Context) error {
	snap, err := s.hub.Snapshot(surface.ID(c.Param("id")))
	if err != nil {
		return surfaceError(err)
	}
	return formatSuccessResponse(c, http.StatusOK, snap)
}

func (s *Server) clickControl(c echo.Context) error {
	id := surface.ID(c.Param("id"))
	control := c.Param("control")
	if err := s.hub.Click(id, control); err != nil {
		return surfaceError(err)
	}
	return formatSuccessResponse(c, http.StatusAccepted, map[string]string{
		"surface": string(id),
		"control": control,
	})
}

func surfaceError(err error) error {
	switch {
	case errors.Is(err, surface.ErrNotFound):
		return NewNotFoundError("Surface").WithDetails("error", err.Error())
	case errors.Is(err, surface.ErrNoControl):
		return NewConflictError("Control is not available").WithDetails("error", err.Error())
	default:
		return err
	}
}
