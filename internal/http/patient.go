package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"carepath/internal/chart"
	"carepath/internal/core"
	"carepath/internal/journey"
	"carepath/pkg"
)

// profileID is the patient's own profile, taken from the session.
func profileID(sess *pkg.Session) string {
	return *sess.ProfileID
}

func (s *Server) GetMe(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	u, err := s.svc.Profile(c.Request().Context(), profileID(sess))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) UpdateMe(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	in := pkg.NewUserData()
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	u, err := s.svc.UpdateProfile(c.Request().Context(), profileID(sess), &in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

// DeleteMe erases the profile.  The token stops working with it.
func (s *Server) DeleteMe(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	if err := s.svc.Logout(c.Request().Context(), profileID(sess)); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ExportMe downloads the full record in the snapshot format accepted by
// ImportMe.
func (s *Server) ExportMe(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	u, err := s.svc.Profile(c.Request().Context(), profileID(sess))
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="carepath-profile.json"`)
	return c.JSON(http.StatusOK, u)
}

func (s *Server) ImportMe(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	in := pkg.NewUserData()
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	u, err := s.svc.ImportProfile(c.Request().Context(), profileID(sess), &in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) ListLogs(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	logs, err := s.svc.Logs(c.Request().Context(), profileID(sess))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, logs)
}

// RecordLog appends a pain log.  A session on the log screen returns HOME.
func (s *Server) RecordLog(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	var in core.StatusInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	ctx := c.Request().Context()
	l, err := s.svc.RecordStatus(ctx, profileID(sess), in)
	if err != nil {
		return httpError(err)
	}
	if journey.View(sess.View) == journey.ViewBridge {
		if _, err := s.svc.ApplyJourney(ctx, sess, "log-saved", ""); err != nil {
			return httpError(err)
		}
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"log":     l,
		"journey": s.svc.Journey(sess),
	})
}

func (s *Server) MyTrend(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	return s.trend(c, profileID(sess))
}

func (s *Server) trend(c echo.Context, id string) error {
	v, err := s.svc.Trend(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// MyTrendChart renders the daily VAS series.  Optional width and height
// query parameters size the image.
func (s *Server) MyTrendChart(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	v, err := s.svc.Trend(c.Request().Context(), profileID(sess))
	if err != nil {
		return httpError(err)
	}
	width, err := chartSize(c, "width")
	if err != nil {
		return err
	}
	height, err := chartSize(c, "height")
	if err != nil {
		return err
	}
	img, err := chart.RenderVAS(v.Daily, width, height)
	if errors.Is(err, chart.ErrNoData) {
		return echo.NewHTTPError(http.StatusNotFound, "no logs to chart")
	}
	if errors.Is(err, chart.ErrSize) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, "image/png", img)
}

// chartSize reads an optional image dimension; absent means the default.
func chartSize(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > chart.MaxSize {
		return 0, echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("%s must be a number between 0 and %d", name, chart.MaxSize))
	}
	return n, nil
}

func (s *Server) ListPreferences(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	prefs, err := s.svc.Preferences(c.Request().Context(), profileID(sess))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, prefs)
}

func (s *Server) ReplacePreferences(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	var prefs []pkg.Preference
	if err := c.Bind(&prefs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	out, err := s.svc.ReplacePreferences(c.Request().Context(), profileID(sess), prefs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// ConfirmPreferences stores the chosen list and moves on to the log screen.
func (s *Server) ConfirmPreferences(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	var prefs []pkg.Preference
	if err := c.Bind(&prefs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	out, view, err := s.svc.ConfirmPreferences(c.Request().Context(), sess, prefs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"preferences": out,
		"journey":     view,
	})
}

func (s *Server) SetPreference(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	var p pkg.Preference
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	p.TreatmentID = c.Param("treatmentId")
	out, err := s.svc.SetPreference(c.Request().Context(), profileID(sess), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) RemovePreference(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	out, err := s.svc.RemovePreference(c.Request().Context(), profileID(sess), c.Param("treatmentId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// AnalyzeMe returns the short analysis shown after a log is saved.
func (s *Server) AnalyzeMe(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	text, err := s.svc.AnalyzeStatus(c.Request().Context(), profileID(sess))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"analysis": text})
}

type reportRequest struct {
	Force bool `json:"force"`
}

func (s *Server) MyReport(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req reportRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
	}
	return s.report(c, sess, req.Force)
}

func (s *Server) report(c echo.Context, sess *pkg.Session, force bool) error {
	r, err := s.svc.Report(c.Request().Context(), sess, force)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"report":  r,
		"journey": s.svc.Journey(sess),
	})
}

func (s *Server) MyChat(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	return s.chat(c, sess)
}

func (s *Server) chat(c echo.Context, sess *pkg.Session) error {
	var req pkg.ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	resp, err := s.svc.Chat(c.Request().Context(), sess, req.Message)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) ListConsultations(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	recs, err := s.svc.Consultations(c.Request().Context(), profileID(sess))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, recs)
}

// SaveConsultation stores the current briefing as a consultation record.
func (s *Server) SaveConsultation(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	rec, err := s.svc.SaveConsultation(c.Request().Context(), sess)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"record":  rec,
		"journey": s.svc.Journey(sess),
	})
}

func (s *Server) ViewConsultation(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	v, err := s.svc.ViewConsultation(c.Request().Context(), sess, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (s *Server) GetJourney(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.svc.Journey(sess))
}

type journeyRequest struct {
	Arg string `json:"arg"`
}

// ApplyJourney runs a navigation action; navigate and view-history take
// their target in arg.
func (s *Server) ApplyJourney(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req journeyRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
	}
	view, err := s.svc.ApplyJourney(c.Request().Context(), sess, c.Param("action"), req.Arg)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}
