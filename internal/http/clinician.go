package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"carepath/internal/core"
	"carepath/pkg"
	"carepath/pkg/pagination"
)

// keepAlive is the interval of SSE comments sent to idle streams.
const keepAlive = 30 * time.Second

func (s *Server) ListPatients(c echo.Context) error {
	if _, _, err := s.session(c); err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := s.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// GetPatient returns the patient's full record, preferences included.
func (s *Server) GetPatient(c echo.Context) error {
	if _, _, err := s.session(c); err != nil {
		return err
	}
	u, err := s.svc.Patient(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) PatientTrend(c echo.Context) error {
	if _, _, err := s.session(c); err != nil {
		return err
	}
	return s.trend(c, c.Param("id"))
}

func (s *Server) SelectPatient(c echo.Context) error {
	_, sess, err := s.session(c)
	if err != nil {
		return err
	}
	view, err := s.svc.SelectPatient(c.Request().Context(), sess, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// boundSession loads the clinician session and checks that it has selected
// the patient in the path.
func (s *Server) boundSession(c echo.Context) (*pkg.Session, error) {
	_, sess, err := s.session(c)
	if err != nil {
		return nil, err
	}
	if !core.BoundToPatient(sess, c.Param("id")) {
		return nil, echo.NewHTTPError(http.StatusConflict, "select the patient first")
	}
	return sess, nil
}

func (s *Server) PatientReport(c echo.Context) error {
	sess, err := s.boundSession(c)
	if err != nil {
		return err
	}
	return s.report(c, sess, false)
}

func (s *Server) PatientChat(c echo.Context) error {
	sess, err := s.boundSession(c)
	if err != nil {
		return err
	}
	return s.chat(c, sess)
}

type patientUpdate struct {
	ProfileID string    `json:"profileId"`
	At        time.Time `json:"at"`
}

// StreamPatients sends a "patient" event each time a profile changes, until
// the client goes away.
func (s *Server) StreamPatients(c echo.Context) error {
	if _, _, err := s.session(c); err != nil {
		return err
	}
	if s.updates == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "live updates are not available")
	}
	ctx := c.Request().Context()
	ids, err := s.updates.Listen(ctx)
	if err != nil {
		return httpError(err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return nil
	}
	w.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case id, ok := <-ids:
			if !ok {
				return nil
			}
			data, err := json.Marshal(patientUpdate{ProfileID: id, At: time.Now().UTC()})
			if err != nil {
				return nil
			}
			if _, err := fmt.Fprintf(w, "event: patient\ndata: %s\n\n", data); err != nil {
				zlog(c).Debug().Err(err).Msg("stream closed")
				return nil
			}
			w.Flush()
		}
	}
}
