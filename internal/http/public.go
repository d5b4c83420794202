package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"carepath/internal/auth"
	"carepath/internal/content"
	"carepath/pkg"
)

// Onboard stores a new profile and returns a patient token for it.
func (s *Server) Onboard(c echo.Context) error {
	u := pkg.NewUserData()
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	created, sess, err := s.svc.Onboard(c.Request().Context(), &u)
	if err != nil {
		return httpError(err)
	}
	resp, err := s.issue(created.ID, auth.RolePatient, sess)
	if err != nil {
		return httpError(err)
	}
	resp.Profile = created
	return c.JSON(http.StatusCreated, resp)
}

type loginRequest struct {
	Passcode string `json:"passcode"`
}

// ClinicianLogin opens a medical-mode session.
func (s *Server) ClinicianLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := auth.CheckPasscode(s.clinicianHash, req.Passcode); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid passcode")
	}
	sess, err := s.svc.StartClinicianSession(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	resp, err := s.issue(auth.RoleClinician, auth.RoleClinician, sess)
	if err != nil {
		return httpError(err)
	}
	zlog(c).Info().Str("session_id", sess.ID).Msg("clinician signed in")
	return c.JSON(http.StatusCreated, resp)
}

type guideResponse struct {
	Types   map[pkg.CRPSType]content.TypeInfo `json:"types"`
	Stats   []content.Stat                    `json:"stats"`
	Profile content.Profile                   `json:"profile"`
	Insight content.InsightNeed               `json:"insight"`
	FAQ     []content.FAQCategory             `json:"faq"`
}

func (s *Server) Guide(c echo.Context) error {
	p, n := s.catalog.Representative()
	return c.JSON(http.StatusOK, guideResponse{
		Types:   content.TypeInfos,
		Stats:   content.StandardStats,
		Profile: p,
		Insight: n,
		FAQ:     s.catalog.SummaryFAQ(),
	})
}

func (s *Server) GuideFAQ(c echo.Context) error {
	return c.JSON(http.StatusOK, s.catalog.FAQ)
}

// ListTreatments returns the catalog, ordered for a CRPS type when one is
// given.
func (s *Server) ListTreatments(c echo.Context) error {
	if t := c.QueryParam("type"); t != "" {
		return c.JSON(http.StatusOK, content.SortedFor(pkg.CRPSType(strings.ToUpper(t))))
	}
	return c.JSON(http.StatusOK, content.Treatments())
}

func (s *Server) GetTreatment(c echo.Context) error {
	t, ok := content.FindTreatment(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "treatment not found")
	}
	return c.JSON(http.StatusOK, t)
}

// TreatmentReasons lists the reasons offered for a reaction.  Ids starting
// with "custom" refer to options typed in by the patient.
func (s *Server) TreatmentReasons(c echo.Context) error {
	kind := pkg.PreferenceType(strings.ToUpper(c.QueryParam("type")))
	if !kind.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "type must be LIKE, DISLIKE or WORRY")
	}
	id := c.Param("id")
	if strings.HasPrefix(id, "custom") {
		return c.JSON(http.StatusOK, content.ReasonOptions(kind, nil))
	}
	t, ok := content.FindTreatment(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "treatment not found")
	}
	return c.JSON(http.StatusOK, content.ReasonOptions(kind, &t))
}

type analyzeTreatmentRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AnalyzeTreatment summarises current research on a treatment.  A catalog
// id may be given as name; its reference URL is then used.
func (s *Server) AnalyzeTreatment(c echo.Context) error {
	var req analyzeTreatmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	url := req.URL
	if t, ok := content.FindTreatment(name); ok {
		name = t.Title
		if url == "" {
			url = t.ReferenceURL
		}
	}
	return c.JSON(http.StatusOK, s.svc.Persona().AnalyzeTreatment(c.Request().Context(), name, url))
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) AskFAQ(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	return c.JSON(http.StatusOK, s.svc.Persona().AnswerFAQ(c.Request().Context(), req.Question))
}

func (s *Server) PersonaIntro(c echo.Context) error {
	msg := s.svc.Persona().PersonaMessage(c.Request().Context(), pkg.StageIntro, nil, pkg.AudiencePatient)
	return c.JSON(http.StatusOK, map[string]string{"message": msg})
}
