// Package http exposes the care pathway over a JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"carepath/internal/auth"
	"carepath/internal/content"
	"carepath/internal/core"
	"carepath/internal/journey"
	"carepath/internal/middleware"
	"carepath/pkg"
)

// UpdateSource streams the ids of profiles that changed.
type UpdateSource interface {
	Listen(ctx context.Context) (<-chan string, error)
}

// Server bundles the dependencies of the HTTP handlers.
type Server struct {
	svc           *core.Service
	catalog       *content.Catalog
	issuer        *auth.Issuer
	clinicianHash string
	updates       UpdateSource
	logger        zerolog.Logger
}

// NewServer constructs a Server.  updates may be nil, in which case the
// clinician stream is unavailable.
func NewServer(svc *core.Service, catalog *content.Catalog, issuer *auth.Issuer, clinicianHash string, updates UpdateSource, logger zerolog.Logger) *Server {
	return &Server{
		svc:           svc,
		catalog:       catalog,
		issuer:        issuer,
		clinicianHash: clinicianHash,
		updates:       updates,
		logger:        logger,
	}
}

// EchoConfig holds the HTTP-level settings of NewEcho.
type EchoConfig struct {
	CORSOrigins []string
	// AIRate and AIBurst limit the public routes that call the model, per
	// client IP.  AIRate is in requests per minute.
	AIRate  float64
	AIBurst int
}

// NewEcho returns an echo instance with the middleware stack and every
// route registered.
func NewEcho(s *Server, cfg EchoConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(s.logger))
	e.Use(middleware.Recovery(s.logger))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:  cfg.CORSOrigins,
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, middleware.RequestIDHeader},
			ExposeHeaders: []string{middleware.RequestIDHeader},
		}))
	}

	s.RegisterRoutes(e, middleware.RateLimit(cfg.AIRate, cfg.AIBurst))
	return e
}

// RegisterRoutes adds every route to e.  aiLimit guards the public routes
// that call the model.
func (s *Server) RegisterRoutes(e *echo.Echo, aiLimit echo.MiddlewareFunc) {
	e.GET("/health", s.Health)

	api := e.Group("/api/v1")
	api.POST("/onboarding", s.Onboard)
	api.POST("/clinician/login", s.ClinicianLogin)
	api.GET("/guide", s.Guide)
	api.GET("/guide/faq", s.GuideFAQ)
	api.GET("/treatments", s.ListTreatments)
	api.GET("/treatments/:id", s.GetTreatment)
	api.GET("/treatments/:id/reasons", s.TreatmentReasons)
	api.POST("/treatments/analyze", s.AnalyzeTreatment, aiLimit)
	api.POST("/faq/ask", s.AskFAQ, aiLimit)
	api.GET("/persona/intro", s.PersonaIntro)

	me := api.Group("/me", auth.Middleware(s.issuer), auth.RequireRole(auth.RolePatient))
	me.GET("", s.GetMe)
	me.PUT("", s.UpdateMe)
	me.DELETE("", s.DeleteMe)
	me.GET("/export", s.ExportMe)
	me.PUT("/import", s.ImportMe)
	me.GET("/logs", s.ListLogs)
	me.POST("/logs", s.RecordLog)
	me.GET("/trend", s.MyTrend)
	me.GET("/trend.png", s.MyTrendChart)
	me.GET("/preferences", s.ListPreferences)
	me.PUT("/preferences", s.ReplacePreferences)
	me.POST("/preferences/confirm", s.ConfirmPreferences)
	me.PUT("/preferences/:treatmentId", s.SetPreference)
	me.DELETE("/preferences/:treatmentId", s.RemovePreference)
	me.POST("/analysis", s.AnalyzeMe)
	me.POST("/report", s.MyReport)
	me.POST("/chat", s.MyChat)
	me.GET("/consultations", s.ListConsultations)
	me.POST("/consultations", s.SaveConsultation)
	me.GET("/consultations/:id", s.ViewConsultation)
	me.GET("/journey", s.GetJourney)
	me.POST("/journey/:action", s.ApplyJourney)

	pts := api.Group("/patients", auth.Middleware(s.issuer), auth.RequireRole(auth.RoleClinician))
	pts.GET("", s.ListPatients)
	pts.GET("/stream", s.StreamPatients)
	pts.GET("/:id", s.GetPatient)
	pts.GET("/:id/trend", s.PatientTrend)
	pts.POST("/:id/select", s.SelectPatient)
	pts.POST("/:id/report", s.PatientReport)
	pts.POST("/:id/chat", s.PatientChat)
}

func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// httpError maps service errors onto status codes.  Unknown errors become
// a 500 whose cause is kept for the request log.
func httpError(err error) error {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, core.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrNoProfile),
		errors.Is(err, journey.ErrInvalidView),
		errors.Is(err, journey.ErrUnknownAction):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrRecordReadOnly),
		errors.Is(err, core.ErrNothingToSave),
		errors.Is(err, journey.ErrOnboardingRequired),
		errors.Is(err, journey.ErrMedicalOnly):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

// session loads the session named by the token.  A session that no longer
// exists, or that belongs to another profile, invalidates the token.
func (s *Server) session(c echo.Context) (*auth.Claims, *pkg.Session, error) {
	claims := auth.ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return nil, nil, echo.NewHTTPError(http.StatusUnauthorized, "missing claims")
	}
	sess, err := s.svc.Session(c.Request().Context(), claims.SessionID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil, echo.NewHTTPError(http.StatusUnauthorized, "session ended")
	}
	if err != nil {
		return nil, nil, httpError(err)
	}
	if claims.Role == auth.RolePatient && (sess.ProfileID == nil || *sess.ProfileID != claims.Subject) {
		return nil, nil, echo.NewHTTPError(http.StatusUnauthorized, "session ended")
	}
	if claims.Role == auth.RoleClinician && !sess.MedicalMode {
		return nil, nil, echo.NewHTTPError(http.StatusUnauthorized, "session ended")
	}
	return claims, sess, nil
}

// tokenResponse is returned when a session is opened.
type tokenResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Journey   core.JourneyView `json:"journey"`
	Profile   *pkg.UserData    `json:"profile,omitempty"`
}

func (s *Server) issue(subject, role string, sess *pkg.Session) (*tokenResponse, error) {
	token, exp, err := s.issuer.Issue(subject, role, sess.ID)
	if err != nil {
		return nil, err
	}
	return &tokenResponse{
		Token:     token,
		ExpiresAt: exp.UTC(),
		Journey:   s.svc.Journey(sess),
	}, nil
}

// zlog returns the request-scoped logger set by the logging middleware.
func zlog(c echo.Context) *zerolog.Logger {
	return zerolog.Ctx(c.Request().Context())
}
