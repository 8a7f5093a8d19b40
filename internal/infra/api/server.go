package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-private-group/internal/config"
	"telegram-private-group/internal/domain/model"
	"telegram-private-group/internal/infra/logging"
	"telegram-private-group/internal/usecase"
)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Server exposes subscription creation and lookup over JSON.
type Server struct {
	users    usecase.UserUseCase
	subs     usecase.SubscriptionUseCase
	plans    usecase.PlanUseCase
	health   HealthFunc
	loc      *time.Location
	timeout  time.Duration
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewServer(
	users usecase.UserUseCase,
	subs usecase.SubscriptionUseCase,
	plans usecase.PlanUseCase,
	health HealthFunc,
	loc *time.Location,
	cfg config.HTTPConfig,
	logger *zerolog.Logger,
) *Server {
	if loc == nil {
		loc = time.UTC
	}
	if health == nil {
		health = func(context.Context) error { return nil }
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	l := logger.With().Str("component", "API").Logger()
	return &Server{
		users:    users,
		subs:     subs,
		plans:    plans,
		health:   health,
		loc:      loc,
		timeout:  timeout,
		validate: validator.New(),
		log:      &l,
	}
}

// Routes builds the router with the middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(s.timeout))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", s.handleRegisterUser)
		r.Get("/plans", s.handleListPlans)
		r.Post("/subscriptions", s.handleCreateOrRenew)
		r.Get("/subscriptions/{username}", s.handleGetSubscription)
	})
	return r
}

// NewHTTPServer wraps handler with the configured address and timeouts.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// registerUserRequest carries the profile only. The admin role is granted out
// of band and an is_admin field is rejected as unknown.
type registerUserRequest struct {
	ChatID    int64  `json:"chat_id" validate:"ne=0"`
	Username  string `json:"username" validate:"required,max=33"`
	FirstName string `json:"first_name" validate:"max=64"`
	LastName  string `json:"last_name" validate:"max=64"`
}

type userResponse struct {
	ChatID         int64  `json:"chat_id"`
	Username       string `json:"username"`
	IsAdmin        bool   `json:"is_admin"`
	InPrivateGroup bool   `json:"in_private_group"`
}

type createSubscriptionRequest struct {
	Username        string `json:"username" validate:"required"`
	Plan            string `json:"plan" validate:"required"`
	TransactionHash string `json:"transaction_hash" validate:"required,hexadecimal,len=64"`
}

type planResponse struct {
	Period string `json:"period"`
	Days   int    `json:"days"`
	Price  int64  `json:"price"`
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	noteCustomer(r, req.Username)
	u, err := s.users.Register(r.Context(), req.ChatID, req.Username, req.FirstName, req.LastName)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	noteFor(r).outcome = "registered"
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, OK(userResponse{
		ChatID:         u.ChatID,
		Username:       u.Username,
		IsAdmin:        u.IsAdmin,
		InPrivateGroup: u.InPrivateGroup,
	}))
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{Period: p.Period.String(), Days: p.Period.Days(), Price: p.Price})
	}
	render.JSON(w, r, OK(out))
}

func (s *Server) handleCreateOrRenew(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if !s.decode(w, r, &req) {
		return
	}
	noteCustomer(r, req.Username)
	noteFor(r).plan = req.Plan
	sub, err := s.subs.CreateOrRenew(r.Context(), req.Username, req.Plan, req.TransactionHash)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	customer := sub.Customer
	if customer == nil {
		customer = &model.TelegramUser{ChatID: sub.CustomerID, Username: model.NormalizeUsername(req.Username)}
	}
	status, outcome := http.StatusCreated, "created"
	if sub.Renewal {
		status, outcome = http.StatusOK, "renewed"
	}
	noteFor(r).outcome = outcome
	render.Status(r, status)
	render.JSON(w, r, OK(model.NewSubscriptionView(sub, customer, s.loc, time.Now())))
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	noteCustomer(r, username)
	view, err := s.subs.GetView(r.Context(), username)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, OK(view))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health(r.Context()); err != nil {
		l := logging.With(r.Context(), s.log)
		l.Warn().Err(err).Msg("health check failed")
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, Error("unavailable"))
		return
	}
	render.JSON(w, r, OK(nil))
}

// decode parses and validates the JSON body, writing the error response itself.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		noteFor(r).code = "invalid_body"
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Error("invalid request body"))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		noteFor(r).code = "validation"
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, ValidationError(verrs))
			return false
		}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, Error(err.Error()))
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	noteFor(r).code = errorCode(err)
	l := logging.With(r.Context(), s.log)
	if code >= http.StatusInternalServerError {
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		l.Debug().Err(err).Str("path", r.URL.Path).Int("status", code).Msg("request rejected")
	}
	render.Status(r, code)
	render.JSON(w, r, Error(errorCode(err)))
}
