package http

import (
	"log/slog"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/user"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterConfig struct {
	Logger         *slog.Logger
	AllowedOrigins []string
}

type Handlers struct {
	Attendance AttendanceHandler
	Leave      LeaveHandler
	WorkType   WorkTypeHandler
	Events     EventHandler
}

func NewRouter(cfg RouterConfig, JWTService jwt.Service, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/api/v1", func(r chi.Router) {
		// token travels in the query string
		r.Get("/events", h.Events.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)

			r.Get("/events/token", h.Events.StreamToken)

			r.Route("/attendance", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(user.PermissionAttendanceClock))
					r.Post("/clock-in", h.Attendance.ClockIn)
					r.Post("/clock-out", h.Attendance.ClockOut)
					r.Post("/breaks/start", h.Attendance.StartBreak)
					r.Post("/breaks/end", h.Attendance.EndBreak)
				})

				r.With(middleware.RequirePermission(user.PermissionAttendanceViewAll)).
					Get("/stale", h.Attendance.ListStale)
				r.Get("/day", h.Attendance.GetDay)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Attendance.Get)
					r.Get("/history", h.Attendance.History)
					r.Get("/diff", h.Attendance.Diff)
					r.With(middleware.RequirePermission(user.PermissionAttendanceCorrect)).
						Post("/corrections", h.Attendance.Correct)
				})
			})

			r.Route("/leave", func(r chi.Router) {
				r.Route("/balances", func(r chi.Router) {
					r.Get("/", h.Leave.MyBalances)
					r.With(middleware.RequireManager).Get("/{userID}", h.Leave.UserBalances)
				})
				r.With(middleware.RequirePermission(user.PermissionLeaveGrant)).
					Post("/grants", h.Leave.Grant)

				r.Route("/holds", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionLeaveReconcile)).
						Get("/leaked", h.Leave.ListLeakedHolds)
					r.Get("/{requestID}", h.Leave.GetHold)
				})

				r.Route("/requests", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionLeaveCreate)).
						Post("/", h.Leave.CreateRequest)
					r.Get("/my", h.Leave.GetMyRequests)
					r.With(middleware.RequirePermission(user.PermissionLeaveViewAll)).
						Get("/pending", h.Leave.ListPendingRequests)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", h.Leave.GetRequest)
						r.Delete("/", h.Leave.DeleteRequest)
						r.Post("/cancel", h.Leave.CancelRequest)

						// Manager only
						r.Group(func(r chi.Router) {
							r.Use(middleware.RequirePermission(user.PermissionLeaveApprove))
							r.Post("/approve", h.Leave.ApproveRequest)
							r.Post("/reject", h.Leave.RejectRequest)
						})
					})
				})
			})

			r.Route("/work-types", func(r chi.Router) {
				r.With(middleware.RequirePermission(user.PermissionWorkTypeManage)).
					Post("/", h.WorkType.Create)
				r.Get("/{id}", h.WorkType.Get)
				r.With(middleware.RequirePermission(user.PermissionWorkTypeAssign)).
					Put("/{id}/assignments/{userID}", h.WorkType.Assign)
			})
		})
	})
	return r
}
