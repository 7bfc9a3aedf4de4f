package api

import (
	"net/http"
	"strings"

	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/blog"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/health"
	"github.com/openblog/backend/internal/logger"
	"github.com/openblog/backend/internal/metrics"
	"github.com/openblog/backend/internal/middleware"
)

const apiPrefix = "/api/v1"

// Deps are the handlers and gate the router mounts.
type Deps struct {
	Users   *auth.Handlers
	Blogs   *blog.Handlers
	Gate    *auth.Gate
	Health  *health.Handler
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

type Router struct {
	mux    *http.ServeMux
	routes map[string]string // mux pattern -> metrics route label
	deps   Deps
	log    *logger.Logger
}

func NewRouter(deps Deps) *Router {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}
	r := &Router{
		mux:    http.NewServeMux(),
		routes: make(map[string]string),
		deps:   deps,
		log:    log.WithComponent("api"),
	}
	r.setupRoutes()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Route returns the registered path pattern that would serve req, or
// metrics.UnmatchedRoute when only the not-found fallback would.
func (r *Router) Route(req *http.Request) string {
	_, pattern := r.mux.Handler(req)
	if route, ok := r.routes[pattern]; ok {
		return route
	}
	return metrics.UnmatchedRoute
}

func (r *Router) register(pattern string, h http.Handler) {
	_, path, _ := strings.Cut(pattern, " ")
	r.routes[pattern] = path
	r.mux.Handle(pattern, h)
}

func (r *Router) setupRoutes() {
	if r.deps.Health != nil {
		r.register("GET /health", http.HandlerFunc(r.deps.Health.LivenessHandler))
		r.register("GET /health/ready", http.HandlerFunc(r.deps.Health.ReadinessHandler))
	}
	if r.deps.Metrics != nil {
		r.register("GET /metrics", r.deps.Metrics.Handler())
	}

	users, blogs := r.deps.Users, r.deps.Blogs

	// User routes (no auth required)
	r.public("POST /users/register", users.Register)
	r.public("POST /users/login", users.Login)

	// User routes (auth required)
	r.protected("GET /users/current-user", users.CurrentUser)
	r.protected("POST /users/logout", users.Logout)
	r.protected("PATCH /users/update", users.UpdateProfile)
	r.protected("POST /users/change-password", users.ChangePassword)

	// Blog reads
	r.register("GET "+apiPrefix+"/blog/get-all-blogs", middleware.ETag(r.handle(blogs.List)))
	r.register("GET "+apiPrefix+"/blog/get-blog/{id}", middleware.ETag(r.handle(blogs.Get)))
	r.protected("GET /blog/get-my-blogs", blogs.List)
	r.protected("GET /blog/get-my-blog/{id}", blogs.Get)

	// Blog mutations; ownership is enforced by the blog service
	r.protected("POST /blog/create-blog", blogs.Create)
	r.protected("PATCH /blog/update-blog/{id}", blogs.Update)
	r.protected("DELETE /blog/delete-blog/{id}", blogs.Delete)

	r.mux.Handle("/", r.handle(func(w http.ResponseWriter, req *http.Request) error {
		return apperrors.NotFound("Route not found")
	}))
}

func (r *Router) handle(h apperrors.Handler) http.Handler {
	return apperrors.HandleFunc(h, r.logServerError)
}

func (r *Router) public(pattern string, h apperrors.Handler) {
	method, path, _ := strings.Cut(pattern, " ")
	r.register(method+" "+apiPrefix+path, r.handle(h))
}

func (r *Router) protected(pattern string, h apperrors.Handler) {
	method, path, _ := strings.Cut(pattern, " ")
	r.register(method+" "+apiPrefix+path, r.deps.Gate.Middleware(r.handle(h)))
}

// logServerError records failures that are not the client's fault, with
// their cause. The client only ever sees the envelope message.
func (r *Router) logServerError(req *http.Request, err *apperrors.AppError) {
	if !apperrors.IsServerError(err) {
		return
	}
	r.log.Error(req.Context(), "request failed", err, logger.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
	})
}
