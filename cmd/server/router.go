package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/connkeeper/internal/api"
	apiMiddleware "github.com/phrazzld/connkeeper/internal/api/middleware"
)

// setupRouter creates the router serving the operational endpoints.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.RequestLogger(app.logger))
	r.Use(middleware.Recoverer)

	ops := api.NewOpsHandler(app.manager, app.executor, app.config.Health.PingTimeout)
	ops.Routes(r)

	return r
}
