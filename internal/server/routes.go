package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/taskgrove/taskgrove/internal/api/v1"
	"github.com/taskgrove/taskgrove/internal/api/ws"
	"github.com/taskgrove/taskgrove/internal/auth"
	"github.com/taskgrove/taskgrove/internal/store/postgres"
	"github.com/taskgrove/taskgrove/internal/tree"
)

func registerAuthRoutes(api huma.API, authSvc *auth.Service) {
	v1.RegisterAuthRoutes(api, authSvc)
}

func registerAPIRoutes(api huma.API, store *postgres.Store, engine *tree.Engine, authSvc *auth.Service) {
	v1.RegisterMeRoutes(api, authSvc)
	v1.RegisterTaskRoutes(api, store, engine)
	v1.RegisterSubtaskRoutes(api, engine)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/tree", hub.ServeTree)
}
