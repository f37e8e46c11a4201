package http

import (
	"net/http"

	"movedocs/internal/auth"
	"movedocs/internal/config"
	"movedocs/internal/http/handler"
	mw "movedocs/internal/http/middleware"
	"movedocs/internal/remote"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

func NewRouter(cfg config.Config, db *gorm.DB, jwtSvc *auth.JWT) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ah := &handler.AuthHandler{DB: db, JWT: jwtSvc}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	me := &handler.MeHandler{DB: db}
	r.With(auth.RequireAuth(jwtSvc)).Get("/me", me.Me)

	dh := &handler.DraftHandler{Svc: &remote.Service{DB: db}}

	r.Route("/drafts", func(r chi.Router) {
		r.Use(auth.RequireAuth(jwtSvc))

		r.Get("/", dh.List)
		r.Get("/{formType}", dh.Get)
		r.Get("/{formType}/exists", dh.Exists)
		r.Put("/{formType}", dh.Put)
		r.Delete("/{formType}", dh.Delete)
	})

	return r
}
