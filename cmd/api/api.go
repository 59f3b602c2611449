package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamereviews/docs" //this is required to generate swagger docs
	"gamereviews/internal/auth"
	"gamereviews/internal/mailer"
	"gamereviews/internal/ratelimiter"
	"gamereviews/internal/rbac"
	"gamereviews/internal/steamspy"
	"gamereviews/internal/store"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         store.Storage
	logger        *zap.SugaredLogger
	cld           *cloudinary.Cloudinary
	mailer        mailer.Client
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
	steamspy      *steamspy.Client
}

type config struct {
	addr         string
	env          string
	apiURL       string
	frontendURL  string
	gameCodeSalt string
	db           dbConfig
	auth         authConfig
	mail         mailConfig
	rateLimiter  ratelimiter.Config
}

type dbConfig struct {
	addr        string
	maxConns    int
	maxIdleTime string
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret          string
	refreshSecret   string
	accessTokenExp  time.Duration
	refreshTokenExp time.Duration
	iss             string
}

type basicConfig struct {
	user string
	pass string
}

type mailConfig struct {
	fromEmail string
	smtp      smtpConfig
}

type smtpConfig struct {
	host     string
	port     int
	username string
	password string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(app.RateLimiterMiddleware)

	// Request context deadline; every store call inherits it.
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.addr)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		r.Route("/authentication", func(r chi.Router) {
			r.Post("/user", app.registerUserHandler)
			r.Post("/token", app.createTokenHandler)
			r.Post("/refresh", app.refreshTokenHandler)
		})

		r.Route("/games", func(r chi.Router) {
			r.Get("/", app.listGamesHandler)
			r.With(app.AuthTokenMiddleware, app.RequireAction(rbac.ActionCreateGame)).
				Post("/", app.createGameHandler)

			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", app.getGameHandler)
				r.With(app.AuthTokenMiddleware, app.RequireAction(rbac.ActionEditGame)).
					Patch("/", app.updateGameHandler)
				r.With(app.AuthTokenMiddleware, app.RequireAction(rbac.ActionDeleteGame)).
					Delete("/", app.deleteGameHandler)
				r.With(app.AuthTokenMiddleware, app.RequireAction(rbac.ActionEditGame)).
					Post("/media", app.uploadGameMediaHandler)

				r.Get("/comments", app.listGameCommentsHandler)
				r.With(app.AuthTokenMiddleware).Post("/comments", app.createCommentHandler)

				r.Get("/reviews", app.listGameReviewsHandler)
				r.With(app.AuthTokenMiddleware, app.RequireAction(rbac.ActionCreateReview)).
					Post("/reviews", app.createReviewHandler)
			})
		})

		// Short share-code lookup, e.g. /v1/g/x7k2pq
		r.Get("/g/{code}", app.getGameByCodeHandler)

		r.Route("/comments/{commentID}", func(r chi.Router) {
			r.Get("/replies", app.listRepliesHandler)
			r.With(app.AuthTokenMiddleware).Patch("/", app.editCommentHandler)
			r.With(app.AuthTokenMiddleware, app.RequireAction(rbac.ActionDeleteComment)).
				Delete("/", app.deleteCommentHandler)
			r.With(app.AuthTokenMiddleware).Post("/like", app.likeCommentHandler)
			r.With(app.AuthTokenMiddleware).Delete("/like", app.unlikeCommentHandler)
		})

		r.Route("/reviews/{reviewID}", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/helpful", app.markReviewHelpfulHandler)
			r.Post("/report", app.reportReviewHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Get("/me", app.getCurrentUserHandler)
			r.Patch("/me", app.updateUserHandler)
			r.Delete("/me", app.deleteCriticAccountHandler)
			r.Post("/profile-picture", app.uploadProfilePictureHandler)
			r.Post("/logout", app.logoutHandler)
		})

		r.With(app.AuthTokenMiddleware, app.RequireAction(rbac.ActionManageCriticProfile)).
			Get("/critic/reviews", app.criticDashboardHandler)

		r.Route("/admin", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.With(app.RequireAction(rbac.ActionChangeUserRole)).
				Put("/users/{userID}/role", app.changeUserRoleHandler)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())
		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)
	return nil
}
