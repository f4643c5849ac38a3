package httpserver

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"chatline/internal/config"
	"chatline/internal/mail"
	"chatline/internal/security"
	"chatline/internal/service"
	"chatline/internal/store/sqlite"
	"chatline/internal/ws"
)

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(
	cfg *config.Config,
	db *sql.DB,
	hub *ws.Hub,
	tokenSvc *security.TokenService,
	passwordHasher *security.PasswordHasher,
	encryptor *security.Encryptor,
	mailer mail.Mailer,
	log logrus.FieldLogger,
) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Repositories
	userRepo := sqlite.NewUserRepo(db)
	dialogueRepo := sqlite.NewDialogueRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)
	fileRepo := sqlite.NewFileRepo(db)
	tokenRepo := sqlite.NewTokenRepo(db)

	// Services
	fileSvc := service.NewFileService(fileRepo, cfg.UploadDir, cfg.BaseURL, cfg.MaxUploadBytes, log)
	authSvc := service.NewAuthService(userRepo, tokenRepo, tokenSvc, passwordHasher, mailer, cfg.ClientURL)
	msgSvc := service.NewMessageService(dialogueRepo, msgRepo, userRepo, fileSvc, encryptor, hub)
	dlgSvc := service.NewDialogueService(dialogueRepo, msgRepo, userRepo, fileSvc, msgSvc, hub)
	userSvc := service.NewUserService(userRepo, fileSvc, dlgSvc, hub)

	refreshTTL := time.Duration(cfg.RefreshTokenDays) * 24 * time.Hour

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", handleSignUp(authSvc))
			r.Get("/activate/{activationID}", handleActivate(authSvc))
			r.Post("/signin", handleSignIn(authSvc, refreshTTL))
			r.Get("/refresh", handleRefresh(authSvc, refreshTTL))
			r.Post("/logout", handleLogout(authSvc))
			r.Post("/password-reset", handleRequestPasswordReset(authSvc))
			r.Get("/password-reset/{resetID}", handleCheckPasswordReset(authSvc))
			r.Post("/password-reset/{resetID}", handleSetNewPassword(authSvc))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, userRepo))

			// Users
			r.Route("/users", func(r chi.Router) {
				r.Get("/me", handleMe(userSvc))
				r.Patch("/me", handleEditProfile(userSvc, cfg.MaxUploadBytes))
				r.Get("/me/unread-count", handleUnreadCount(msgSvc))
				r.Get("/{userID}", handleGetUser(userSvc))
			})

			// Friendship
			r.Route("/friends", func(r chi.Router) {
				r.Get("/", handleListFriends(userSvc))
				r.Delete("/{userID}", handleRemoveFriend(userSvc))
				r.Get("/requests", handleListFriendRequests(userSvc))
				r.Post("/requests/{userID}", handleSendFriendRequest(userSvc))
				r.Post("/requests/{userID}/accept", handleAcceptFriendRequest(userSvc))
				r.Delete("/requests/{userID}", handleDenyFriendRequest(userSvc))
			})

			// Dialogues and messages
			r.Route("/dialogues", func(r chi.Router) {
				r.Post("/", handleCreateDialogue(dlgSvc, msgSvc))
				r.Get("/", handleListDialogues(dlgSvc))
				r.Get("/{dialogueID}/messages", handleListMessages(msgSvc))
				r.Post("/{dialogueID}/messages", handleCreateMessage(msgSvc, cfg.MaxUploadBytes))
				r.Post("/{dialogueID}/read", handleMarkDialogueRead(msgSvc))
			})

			r.Route("/messages", func(r chi.Router) {
				r.Patch("/{messageID}", handleEditMessage(msgSvc, cfg.MaxUploadBytes))
				r.Delete("/{messageID}", handleDeleteMessage(msgSvc))
			})
		})
	})

	// Stored blobs (attachments, avatars)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(hub, tokenSvc, userRepo, cfg.CORSOrigins, log))

	return r
}

// requestLogger logs one structured line per request.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     wrapped.Status(),
				"bytes":      wrapped.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("request")
		})
	}
}
