// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"examhub/internal/config"
	contentrepository "examhub/internal/content/repository"
	contenthttp "examhub/internal/content/transport/http"
	"examhub/internal/metrics"
	"examhub/internal/payment"
	progressrepository "examhub/internal/progress/repository"
	progressservice "examhub/internal/progress/service"
	progresshttp "examhub/internal/progress/transport/http"
	purchaserepository "examhub/internal/purchase/repository"
	purchaseservice "examhub/internal/purchase/service"
	purchasehttp "examhub/internal/purchase/transport/http"
	questionsetrepository "examhub/internal/questionset/repository"
	questionsetservice "examhub/internal/questionset/service"
	questionsethttp "examhub/internal/questionset/transport/http"
	redeemrepository "examhub/internal/redeemcode/repository"
	redeemservice "examhub/internal/redeemcode/service"
	redeemhttp "examhub/internal/redeemcode/transport/http"
	tokenrepository "examhub/internal/token/repository"
	userrepository "examhub/internal/user/repository"
	userservice "examhub/internal/user/service"
	userhttp "examhub/internal/user/transport/http"
	"examhub/pkg/api"
	"examhub/pkg/db"
	"examhub/pkg/middleware"
)

var server *http.Server

func main() {
	log.Println("ExamHub API starting...")
	cfg := config.Load()
	api.SetDevMode(cfg.IsDevelopment())
	metrics.InitMetrics()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL")

	// --- LAYER WIRING ---
	userRepo := userrepository.NewPostgresUserRepository(database)
	userService := userservice.NewUserService(userRepo)
	refreshTokenRepo := tokenrepository.NewRefreshTokenRepository(database)
	userHandler := userhttp.NewHandler(userService, cfg.JWTSecret, refreshTokenRepo)

	stripeClient := payment.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	setRepo := questionsetrepository.NewPostgresQuestionSetRepository(database)
	purchaseRepo := purchaserepository.NewPostgresPurchaseRepository(database)
	purchaseService := purchaseservice.NewService(purchaseRepo, setRepo, stripeClient)
	purchaseHandler := purchasehttp.NewHandler(purchaseService, stripeClient)

	setService := questionsetservice.NewService(setRepo, purchaseService)
	setHandler := questionsethttp.NewHandler(setService)

	redeemRepo := redeemrepository.NewPostgresRedeemCodeRepository(database)
	redeemService := redeemservice.NewService(redeemRepo, setRepo, redeemservice.NewSQLTxRunner(database))
	redeemHandler := redeemhttp.NewHandler(redeemService)

	progressRepo := progressrepository.NewPostgresProgressRepository(database)
	progressService := progressservice.NewService(progressRepo, setRepo)
	progressHandler := progresshttp.NewHandler(progressService)

	contentRepo := contentrepository.NewPostgresContentRepository(database)
	contentHandler := contenthttp.NewHandler(contentRepo)

	authLimiter := middleware.NewRateLimiter(20, 1*time.Minute)

	// --- ROUTER ---
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://localhost:3000", "http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.ValidateRequest)

	// Public routes
	r.Group(func(pub chi.Router) {
		pub.Use(authLimiter.Middleware)
		pub.Post("/auth/register", userHandler.Register)
		pub.Post("/auth/login", userHandler.Login)
		pub.Post("/auth/refresh", userHandler.Refresh)
	})

	r.Get("/api/question-sets", setHandler.List)
	r.Get("/api/question-sets/{id}", setHandler.Get)
	r.Get("/api/content", contentHandler.List)

	// Gateway callbacks authenticate via signature, not JWT
	r.Post("/api/purchases/webhook", purchaseHandler.Webhook)

	// Authenticated routes
	r.Group(func(pr chi.Router) {
		pr.Use(middleware.JWTAuth(cfg.JWTSecret))

		pr.Get("/auth/me", userHandler.Me)

		pr.Get("/api/question-sets/{id}/questions", setHandler.GetQuestions)

		pr.Get("/api/purchases/check/{quizID}", purchaseHandler.CheckAccess)
		pr.Post("/api/purchases", purchaseHandler.Create)
		pr.Post("/api/purchases/complete", purchaseHandler.Complete)
		pr.Get("/api/purchases", purchaseHandler.List)

		pr.Post("/api/redeem-codes/redeem", redeemHandler.Redeem)

		pr.Post("/api/progress", progressHandler.Record)
		pr.Get("/api/progress", progressHandler.List)

		// Admin routes
		pr.Group(func(ar chi.Router) {
			ar.Use(middleware.RequireAdmin(userService))

			ar.Post("/api/redeem-codes/generate", redeemHandler.Generate)
			ar.Get("/api/redeem-codes", redeemHandler.List)
			ar.Delete("/api/redeem-codes/{id}", redeemHandler.Delete)

			ar.Post("/api/admin/question-sets", setHandler.Create)
			ar.Put("/api/admin/question-sets/{id}", setHandler.Update)
			ar.Delete("/api/admin/question-sets/{id}", setHandler.Delete)
			ar.Post("/api/admin/question-sets/{id}/questions", setHandler.AddQuestion)
			ar.Delete("/api/admin/questions/{id}", setHandler.DeleteQuestion)

			ar.Put("/api/content/{slug}", contentHandler.Upsert)
			ar.Delete("/api/content/{slug}", contentHandler.Delete)
		})
	})

	r.With(middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPassword)).
		Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	server = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	log.Printf("Server running on :%s", cfg.Port)

	// Graceful shutdown on OS signals
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Println("Shutdown signal received, starting graceful shutdown")
		shutdownServer()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func shutdownServer() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped")
}
