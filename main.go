package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/OshadiJayananda/lms-backend/internal/borrow"
	"github.com/OshadiJayananda/lms-backend/internal/catalog"
	"github.com/OshadiJayananda/lms-backend/internal/mail"
	"github.com/OshadiJayananda/lms-backend/internal/notification"
	"github.com/OshadiJayananda/lms-backend/internal/payment"
	"github.com/OshadiJayananda/lms-backend/internal/platform/auth"
	"github.com/OshadiJayananda/lms-backend/internal/platform/db"
	"github.com/OshadiJayananda/lms-backend/internal/policy"
	"github.com/OshadiJayananda/lms-backend/internal/renewal"
	"github.com/OshadiJayananda/lms-backend/internal/reservation"
	"github.com/OshadiJayananda/lms-backend/internal/workers"
)

func main() {
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	mode := cfg.Mode
	log.Printf("[INFO] mode:%s\n", mode)

	if cfg.Mode != "dev" && cfg.Mode != "release" {
		fmt.Println("Usage: go run main.go [dev|release]")
		return
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	tokenTTL := 24 * time.Hour
	if cfg.Auth.TokenTTL != "" {
		if d, err := time.ParseDuration(cfg.Auth.TokenTTL); err == nil && d > 0 {
			tokenTTL = d
		}
	}

	var mailer mail.Mailer = mail.NewSMTPMailer(cfg.SMTP)
	if mode == "dev" {
		mailer = mail.LogMailer{}
	}

	authSvc := auth.NewService(conn, []byte(cfg.Auth.JWTSecret), tokenTTL)
	notifier := notification.NewService(conn, cfg.AdminUserIDs)
	policySvc := policy.NewService(conn)
	catalogSvc := catalog.NewService(conn)
	borrowSvc := borrow.NewService(conn, policySvc, notifier, mailer)
	reservationSvc := reservation.NewService(conn, policySvc, notifier, mailer)
	renewalSvc := renewal.NewService(conn, notifier, mailer)
	paymentSvc := payment.NewService(conn, cfg.Gateway, payment.NewHTTPGateway(cfg.Gateway), borrowSvc, policySvc, notifier)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		origins := cfg.HTTP.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")

	// Public: login/register plus the gateway callback, which authenticates
	// with its own signature.
	auth.RegisterRoutes(api, authSvc)
	payment.RegisterWebhookRoute(api, paymentSvc)

	secret := []byte(cfg.Auth.JWTSecret)

	user := api.Group("")
	user.Use(auth.RequireAuth(secret))
	auth.RegisterUserRoutes(user, authSvc)
	catalog.RegisterRoutes(user, catalogSvc)
	borrow.RegisterUserRoutes(user, borrowSvc)
	reservation.RegisterUserRoutes(user, reservationSvc)
	renewal.RegisterUserRoutes(user, renewalSvc)
	payment.RegisterUserRoutes(user, paymentSvc)
	notification.RegisterUserRoutes(user, notifier)

	admin := api.Group("/admin")
	admin.Use(auth.RequireAuth(secret), auth.RequireRole(auth.RoleAdmin))
	borrow.RegisterAdminRoutes(admin, borrowSvc)
	reservation.RegisterAdminRoutes(admin, reservationSvc)
	renewal.RegisterAdminRoutes(admin, renewalSvc)
	notification.RegisterAdminRoutes(admin, notifier)
	policy.RegisterRoutes(admin, policySvc)

	// Background jobs: overdue marking, return reminders, stale renewal
	// expiry.
	jobCtx, stopJobs := context.WithCancel(context.Background())
	scheduler := workers.NewScheduler(cfg.Scheduler, borrowSvc, borrowSvc, renewalSvc)
	scheduler.Start(jobCtx)

	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		var err error
		if cfg.HTTP.CertFile != "" && cfg.HTTP.KeyFile != "" {
			log.Printf("[INFO] listening on https://%s", addr)
			err = srv.ListenAndServeTLS(cfg.HTTP.CertFile, cfg.HTTP.KeyFile)
		} else {
			log.Printf("[INFO] listening on http://%s", addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("[INFO] shutting down...")

	stopJobs()
	scheduler.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
