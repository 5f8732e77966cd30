package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/anjiri1684/course_certificates/configs"
	"github.com/anjiri1684/course_certificates/database"
	"github.com/anjiri1684/course_certificates/handlers"
	"github.com/anjiri1684/course_certificates/jobs"
	"github.com/anjiri1684/course_certificates/logger"
	"github.com/anjiri1684/course_certificates/notifications"
	"github.com/anjiri1684/course_certificates/routes"
	"github.com/anjiri1684/course_certificates/services"
	"github.com/anjiri1684/course_certificates/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	settings := config.Load()

	log, err := logger.New(settings.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if settings.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	db, err := database.ConnectDB(settings.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to migrate database", "error", err)
	}
	if seeded, err := database.SeedAdmin(db, settings); err != nil {
		log.Fatal("failed to seed admin user", "error", err)
	} else if seeded {
		log.Info("admin user created", "email", settings.AdminEmail)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uploader := artifactUploader(settings, log)
	renderer, err := services.NewArtifactRenderer(uploader, settings.CertificateFontPath)
	if err != nil {
		log.Fatal("failed to load certificate font", "error", err)
	}

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	var mailer notifications.Mailer
	if brevo := notifications.NewBrevoService(settings.BrevoAPIKey, settings.EmailSender, settings.EmailSenderName, ""); brevo != nil {
		mailer = brevo
	} else {
		log.Warn("Brevo is not configured, certificate emails are disabled")
	}
	notifier := notifications.NewCertificateNotifier(mailer, hub, log)

	certificates := services.NewCertificateService(db, renderer, notifier, log, settings.CertificateTemplatePath)

	c := cron.New()
	if _, err := c.AddFunc(settings.AuditSchedule, jobs.CertificateAudit(db, log)); err != nil {
		log.Fatal("invalid AUDIT_SCHEDULE", "schedule", settings.AuditSchedule, "error", err)
	}
	c.Start()
	defer c.Stop()
	log.Info("certificate audit scheduled", "schedule", settings.AuditSchedule)

	app := fiber.New(fiber.Config{
		AppName:      "Course Certificates",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			log.Error("request failed", "path", c.Path(), "method", c.Method(), "error", err)
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	if _, ok := uploader.(*services.LocalUploader); ok {
		app.Static(services.LocalArtifactRoute, settings.CertificateStorageDir)
	}

	routes.AuthRoutes(app, handlers.NewAuthHandler(db, settings.JWTSecret, log))
	routes.CertificateRoutes(app, handlers.NewCertificateHandler(certificates, log), settings.JWTSecret)
	routes.RealtimeRoutes(app, handlers.NewRealtimeHandler(hub, settings.JWTSecret, log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Info("server starting", "port", settings.Port)
	if err := app.Listen(":" + settings.Port); err != nil {
		log.Fatal("server failed to start", "error", err)
	}
}

func artifactUploader(settings config.Settings, log *logger.Logger) services.Uploader {
	if settings.CloudinaryURL != "" {
		up, err := services.NewCloudinaryUploader(settings.CloudinaryURL)
		if err == nil {
			return up
		}
		log.Warn("invalid CLOUDINARY_URL, storing certificates locally", "error", err)
	}
	if err := os.MkdirAll(settings.CertificateStorageDir, 0o755); err != nil {
		log.Fatal("failed to create certificate storage dir", "dir", settings.CertificateStorageDir, "error", err)
	}
	return &services.LocalUploader{Dir: settings.CertificateStorageDir, BaseURL: settings.PublicBaseURL}
}
