// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/amirphl/homecare-hr/app/dto"
	"github.com/amirphl/homecare-hr/app/handlers"
	"github.com/amirphl/homecare-hr/app/middleware"
	"github.com/amirphl/homecare-hr/config"
	"github.com/amirphl/homecare-hr/docs"
	"github.com/amirphl/homecare-hr/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const serviceName = "homecare-followup"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app             *fiber.App
	cfg             *config.ProductionConfig
	followUpHandler handlers.FollowUpHandlerInterface
	reportHandler   handlers.ReportHandlerInterface
	authMiddleware  *middleware.AuthMiddleware
	healthChecks    map[string]HealthCheck
	log             logrus.FieldLogger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	followUpHandler handlers.FollowUpHandlerInterface,
	reportHandler handlers.ReportHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	healthChecks map[string]HealthCheck,
	log logrus.FieldLogger,
) *FiberRouter {
	r := &FiberRouter{
		cfg:             cfg,
		followUpHandler: followUpHandler,
		reportHandler:   reportHandler,
		authMiddleware:  authMiddleware,
		healthChecks:    healthChecks,
		log:             log,
	}

	r.app = fiber.New(fiber.Config{
		AppName:      "Home Care Follow-up API",
		ServerHeader: serviceName,
		ErrorHandler: r.errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.log.Info("Setting up routes...")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")

	api.Get("/health", r.healthCheck)

	if r.cfg.Deployment.IsDevelopment() {
		api.Get("/swagger.json", r.serveSwaggerJSON)
		r.log.Info("API documentation enabled for development")
	}

	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	// Cron triggers authenticate with the shared secret
	cron := api.Group("/cron")
	cron.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.CronRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
	}))
	cron.Use(r.authMiddleware.CronAuthenticate())
	cron.Get("/follow-up", r.followUpHandler.RunNurture)
	cron.Get("/sms-follow-up", r.followUpHandler.RunSMSFollowUp)
	cron.Post("/contacts/:uuid/immediate-follow-up", r.followUpHandler.TriggerImmediate)

	reports := api.Group("/reports")
	reports.Use(r.authMiddleware.Authenticate())
	reports.Get("/job-runs", r.reportHandler.ListJobRuns)
	reports.Get("/follow-up-history.xlsx", r.reportHandler.ExportFollowUpHistory)

	r.app.Use(r.notFoundHandler)

	r.log.Info("Routes configured successfully")
}

func (r *FiberRouter) setupMiddleware() {
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: generateRequestID,
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'none'; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// xlsx is already zip-compressed
				return strings.HasSuffix(c.Path(), ".xlsx")
			},
		}))
	}

	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics(r.cfg.Metrics.Path, "/api/v1/health"))
	}

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health" || c.Path() == r.cfg.Metrics.Path
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestid.FromContext(c),
				"event":      "panic",
				"path":       c.Path(),
				"method":     c.Method(),
				"ip":         c.IP(),
			}).Errorf("Recovered from panic: %v", e)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.log.WithField("address", address).Info("Starting server")
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true
	for name, check := range r.healthChecks {
		if err := check(ctx); err != nil {
			healthy = false
			checks[name] = "down"
			r.log.WithError(err).WithField("dependency", name).Warn("Health check failed")
			continue
		}
		checks[name] = "up"
	}

	status := fiber.StatusOK
	message := "Service is healthy"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		message = "Service is degraded"
	}

	return c.Status(status).JSON(dto.APIResponse{
		Success: healthy,
		Message: message,
		Data: fiber.Map{
			"status":    map[bool]string{true: "ok", false: "degraded"}[healthy],
			"timestamp": utils.UTCNow().Unix(),
			"service":   serviceName,
			"checks":    checks,
		},
	})
}

func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	c.Set("Content-Type", "application/json")
	return c.SendString(docs.SwaggerInfo.ReadDoc())
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	requestID := requestid.FromContext(c)
	r.log.WithError(err).WithFields(logrus.Fields{
		"status":     code,
		"request_id": requestID,
		"path":       c.Path(),
	}).Error("Request failed")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

func rateLimitReached(c fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
		Success: false,
		Message: "Too many requests. Please try again later.",
		Error: dto.ErrorDetail{
			Code: "RATE_LIMIT_EXCEEDED",
		},
	})
}

func generateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
