package server

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/invoicer/internal/auth/token"
	clientdomain "github.com/smallbiznis/invoicer/internal/client/domain"
	"github.com/smallbiznis/invoicer/internal/config"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	templatedomain "github.com/smallbiznis/invoicer/internal/invoicetemplate/domain"
	"github.com/smallbiznis/invoicer/internal/observability"
	obsmiddleware "github.com/smallbiznis/invoicer/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoicer/internal/observability/metrics"
	obstracing "github.com/smallbiznis/invoicer/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/invoicer/internal/payment/domain"
	"github.com/smallbiznis/invoicer/internal/ratelimit"
	reminderdomain "github.com/smallbiznis/invoicer/internal/reminder/domain"
	"github.com/smallbiznis/invoicer/internal/reminder/sweep"
	userdomain "github.com/smallbiznis/invoicer/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonTagName)
	}
}

func jsonTagName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

type EngineConfig struct {
	Debug       bool
	CORSOrigins []string
}

func NewEngine(cfg EngineConfig, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           cfg.Debug,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", cronSecretHeader, "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(EngineConfig{
		Debug:       obsCfg.Debug(),
		CORSOrigins: cfg.CORSOrigins,
	}, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	tokens      *token.Manager
	authLimiter *ratelimit.AuthLimiter

	userSvc     userdomain.Service
	clientSvc   clientdomain.Service
	templateSvc templatedomain.Service
	invoiceSvc  invoicedomain.Service
	paymentSvc  paymentdomain.Service
	reminderSvc reminderdomain.Service
	sweeper     sweep.Runner
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Tokens      *token.Manager
	AuthLimiter *ratelimit.AuthLimiter `optional:"true"`

	UserSvc     userdomain.Service
	ClientSvc   clientdomain.Service
	TemplateSvc templatedomain.Service
	InvoiceSvc  invoicedomain.Service
	PaymentSvc  paymentdomain.Service
	ReminderSvc reminderdomain.Service
	Sweeper     sweep.Runner
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		tokens:      p.Tokens,
		authLimiter: p.AuthLimiter,
		userSvc:     p.UserSvc,
		clientSvc:   p.ClientSvc,
		templateSvc: p.TemplateSvc,
		invoiceSvc:  p.InvoiceSvc,
		paymentSvc:  p.PaymentSvc,
		reminderSvc: p.ReminderSvc,
		sweeper:     p.Sweeper,
	}

	s.registerAuthRoutes()
	s.registerAPIRoutes()
	s.registerFallback()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/api/auth")

	auth.POST("/register", s.AuthRateLimit("register"), s.Register)
	auth.POST("/login", s.AuthRateLimit("login"), s.Login)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.PATCH("/me", s.AuthRequired(), s.UpdateProfile)
	auth.PATCH("/password", s.AuthRequired(), s.ChangePassword)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// Cron callers authenticate with the shared secret, not a user token.
	api.POST("/reminders/run", s.CronSecretRequired(), s.RunReminders)

	authed := api.Group("", s.AuthRequired())

	// -------- Clients --------
	authed.GET("/clients", s.ListClients)
	authed.POST("/clients", s.CreateClient)
	authed.GET("/clients/:id", s.GetClient)
	authed.PUT("/clients/:id", s.UpdateClient)
	authed.DELETE("/clients/:id", s.DeleteClient)

	// -------- Templates --------
	authed.GET("/templates", s.ListTemplates)
	authed.POST("/templates", s.CreateTemplate)
	authed.GET("/templates/:id", s.GetTemplate)
	authed.PUT("/templates/:id", s.UpdateTemplate)
	authed.DELETE("/templates/:id", s.DeleteTemplate)

	// -------- Invoices --------
	authed.GET("/invoices", s.ListInvoices)
	authed.POST("/invoices", s.CreateInvoice)
	authed.GET("/invoices/next-number", s.NextInvoiceNumber)
	authed.GET("/invoices/:id", s.GetInvoice)
	authed.PUT("/invoices/:id", s.UpdateInvoice)
	authed.DELETE("/invoices/:id", s.DeleteInvoice)
	authed.PATCH("/invoices/:id/status", s.UpdateInvoiceStatus)
	authed.GET("/invoices/:id/balance", s.GetInvoiceBalance)
	authed.GET("/invoices/:id/pdf", s.DownloadInvoicePDF)
	authed.POST("/invoices/:id/send-email", s.SendInvoiceEmail)

	// -------- Payments --------
	authed.GET("/invoices/:id/payments", s.ListPayments)
	authed.POST("/invoices/:id/payments", s.RecordPayment)

	// -------- Reminders --------
	authed.GET("/invoices/:id/reminders", s.ListReminderLogs)
	authed.GET("/reminder-rules", s.ListReminderRules)
	authed.POST("/reminder-rules", s.CreateReminderRule)
	authed.PUT("/reminder-rules/:id", s.UpdateReminderRule)
	authed.DELETE("/reminder-rules/:id", s.DeleteReminderRule)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
