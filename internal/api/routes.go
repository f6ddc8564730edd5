package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Auth           service.AuthService
	MFA            service.MFAService
	Clients        service.ClientService
	Sessions       service.SessionService
	Templates      service.TemplateService
	Usage          service.UsageService
	AccessRequests service.AccessRequestService
	Parents        service.ParentService
	Subscriptions  service.SubscriptionService
	Media          service.MediaService
	Reports        service.ReportService
}

// RouterOptions holds the cross-cutting settings of the router.
type RouterOptions struct {
	Tokens         *service.TokenManager
	Logger         *slog.Logger
	AllowedOrigins []string
	// TrustedProxies feeds gin's ClientIP; with none, the peer address is used.
	TrustedProxies []string
	AuthLimiter    *IPRateLimiter
	HealthChecks   []HealthCheck
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(svc Services, opts RouterOptions) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(
		gin.Recovery(),
		RequestIDMiddleware(),
		LoggerMiddleware(opts.Logger),
		MetricsMiddleware(),
	)
	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders:    []string{requestIDHeader, "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	SetupRoutes(router, svc, opts)
	return router, nil
}

func SetupRoutes(router *gin.Engine, svc Services, opts RouterOptions) {
	authHandler := NewAuthHandler(svc.Auth, svc.MFA)
	clientHandler := NewClientHandler(svc.Clients)
	sessionHandler := NewSessionHandler(svc.Sessions, svc.Media)
	templateHandler := NewTemplateHandler(svc.Templates)
	requestHandler := NewAccessRequestHandler(svc.AccessRequests)
	parentHandler := NewParentHandler(svc.Parents)
	subscriptionHandler := NewSubscriptionHandler(svc.Subscriptions, svc.Usage)
	mediaHandler := NewMediaHandler(svc.Media)
	reportHandler := NewReportHandler(svc.Reports)
	healthHandler := NewHealthHandler(opts.HealthChecks...)

	authMiddleware := AuthMiddleware(opts.Tokens)
	therapistOnly := RoleMiddleware(domain.RoleTherapist)
	parentOnly := RoleMiddleware(domain.RoleParent)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")

	// --- Public auth routes, rate limited per IP ---
	publicAuth := apiGroup.Group("/auth")
	if opts.AuthLimiter != nil {
		publicAuth.Use(RateLimitMiddleware(opts.AuthLimiter))
	}
	{
		publicAuth.POST("/register", authHandler.Register)
		publicAuth.POST("/login", authHandler.Login)
		publicAuth.POST("/login/mfa", authHandler.LoginMFA)
		publicAuth.POST("/google", authHandler.GoogleLogin)
		publicAuth.POST("/forgot-password", authHandler.ForgotPassword)
		publicAuth.POST("/reset-password", authHandler.ResetPassword)
	}

	// Stripe calls this without a JWT; the signature authenticates it.
	apiGroup.POST("/subscription/webhook", subscriptionHandler.Webhook)

	protected := apiGroup.Group("")
	protected.Use(authMiddleware)

	// --- Account ---
	account := protected.Group("/auth")
	{
		account.GET("/me", authHandler.Me)
		account.POST("/change-password", authHandler.ChangePassword)
		account.POST("/mfa/setup", authHandler.SetupMFA)
		account.POST("/mfa/enable", authHandler.EnableMFA)
		account.POST("/mfa/disable", authHandler.DisableMFA)
	}

	// --- Client Routes ---
	clients := protected.Group("/clients", therapistOnly)
	{
		clients.GET("", clientHandler.ListClients)
		clients.POST("", clientHandler.CreateClient)
		clients.GET("/:clientId", clientHandler.GetClient)
		clients.PUT("/:clientId", clientHandler.UpdateClient)
		clients.DELETE("/:clientId", clientHandler.DeleteClient)

		clients.POST("/:clientId/goals", clientHandler.AddGoal)
		clients.PUT("/:clientId/goals/:goalId", clientHandler.UpdateGoal)
		clients.DELETE("/:clientId/goals/:goalId", clientHandler.DeleteGoal)

		clients.GET("/:clientId/parents", clientHandler.ListParents)
		clients.DELETE("/:clientId/parents/:parentId", clientHandler.UnlinkParent)
	}

	// --- Session Routes ---
	sessions := protected.Group("/sessions", therapistOnly)
	{
		sessions.GET("", sessionHandler.ListSessions)
		sessions.POST("", sessionHandler.CreateSession)
		sessions.POST("/from-template", sessionHandler.CreateFromTemplate)
		sessions.GET("/:sessionId", sessionHandler.GetSession)
		sessions.PUT("/:sessionId", sessionHandler.UpdateSession)
		sessions.DELETE("/:sessionId", sessionHandler.DeleteSession)
		sessions.GET("/:sessionId/media", sessionHandler.ListSessionMedia)
	}

	// --- Template Routes ---
	templates := protected.Group("/templates", therapistOnly)
	{
		templates.GET("", templateHandler.ListTemplates)
		templates.POST("", templateHandler.CreateTemplate)
		templates.GET("/:templateId", templateHandler.GetTemplate)
		templates.PUT("/:templateId", templateHandler.UpdateTemplate)
		templates.DELETE("/:templateId", templateHandler.DeleteTemplate)
	}

	// --- Usage and Billing ---
	protected.GET("/usage", therapistOnly, subscriptionHandler.GetUsage)
	billing := protected.Group("/subscription", therapistOnly)
	{
		billing.GET("", subscriptionHandler.GetStatus)
		billing.POST("/checkout", subscriptionHandler.Checkout)
		billing.POST("/portal", subscriptionHandler.Portal)
	}

	// --- Access Requests ---
	requests := protected.Group("/accessrequests")
	{
		requests.POST("", parentOnly, requestHandler.CreateRequest)
		requests.GET("/mine", parentOnly, requestHandler.ListMine)
		requests.DELETE("/:requestId", parentOnly, requestHandler.CancelRequest)

		requests.GET("/incoming", therapistOnly, requestHandler.ListIncoming)
		requests.POST("/:requestId/approve", therapistOnly, requestHandler.ApproveRequest)
		requests.POST("/:requestId/reject", therapistOnly, requestHandler.RejectRequest)
	}

	// --- Parent Portal ---
	parent := protected.Group("/parent", parentOnly)
	{
		parent.GET("/clients", parentHandler.ListClients)
		parent.GET("/clients/:clientId", parentHandler.GetClient)
		parent.GET("/clients/:clientId/sessions", parentHandler.ListSessions)
	}

	// --- Media ---
	media := protected.Group("/media")
	{
		media.POST("/upload-url", therapistOnly, mediaHandler.RequestUploadURL)
		media.POST("", therapistOnly, mediaHandler.ConfirmUpload)
		media.GET("/:mediaId/url", RoleMiddleware(domain.RoleTherapist, domain.RoleParent), mediaHandler.GetDownloadURL)
		media.DELETE("/:mediaId", therapistOnly, mediaHandler.DeleteMedia)
	}

	// --- Reports ---
	protected.GET("/reports/clients/:clientId", therapistOnly, reportHandler.ClientProgress)
}
