package router

import (
	"time"

	"clubpos/internal/config"
	"clubpos/internal/handler"
	"clubpos/internal/middleware"
	"clubpos/internal/repository"
	"clubpos/internal/service"
	"clubpos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services is the service layer shared by the HTTP router and the background
// workers.
type Services struct {
	Auth        service.AuthService
	Dispositivo service.DispositivoService
	Sync        service.SyncService
	Caja        service.CajaService
	Inventario  service.InventarioService
}

// NewServices wires repositories into services.
// Dependency graph: Handler ← Service ← Repository ← DB
func NewServices(cfg *config.Config, db *gorm.DB) *Services {
	// ── Repositories ─────────────────────────────────────────────────────────
	empleadoRepo := repository.NewEmpleadoRepository(db)
	dispositivoRepo := repository.NewDispositivoRepository(db)
	productoRepo := repository.NewProductoRepository(db)
	movimientoStockRepo := repository.NewMovimientoStockRepository(db)
	ventaRepo := repository.NewVentaRepository(db)
	pendienteRepo := repository.NewVentaPendienteRepository(db)
	cajaRepo := repository.NewCajaRepository(db)
	auditoriaRepo := repository.NewAuditoriaRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	auditoriaSvc := service.NewAuditoriaService(auditoriaRepo)
	inventarioSvc := service.NewInventarioService(productoRepo, movimientoStockRepo)
	cajaSvc := service.NewCajaService(cajaRepo)

	return &Services{
		Auth:        service.NewAuthService(empleadoRepo, cfg),
		Dispositivo: service.NewDispositivoService(dispositivoRepo, empleadoRepo, auditoriaSvc, cfg),
		Sync: service.NewSyncService(ventaRepo, pendienteRepo, productoRepo, empleadoRepo, dispositivoRepo,
			cajaSvc, inventarioSvc, auditoriaSvc, cfg),
		Caja:       cajaSvc,
		Inventario: inventarioSvc,
	}
}

// New returns a configured Gin engine. rdb may be nil: health then reports
// Redis as disabled and retries run inline.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, svcs *Services) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	var dispatcher *worker.Dispatcher
	if rdb != nil {
		dispatcher = worker.NewDispatcher(rdb)
	}

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(svcs.Auth)
	dispositivosH := handler.NewDispositivosHandler(svcs.Dispositivo)
	syncH := handler.NewSyncHandler(svcs.Sync, dispatcher)
	cajaH := handler.NewCajaHandler(svcs.Caja)
	productosH := handler.NewProductosHandler(svcs.Inventario)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))
	if cfg.PrometheusEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	credLimiter := middleware.LoginRateLimiter(20)

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", credLimiter, authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Device credential exchange (public, rate limited)
	pub := r.Group("/v1/dispositivos")
	{
		pub.POST("/pairing/canjear", credLimiter, dispositivosH.CanjearPairing)
		pub.POST("/login-pin", credLimiter, dispositivosH.LoginPIN)
		pub.POST("/quick-start", credLimiter, dispositivosH.QuickStart)
	}

	// Paired terminals
	disp := r.Group("/v1/dispositivo", middleware.DeviceAuth(cfg.JWTSecret))
	{
		disp.POST("/heartbeat", dispositivosH.Heartbeat)
		disp.POST("/sync", syncH.Sync)
		disp.GET("/productos", productosH.Catalogo)
	}

	// Employees and administrators
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		admin := middleware.RequireRole("supervisor", "administrador")
		staff := middleware.RequireRole("cajero", "barra", "supervisor", "administrador")

		dispositivos := v1.Group("/dispositivos", admin)
		{
			dispositivos.POST("", dispositivosH.Crear)
			dispositivos.GET("", dispositivosH.Listar)
			dispositivos.GET("/:id", dispositivosH.Obtener)
			dispositivos.PUT("/:id", dispositivosH.Actualizar)
			dispositivos.DELETE("/:id", dispositivosH.Desactivar)
			dispositivos.PATCH("/:id/reactivar", dispositivosH.Reactivar)
			dispositivos.PUT("/:id/pin", dispositivosH.EstablecerPIN)
			dispositivos.PUT("/:id/empleado", dispositivosH.AsignarEmpleado)
			dispositivos.DELETE("/:id/empleado", dispositivosH.Desvincular)
			dispositivos.POST("/:id/pairing", dispositivosH.GenerarPairing)
		}

		caja := v1.Group("/caja")
		{
			caja.POST("/abrir", staff, cajaH.Abrir)
			caja.POST("/cerrar", staff, cajaH.Cerrar)
			caja.GET("/:id/reporte", staff, cajaH.ObtenerReporte)
			caja.GET("/abiertas", staff, cajaH.Abiertas)
			caja.GET("/historial", admin, cajaH.Historial)
		}

		sync := v1.Group("/sync", admin)
		{
			sync.GET("/pendientes", syncH.ListarPendientes)
			sync.POST("/reintentar", syncH.Reintentar)
			sync.GET("/dlq", syncH.ListarDLQ)
		}

		v1.GET("/productos", staff, productosH.Listar)
		v1.PATCH("/productos/:id/stock", admin, productosH.AjustarStock)
		v1.GET("/productos/:id/movimientos", admin, productosH.Movimientos)
	}

	// Swagger UI only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
