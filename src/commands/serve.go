package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/theleywin/talentnest-graph/src/connections"
	"github.com/theleywin/talentnest-graph/src/controllers"
	"github.com/theleywin/talentnest-graph/src/delivery"
	"github.com/theleywin/talentnest-graph/src/events"
	"github.com/theleywin/talentnest-graph/src/gateway"
	"github.com/theleywin/talentnest-graph/src/lib"
	"github.com/theleywin/talentnest-graph/src/middleware"
	"github.com/theleywin/talentnest-graph/src/notifications"
	"github.com/theleywin/talentnest-graph/src/routes"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Start the REST API and the push gateway",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := lib.LoadConfig()
			if err != nil {
				return err
			}
			if debug {
				cfg.LogLevel = "debug"
			}
			return serve(cfg)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func serve(cfg lib.Config) error {
	log := lib.NewLogger(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := lib.ConnectDB(cfg.DBPath, log)
	if err != nil {
		return err
	}
	if err := lib.AutoMigrate(db); err != nil {
		return err
	}

	hubOpts := []delivery.Option{delivery.WithSweepInterval(cfg.SweepInterval)}
	var relay *delivery.RedisRelay
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse REDIS_URL")
		}
		client := redis.NewClient(opts)
		defer client.Close()
		relay = delivery.NewRedisRelay(client, cfg.NodeID, log.Named("relay"))
		hubOpts = append(hubOpts, delivery.WithRelay(relay))
	}
	hub := delivery.NewHub(log.Named("delivery"), hubOpts...)

	repo, closeRepo, err := notificationRepository(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc := notifications.NewService(repo, hub, log.Named("notifications"))
	evlog := events.NewLog(db)
	graph := connections.NewGraph(connections.NewStore(db), evlog, svc, log.Named("graph"))

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(fiberrecover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CorsOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	protect := middleware.ProtectRoute(cfg.JWTSecret)
	routes.ConnectionRoutes(app, protect, controllers.NewConnectionController(graph, evlog, log.Named("http")))
	routes.NotificationRoutes(app, protect, controllers.NewNotificationController(svc, log.Named("http")))
	routes.HealthRoutes(app, cfg.NodeID, hub)

	gin.SetMode(gin.ReleaseMode)
	socket := gateway.NewSocketController(hub, svc, cfg.JWTSecret, cfg.PushBuffer, cfg.PushWriteTimeout, log.Named("gateway"))
	push := &http.Server{
		Addr:              ":" + cfg.PushPort,
		Handler:           gateway.NewRouter(socket, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			// without the relay this node still serves its own channels
			relay.Serve(gctx, hub.DeliverLocal)
			return nil
		})
	}
	g.Go(func() error {
		log.Info("REST API listening", zap.String("port", cfg.Port), zap.String("node", cfg.NodeID))
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		log.Info("push gateway listening", zap.String("port", cfg.PushPort))
		if err := push.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := push.Shutdown(shutdownCtx); err != nil {
			log.Warn("push gateway shutdown", zap.Error(err))
		}
		return app.ShutdownWithContext(shutdownCtx)
	})

	return g.Wait()
}

// notificationRepository opens the store selected by NOTIFICATION_STORE
func notificationRepository(ctx context.Context, cfg lib.Config, db *gorm.DB, log *zap.Logger) (notifications.Repository, func(), error) {
	if cfg.NotificationStore != "mongo" {
		return notifications.NewSQLRepository(db), func() {}, nil
	}

	repo, err := notifications.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, nil, err
	}
	log.Info("notifications stored in MongoDB", zap.String("database", cfg.MongoDatabase))
	return repo, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := repo.Close(closeCtx); err != nil {
			log.Warn("mongo disconnect", zap.Error(err))
		}
	}, nil
}
