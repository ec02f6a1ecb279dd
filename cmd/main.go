package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/tiagfernandes/aldes-bridge/internal/aldes"
	"github.com/tiagfernandes/aldes-bridge/internal/coordinator"
	"github.com/tiagfernandes/aldes-bridge/internal/handlers"
	"github.com/tiagfernandes/aldes-bridge/internal/logger"
	"github.com/tiagfernandes/aldes-bridge/internal/server"
	"github.com/tiagfernandes/aldes-bridge/internal/service"
)

// @title        Aldes Bridge API
// @version      1.0
// @description  Local REST bridge for Aldes T.One AquaAir devices.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// load config.yml
	if err := loadConfig(); err != nil {
		panic("error reading config: " + err.Error())
	}

	// init logger
	log := logger.Get(viper.GetString("log_level"))

	// wire dependencies
	client := aldes.NewClient(
		viper.GetString("aldes.username"),
		viper.GetString("aldes.password"),
		log,
	)
	defer client.Close()

	coord := coordinator.New(client, log, pollOptions()...)

	services := service.NewService(client, coord, service.AuthConfig{
		Username:     viper.GetString("auth.username"),
		PasswordHash: viper.GetString("auth.password_hash"),
		SigningKey:   viper.GetString("auth.signing_key"),
		TokenTTL:     viper.GetDuration("auth.token_ttl"),
	}, log)
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start polling
	go coord.Run(ctx)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	viper.SetEnvPrefix("aldes_bridge")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	return viper.ReadInConfig()
}

func pollOptions() []coordinator.Option {
	var opts []coordinator.Option
	if d := viper.GetDuration("poll_interval"); d > 0 {
		opts = append(opts, coordinator.WithInterval(d))
	}
	return opts
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
