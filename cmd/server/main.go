package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitetrack/backend/internal/config"
	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/internal/services"
	"github.com/sitetrack/backend/internal/utils"
	"github.com/sitetrack/backend/pkg/logger"
	"github.com/spf13/cobra"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "server",
		Short:   "SiteTrack construction site tracking API",
		Version: Version,
		RunE:    runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to config.yaml")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)
	return cfg, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := models.InitDB(&cfg.Database); err != nil {
				return err
			}
			pending, err := models.PendingMigrations(models.GetDB())
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("Schema is up to date")
				return nil
			}
			if err := models.Migrate(models.GetDB()); err != nil {
				return err
			}
			fmt.Printf("Applied migrations %v\n", pending)
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var name, phone, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an Admin employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := models.InitDB(&cfg.Database); err != nil {
				return err
			}
			if err := models.Migrate(models.GetDB()); err != nil {
				return err
			}

			emp, err := services.NewEmployeeService(models.GetDB()).Create(cmd.Context(), &services.CreateEmployeeRequest{
				Name:     name,
				Phone:    phone,
				Password: password,
				Role:     string(models.RoleAdmin),
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created admin %q (id %d)\n", emp.Name, emp.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&phone, "phone", "", "login phone number")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	utils.SetJWTSecret(cfg.JWT.Secret)

	app, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer app.shutdown()

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	registerRoutes(r, app)

	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
