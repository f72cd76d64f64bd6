package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/sungreong/TaskWeaver/internal/config"
	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "taskweaver",
	Short: "TaskWeaver - project, weekly report and WBS tracking service",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables and exit",
	RunE:  runMigrate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "taskweaver %s (built %s)\n", Version, BuildTime)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap 加载配置并初始化日志
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, zapLogger, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, zapLogger, err := bootstrap()
	if err != nil {
		log.Printf("%v", err)
		return err
	}
	defer zapLogger.Sync()

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Error("Failed to connect to database", zap.Error(err))
		return err
	}
	if err := db.AutoMigrate(entity.AllModels()...); err != nil {
		zapLogger.Error("AutoMigrate failed", zap.Error(err))
		return err
	}
	zapLogger.Info("Migration completed", zap.String("driver", cfg.Database.Driver))
	return nil
}
