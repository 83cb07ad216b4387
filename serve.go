package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"leadsdash/config"
	"leadsdash/locales"
	"leadsdash/metrics"
	"leadsdash/server"
	"leadsdash/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard web server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	utils.Log.SetLevel(utils.ParseLogLevel(cfg.Server.LogLevel))
	utils.Log.Info("Initializing leadsdash %s...", version)

	if err := utils.InitI18n(locales.FS); err != nil {
		return err
	}

	store, err := server.OpenStorage(cfg)
	if err != nil {
		return err
	}

	srv := server.New(cfg, store, metrics.New())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		srv.Shutdown()
		return err
	case sig := <-quit:
		utils.Log.Info("Received %s, shutting down", sig)
	}

	return srv.Shutdown()
}
