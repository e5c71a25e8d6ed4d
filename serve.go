package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"sagraph/server"
)

func newServeCmd(c *cli) *cobra.Command {
	var dbPath string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Browse a SQLite export over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = c.cfg.Server.DB
			}
			if port == 0 {
				port = c.cfg.Server.Port
			}
			return c.serve(cmd.Context(), dbPath, port)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (default server.db from config)")
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (default server.port from config)")
	return cmd
}

func (c *cli) serve(ctx context.Context, dbPath string, port int) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	app := server.NewApp(db, c.log)
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		c.log.Info("listening", zap.String("addr", srv.Addr), zap.String("db", dbPath))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	c.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
