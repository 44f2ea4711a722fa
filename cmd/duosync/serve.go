package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GetStream/duosync/api"
	"github.com/GetStream/duosync/api/validator"
	"github.com/GetStream/duosync/feed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local sync daemon",
	Long: `serve loads the conversation and the inbox, keeps them fresh by polling the
backend and exposes them over a local HTTP API together with Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			conf.Server.Addr = addr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := feed.NewMetrics(reg)

		s, err := openSession(ctx, conf, logger, metrics, feed.FilterAll)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.requireConversation(); err != nil {
			return err
		}

		if err := s.conv.Load(ctx); err != nil {
			logger.Error("Could not load conversation", "error", err.Error())
		}
		if err := s.inbox.Load(ctx); err != nil {
			logger.Error("Could not load inbox", "error", err.Error())
		}

		srv := &http.Server{
			Addr: conf.Server.Addr,
			Handler: &api.API{
				Logger:       logger,
				Conversation: s.conv,
				Inbox:        s.inbox,
				Engine:       s.engine,
				Val:          validator.New(),
				Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			},
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("Listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			poll(ctx, s, conf.Feed.PollInterval)
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

// poll refreshes both views every interval until ctx is done. A zero interval disables
// polling.
func poll(ctx context.Context, s *session, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := s.conv.Refresh(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("Could not refresh conversation", "error", err.Error())
		}
		if err := s.inbox.Refresh(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("Could not refresh inbox", "error", err.Error())
		}
	}
}
