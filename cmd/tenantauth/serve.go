package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tenantAuth "github.com/MrEthical07/tenantAuth"
	"github.com/MrEthical07/tenantAuth/internal/logging"
)

type serveOptions struct {
	listen string
	dev    bool
	users  []string
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP authentication service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.listen, "listen", ":8080", "HTTP listen address")
	cmd.Flags().BoolVar(&opts.dev, "dev", false, "generate a throwaway token secret when none is configured")
	cmd.Flags().StringArrayVar(&opts.users, "user", nil, "seed an in-memory user as tenant:username:password[:ROLE_A,ROLE_B] (repeatable)")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, opts *serveOptions) error {
	var devSecretErr error
	cfg, err := root.loadConfig(func(v *viper.Viper) {
		if opts.dev && v.GetString("token.secret") == "" {
			secret, err := randomSecret()
			if err != nil {
				devSecretErr = err
				return
			}
			v.Set("token.secret", secret)
		}
	})
	if devSecretErr != nil {
		return devSecretErr
	}
	if err != nil {
		return err
	}
	logger := root.leveledLogger(cfg)
	log := logging.WithSubsystem(logger, "cli", "serve")
	if opts.dev {
		log.Warn("cli.serve.dev_mode")
	}

	rdb, closeRedis, err := openRedis(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeRedis()

	users, err := openUsers(cfg, logger)
	if err != nil {
		return err
	}
	defer users.cleanup()
	if err := seedUsers(users, opts.users); err != nil {
		return err
	}

	engine, err := tenantAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users.store).
		WithPermissions(defaultPermissions).
		WithRoles(defaultRoles).
		WithAuditSink(tenantAuth.NewLogAuditSink(logger)).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              opts.listen,
		Handler:           newRouter(engine),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("cli.serve.listening", "addr", opts.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("cli.serve.shutdown")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
