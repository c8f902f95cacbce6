package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/DwijAcharyaPsspl/pdf-viewer-server/internal/config"
	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/server"
	"github.com/DwijAcharyaPsspl/pdf-viewer-server/pkg/store"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the PDF viewer server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.ConfigFileName,
		"path to the configuration file")

	return cmd
}

func runServe(configPath string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return err
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Address = ":" + port
	}

	var opts []server.Option
	if cfg.Store.Backend == "s3" {
		st, err := s3PageStore(cfg)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithStore(st))
	}

	srv, err := server.New(cfg, logger, opts...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	return srv.Shutdown(context.Background())
}

// s3PageStore builds the S3 page store from configuration. Credentials
// come from the SDK's default environment chain.
func s3PageStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.S3.Bucket == "" {
		return nil, fmt.Errorf("store backend is s3 but no bucket is configured")
	}
	client := s3.New(s3.Options{
		Region:      cfg.Store.S3.Region,
		Credentials: aws.NewCredentialsCache(envCredentials{}),
	})
	return store.NewS3Store(client, cfg.Store.S3.Bucket, cfg.Store.S3.Prefix), nil
}

// envCredentials reads static credentials from the standard AWS
// environment variables.
type envCredentials struct{}

func (envCredentials) Retrieve(ctx context.Context) (aws.Credentials, error) {
	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.Credentials{}, fmt.Errorf("AWS credentials not set in environment")
	}
	return aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "environment",
	}, nil
}
