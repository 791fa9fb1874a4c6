package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	faceproof "github.com/faceproof/faceproof"
	"github.com/faceproof/faceproof/config"
	"github.com/faceproof/faceproof/credential"
	"github.com/faceproof/faceproof/data"
	"github.com/faceproof/faceproof/gateway"
	"github.com/faceproof/faceproof/o11y"
	"github.com/faceproof/faceproof/rpc/awscreds"
	"github.com/faceproof/faceproof/signer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog"
	"github.com/go-chi/traceid"
	"github.com/goware/cachestore/memlru"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
	Get(string) (*http.Response, error)
}

type RPC struct {
	Config     *config.Config
	Log        zerolog.Logger
	Server     *http.Server
	HTTPClient HTTPClient
	Signer     o11y.Signer
	Gateway    *gateway.Client
	Minter     credential.Minter
	Attempts   *data.AttemptTable

	startTime time.Time
	running   int32
}

func New(cfg *config.Config, transport http.RoundTripper) (*RPC, error) {
	client := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
	wrappedClient := o11y.WrapClient(client)

	options := []func(options *awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(wrappedClient),
	}

	if cfg.Endpoints.MetadataServer != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			awscreds.NewProvider(wrappedClient, cfg.Endpoints.MetadataServer),
		))
	}

	if cfg.Endpoints.AWSEndpoint != "" {
		options = append(options, awsconfig.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: cfg.Endpoints.AWSEndpoint}, nil
			}),
		), awsconfig.WithCredentialsProvider(&awscreds.StaticProvider{
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			SessionToken:    "test",
		}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), options...)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		ReadTimeout:       45 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       45 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// KMS requests authenticate as the delegate role, never the base
	// identity.
	delegated := signer.NewDelegatedCredentials(sts.NewFromConfig(awsCfg), cfg.Signer.DelegateRoleARN)
	kmsSigner := signer.NewKMSSigner(
		kms.NewFromConfig(awsCfg, func(o *kms.Options) {
			o.Credentials = delegated
		}),
		delegated,
		cfg.Signer.KMSSigningKey,
		cfg.Signer.ServiceAccount,
		cfg.Gateway.URL,
		cfg.Region,
	)

	cacheBackend := memlru.Backend(1024)
	minter, err := credential.NewJWKMinter(
		cacheBackend,
		secretsmanager.NewFromConfig(awsCfg),
		cfg.Credential.SecretID,
		cfg.Credential.Issuer,
		time.Duration(cfg.Credential.TTLSeconds)*time.Second,
	)
	if err != nil {
		return nil, err
	}

	db := dynamodb.NewFromConfig(awsCfg)

	s := &RPC{
		Log: httplog.NewLogger("verify-broker", httplog.Options{
			LogLevel: zerolog.LevelDebugValue,
		}),
		Config:     cfg,
		Server:     httpServer,
		HTTPClient: wrappedClient,
		Signer:     o11y.NewTracedSigner("signer.KMSSigner", kmsSigner),
		Gateway:    gateway.NewClient(cfg.Gateway.URL, wrappedClient),
		Minter:     minter,
		Attempts:   data.NewAttemptTable(db, cfg.Database.AttemptsTable, data.AttemptIndices{ByUserID: "UserID-Index"}),
		startTime:  time.Now(),
	}

	return s, nil
}

func (s *RPC) Run(ctx context.Context, l net.Listener) error {
	if s.IsRunning() {
		return fmt.Errorf("rpc: already running")
	}

	s.Log.Info().
		Str("op", "run").
		Str("ver", faceproof.VERSION).
		Msgf("-> rpc: started verify broker")

	atomic.StoreInt32(&s.running, 1)
	defer atomic.StoreInt32(&s.running, 0)

	s.Server.Handler = s.Handler()

	// Handle stop signal to ensure clean shutdown
	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	err := s.Server.Serve(l)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *RPC) Stop(timeoutCtx context.Context) {
	if !s.IsRunning() || s.IsStopping() {
		return
	}
	atomic.StoreInt32(&s.running, 2)

	s.Log.Info().Str("op", "stop").Msg("-> rpc: stopping..")
	s.Server.Shutdown(timeoutCtx)
	s.Log.Info().Str("op", "stop").Msg("-> rpc: stopped.")
}

func (s *RPC) IsRunning() bool {
	return atomic.LoadInt32(&s.running) == 1
}

func (s *RPC) IsStopping() bool {
	return atomic.LoadInt32(&s.running) == 2
}

func (s *RPC) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	// Propagate TraceId
	r.Use(traceid.Middleware)

	// HTTP request logger
	r.Use(httplog.RequestLogger(s.Log, []string{"/", "/ping", "/status", "/favicon.ico"}))

	if len(s.Config.Service.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.Config.Service.CORSOrigins,
			AllowedMethods: []string{"POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	// Timeout any request after 28 seconds as Cloudflare has a 30 second limit anyways.
	r.Use(middleware.Timeout(28 * time.Second))

	// Observability middleware
	r.Use(o11y.Middleware())

	// Healthcheck
	r.Use(middleware.PageRoute("/health", http.HandlerFunc(s.healthHandler)))
	r.Use(middleware.PageRoute("/status", http.HandlerFunc(s.statusHandler)))

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/rpc/getToken", s.handleGetToken)
	r.Post("/rpc/validate", s.handleValidate)

	return r
}

func (s *RPC) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"startTime": s.startTime,
		"uptime":    uint64(time.Now().UTC().Sub(s.startTime).Seconds()),
		"ver":       faceproof.VERSION,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(status)
}

func (s *RPC) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
