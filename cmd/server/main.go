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

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cropcheck/config"
	"cropcheck/database"
	"cropcheck/logging"
	"cropcheck/router"

	"cropcheck/pkg/auth"
	"cropcheck/pkg/blob"
	"cropcheck/pkg/classifier"
	"cropcheck/pkg/metrics"
	"cropcheck/pkg/recommend"
	"cropcheck/pkg/reference"

	// Auth
	authCtrlImp "cropcheck/pkg/auth/controllerImp"

	// Field
	fieldCtrlImp "cropcheck/pkg/field/controllerImp"
	fieldRepoImp "cropcheck/pkg/field/repositoryImp"
	fieldSvcImp "cropcheck/pkg/field/serviceImp"

	// Inspection
	inspCtrlImp "cropcheck/pkg/inspection/controllerImp"
	inspRepoImp "cropcheck/pkg/inspection/repositoryImp"
	inspSvcImp "cropcheck/pkg/inspection/serviceImp"

	// Reference
	refCtrlImp "cropcheck/pkg/reference/controllerImp"
	refRepoImp "cropcheck/pkg/reference/repositoryImp"

	// Health
	healthCtrlImp "cropcheck/pkg/health/controllerImp"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cropcheck",
		Short:         "Crop inspection rounds, nutrient diagnosis and fertilizer recommendations",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), config.Load())
		},
	}
	root.AddCommand(serveCmd(), seedCmd(), tokenCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), config.Load())
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Load reference nutrients and fertilizers into empty tables",
		Long:  "Loads reference rows from a .csv, .xlsx or .html file, or the built-in defaults when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if len(args) == 1 {
				cfg.ReferenceSeed = args[0]
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := database.Open(cfg, log)
			if err != nil {
				return err
			}
			defer closeDB(db, log)

			s, err := loadSeed(cfg.ReferenceSeed)
			if err != nil {
				return err
			}
			if err := database.SeedReference(db, s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seed source: %d nutrients, %d fertilizers\n", len(s.Nutrients), len(s.Fertilizers))
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "token <uid>",
		Short: "Print a signed identity token for uid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if username == "" {
				username = args[0]
			}
			tok, err := auth.NewHMAC(cfg.JWTSecret, time.Duration(cfg.JWTExpiryDays)*24*time.Hour).Issue(args[0], username)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username claim (defaults to uid)")
	return cmd
}

func loadSeed(path string) (reference.Seed, error) {
	if path == "" {
		return reference.Defaults(), nil
	}
	return reference.LoadSeedFile(path)
}

func closeDB(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("close database", zap.Error(err))
	}
}

func serve(ctx context.Context, cfg config.AppConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) Logger
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.JWTSecret == config.DevJWTSecret {
		log.Warn("JWT_SECRET_KEY not set, signing tokens with the dev secret")
	}

	// 2) DB + migrate + reference data
	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB(db, log)

	seed, err := loadSeed(cfg.ReferenceSeed)
	if err != nil {
		log.Warn("reference seed unreadable, using defaults", zap.String("path", cfg.ReferenceSeed), zap.Error(err))
		seed = reference.Defaults()
	}
	if err := database.SeedReference(db, seed); err != nil {
		return err
	}

	// 3) Blob storage
	store, err := blob.NewLocal(cfg.UploadRoot)
	if err != nil {
		return err
	}

	// 4) Classifier (mock fallback)
	provider := classifier.NewProvider(func() (classifier.Client, error) {
		if cfg.ClassifierEndpoint == "" {
			return classifier.NewMock(), nil
		}
		return classifier.NewHTTP(cfg.ClassifierEndpoint, &http.Client{}), nil
	})
	defer func() {
		if err := provider.Close(); err != nil {
			log.Warn("close classifier", zap.Error(err))
		}
	}()
	if cfg.ClassifierEndpoint == "" {
		log.Warn("CLASSIFIER_ENDPOINT not set, using mock classifier")
	}

	// 5) Services + controllers
	m := metrics.New()
	tokens := auth.NewHMAC(cfg.JWTSecret, time.Duration(cfg.JWTExpiryDays)*24*time.Hour)

	inspSvc := inspSvcImp.NewInspectionService(
		inspRepoImp.New(db),
		store,
		provider,
		recommend.NewEngine(nil, nil, log.Named("recommend")),
		log.Named("inspection"),
		inspSvcImp.Options{
			MaxImages:         cfg.MaxImagesPerRound,
			MaxFileBytes:      cfg.MaxFileBytes,
			ClassifierConf:    cfg.ClassifierConf,
			ClassifierTimeout: cfg.ClassifierTimeout,
			Location:          cfg.Location(),
		},
		inspSvcImp.WithMetrics(m),
	)

	ctl := router.Controllers{
		Auth:       authCtrlImp.NewAuthController(tokens, cfg.EnableDevLogin),
		Field:      fieldCtrlImp.New(fieldSvcImp.NewFieldService(fieldRepoImp.New(db))),
		Inspection: inspCtrlImp.New(inspSvc, cfg.Location()),
		Reference:  refCtrlImp.New(refRepoImp.New(db)),
		Health:     healthCtrlImp.NewHealthCtrl(db, provider, cfg.ClassifierEndpoint),
	}

	// 6) Echo
	e := echo.New()
	e.HideBanner = true
	router.New(e, router.Options{
		Verifier:      tokens,
		DevLogin:      cfg.EnableDevLogin,
		Metrics:       m.Handler(),
		UploadBodyMax: int64(cfg.MaxImagesPerRound+5)*cfg.MaxFileBytes + 1<<20,
		Logger:        log.Named("http"),
	}, ctl)
	if cfg.EnableDevLogin {
		log.Warn("dev login enabled; do not run this in production")
	}

	// 7) Start
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("port", cfg.Port), zap.String("db_driver", cfg.DBDriver))
		errCh <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
