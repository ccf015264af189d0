package cli

import (
	"github.com/commitlabs/commitment-service/internal/api"
	"github.com/commitlabs/commitment-service/internal/auth"
	"github.com/commitlabs/commitment-service/internal/clock"
	"github.com/commitlabs/commitment-service/internal/config"
	"github.com/commitlabs/commitment-service/internal/db"
	dbmodel "github.com/commitlabs/commitment-service/internal/db/model"
	"github.com/commitlabs/commitment-service/internal/events"
	"github.com/commitlabs/commitment-service/internal/observability/metrics"
	"github.com/commitlabs/commitment-service/internal/queue"
	"github.com/commitlabs/commitment-service/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func StartServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-server",
		Short: "Starts the commitment service server",
		Args:  cobra.ExactArgs(0),
		RunE:  startServer,
	}

	return cmd
}

func startServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// load config
	cfgPath := GetConfigPath()
	cfg, err := config.New(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msgf("error while loading config file: %s", cfgPath)
	}

	// create new db client
	dbClient, err := db.New(ctx, cfg.Db)
	if err != nil {
		log.Fatal().Err(err).Msg("error while creating db client")
	}

	if err := dbmodel.Setup(ctx, dbClient.Client(), cfg.Db.DbName); err != nil {
		log.Fatal().Err(err).Msg("error while setting up db model")
	}

	var sink events.Sink = events.NewNoop()
	if cfg.Queue != nil {
		qm, err := queue.NewQueueManager(cfg.Queue)
		if err != nil {
			log.Fatal().Err(err).Msg("error while creating queue manager")
		}
		defer qm.Shutdown()
		sink = qm
	}

	store := db.NewStoreWithMetrics(dbClient)
	svc := services.NewService(cfg, store, auth.NewCallerProvider(), clock.NewSystem(), sink)

	// initialize metrics with the metrics port from config
	metrics.Init(cfg.Metrics.GetMetricsPort())

	svc.StartExpiryChecker(ctx)

	server := api.New(&cfg.Api, svc)
	return server.Start(ctx)
}
