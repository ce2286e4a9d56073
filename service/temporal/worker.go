package temporal

import (
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/gabrielcipriano/bittensor-explorer/service/metrics"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	TemporalHost      string
	TemporalNamespace string
	TaskQueue         string

	Store     StoreInterface
	PriceFeed PriceFeedInterface
	Publisher PublisherInterface
	Metrics   *metrics.Metrics // Optional: if nil, no metrics will be recorded
	Logger    *slog.Logger
}

// Worker wraps a Temporal worker and provides lifecycle management.
type Worker struct {
	client client.Client
	worker worker.Worker
	logger *slog.Logger
}

// NewWorker creates and configures a new Temporal worker.
func NewWorker(config WorkerConfig) (*Worker, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := config.Logger.With("component", "temporal_worker")

	logger.Info("creating temporal worker",
		"host", config.TemporalHost,
		"namespace", config.TemporalNamespace,
		"task_queue", config.TaskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  config.TemporalHost,
		Namespace: config.TemporalNamespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}

	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     10,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})
	register(w, NewActivities(config.Store, config.PriceFeed, config.Publisher, config.Metrics, logger))
	logger.Info("registered workflow and activities", "workflow", "RefreshTokenStatsWorkflow")

	return &Worker{client: c, worker: w, logger: logger}, nil
}

// registry is the subset of worker.Worker used for registration, shared with tests.
type registry interface {
	RegisterWorkflow(w interface{})
	RegisterActivity(a interface{})
}

func register(r registry, activities *Activities) {
	r.RegisterWorkflow(RefreshTokenStatsWorkflow)
	r.RegisterActivity(activities.FetchTokenStats)
	r.RegisterActivity(activities.SaveTokenStats)
	r.RegisterActivity(activities.PublishTokenStats)
	r.RegisterActivity(activities.PruneTokenStats)
	r.RegisterActivity(activities.RecordRefreshRun)
}

// Start begins processing workflows and activities.
// This method blocks until Stop is called or an interrupt is received.
func (w *Worker) Start() error {
	w.logger.Info("starting temporal worker")
	if err := w.worker.Run(worker.InterruptCh()); err != nil {
		w.logger.Error("worker stopped with error", "error", err)
		return fmt.Errorf("worker stopped with error: %w", err)
	}
	w.logger.Info("worker stopped gracefully")
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping temporal worker")
	w.worker.Stop()
	w.client.Close()
}
