// Package commands contains the Cobra subcommands for the stepforge CLI.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"stepforge/actions"
	"stepforge/api"
	"stepforge/emit"
	"stepforge/engine"
	"stepforge/store"
)

// app bundles everything a subcommand needs, built fresh per invocation from
// the --store/--dsn flags so each command opens and closes its own handle.
type app struct {
	service *api.Service
	store   store.Store
}

func (a *app) Close() error {
	return a.store.Close()
}

// NewRootCommand constructs the stepforge root Cobra command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stepforge",
		Short:         "stepforge runs durable, crash-safe workflows",
		Long:          "stepforge is a durable workflow execution engine: define a DAG of steps, start a run, and it survives process restarts by replaying from committed idempotency keys.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("store", "memory", "persistence backend: memory, sqlite, or mysql")
	cmd.PersistentFlags().String("dsn", "stepforge.db", "sqlite file path or mysql DSN, depending on --store")
	cmd.PersistentFlags().Bool("tracing", false, "emit an OpenTelemetry span per step event, in addition to the log emitter")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the stepforge version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "stepforge version 0.1.0")
		},
	})

	cmd.AddCommand(newApplyCommand())
	cmd.AddCommand(newStartCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newDemoCommand())

	return cmd
}

// openApp opens the store named by --store, runs Recovery once, and returns
// a ready-to-use app. Recovery must complete before any command is allowed
// to call into the Service, so a crash mid-run is resumed before a new
// request could observe a RUNNING run with no live worker.
func openApp(cmd *cobra.Command) (*app, error) {
	storeKind, err := cmd.Flags().GetString("store")
	if err != nil {
		return nil, err
	}
	dsn, err := cmd.Flags().GetString("dsn")
	if err != nil {
		return nil, err
	}

	tracing, err := cmd.Flags().GetBool("tracing")
	if err != nil {
		return nil, err
	}

	st, err := openStore(storeKind, dsn)
	if err != nil {
		return nil, err
	}

	var emitter emit.Emitter = emit.NewLogEmitter(os.Stderr, false)
	if tracing {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		tracer := otel.Tracer("stepforge")
		emitter = emit.NewMultiEmitter(emitter, emit.NewOTelEmitter(tracer))
	}

	metrics := engine.NewMetrics(prometheus.DefaultRegisterer)
	executor := engine.NewStepExecutor(st, actions.NewRegistry(), nil, emitter, metrics)
	worker := engine.NewRunWorker(st, executor, metrics)
	supervisor := engine.NewSupervisor(worker)

	recovery := engine.NewRecovery(st, supervisor)
	if err := recovery.Run(context.Background()); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("recovery: %w", err)
	}

	return &app{service: api.NewService(st, supervisor), store: st}, nil
}

func openStore(kind, dsn string) (store.Store, error) {
	switch kind {
	case "memory", "":
		return store.NewMemStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(dsn)
	case "mysql":
		return store.NewMySQLStore(dsn)
	default:
		return nil, fmt.Errorf("unknown --store %q: want memory, sqlite, or mysql", kind)
	}
}
