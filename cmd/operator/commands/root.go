// Package commands defines the operator's command line and wires the
// controller-runtime manager.
package commands

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/imamik/kafka-operator/api/v1alpha1"
	"github.com/imamik/kafka-operator/internal/operator/config"
	"github.com/imamik/kafka-operator/internal/operator/controller"
)

var setupLog = ctrl.Log.WithName("setup")

// runOptions are the flags of the root command.
type runOptions struct {
	metricsAddr      string
	probeAddr        string
	leaderElect      bool
	leaderElectionID string
	configPath       string
	zap              zap.Options
}

// Root returns the root command, which runs the operator.
func Root() *cobra.Command {
	opts := &runOptions{
		zap: zap.Options{Development: os.Getenv("DEBUG") == "true"},
	}

	cmd := &cobra.Command{
		Use:           "kafka-operator",
		Short:         "Reconcile KafkaCluster resources into running Kafka clusters",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(ctrl.SetupSignalHandler(), opts)
		},
	}
	bindFlags(cmd, opts)

	cmd.AddCommand(Version())
	return cmd
}

func bindFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.metricsAddr, "metrics-bind-address", ":8080", "The address the metric endpoint binds to.")
	f.StringVar(&opts.probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	f.BoolVar(&opts.leaderElect, "leader-elect", true, "Enable leader election for controller manager.")
	f.StringVar(&opts.leaderElectionID, "leader-election-id", "kafka-operator", "The name of the leader election resource.")
	f.StringVar(&opts.configPath, "config", "", "Path to a YAML file overriding the operator configuration.")

	zapFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	opts.zap.BindFlags(zapFlags)
	f.AddGoFlagSet(zapFlags)
}

// loadConfig reads the environment, then the optional file on top of it.
func loadConfig(path string) (config.Config, error) {
	cfg := config.FromEnv()
	if path != "" {
		return config.LoadFile(path, cfg)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// managerOptions restricts the cache to the watched namespaces, if any.
func managerOptions(cfg config.Config, opts *runOptions) ctrl.Options {
	mgrOpts := ctrl.Options{
		Scheme: v1alpha1.Scheme,
		Metrics: metricsserver.Options{
			BindAddress: opts.metricsAddr,
		},
		HealthProbeBindAddress:        opts.probeAddr,
		LeaderElection:                opts.leaderElect,
		LeaderElectionID:              opts.leaderElectionID,
		LeaderElectionReleaseOnCancel: true,
	}
	if !cfg.WatchesAllNamespaces() {
		namespaces := make(map[string]cache.Config, len(cfg.Namespaces))
		for _, ns := range cfg.Namespaces {
			namespaces[ns] = cache.Config{}
		}
		mgrOpts.Cache = cache.Options{DefaultNamespaces: namespaces}
	}
	return mgrOpts
}

func run(ctx context.Context, opts *runOptions) error {
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts.zap)))
	setupLog.Info("starting kafka-operator", "version", version)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	setupLog.Info("loaded configuration", "scopes", cfg.Scopes(), "fullReconciliationInterval", cfg.FullReconciliationInterval)

	restConfig, err := ctrl.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	mgr, err := ctrl.NewManager(restConfig, managerOptions(cfg, opts))
	if err != nil {
		return fmt.Errorf("unable to create manager: %w", err)
	}

	r := controller.NewClusterReconciler(
		mgr.GetClient(),
		mgr.GetScheme(),
		mgr.GetEventRecorderFor("kafka-operator"),
		controller.WithConfig(cfg),
	)
	if err := r.SetupWithManager(mgr); err != nil {
		return fmt.Errorf("unable to create controller KafkaCluster: %w", err)
	}
	periodic := controller.NewPeriodicReconciler(r.Driver(), cfg.Scopes(), cfg.FullReconciliationInterval, clock.RealClock{})
	if err := mgr.Add(periodic); err != nil {
		return fmt.Errorf("unable to add periodic reconciliation: %w", err)
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		return fmt.Errorf("unable to set up health check: %w", err)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		return fmt.Errorf("unable to set up ready check: %w", err)
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("problem running manager: %w", err)
	}
	return nil
}
