package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/as-progression-tracker/internal/app"
	"github.com/as-progression-tracker/internal/classifier"
	"github.com/as-progression-tracker/internal/config"
	"github.com/as-progression-tracker/internal/domain"
	"github.com/as-progression-tracker/internal/history"
	"github.com/as-progression-tracker/internal/logging"
	"github.com/as-progression-tracker/internal/setup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "astrack",
		Short:         "Active surveillance progression tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: search ., ./config, /etc/as-tracker/)")

	root.AddCommand(newPredictCmd(&configPath))
	root.AddCommand(newCheckModelCmd())
	root.AddCommand(newMCPRegisterCmd(), newMCPStatusCmd())
	return root
}

func loadConfig(path string) (*domain.Config, error) {
	manager, err := config.NewManagerFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := manager.Validate(); err != nil {
		return nil, err
	}
	return manager.GetConfig(), nil
}

func newPredictCmd(configPath *string) *cobra.Command {
	var historyPath, modelPath string
	var threshold float64

	cmd := &cobra.Command{
		Use:   "predict --history <file.yaml>",
		Short: "Replay a recorded visit history and print the progression verdict",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if historyPath == "" {
				return fmt.Errorf("--history is required")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if modelPath != "" {
				cfg.Classifier.Backend = domain.BackendArtifact
				cfg.Classifier.ArtifactPath = modelPath
			}
			if cmd.Flags().Changed("threshold") {
				cfg.Classifier.Threshold = threshold
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			logger, err := logging.NewLogger(logging.ForStdio(cfg.Logging))
			if err != nil {
				return err
			}
			logger.SetLevel(logrus.WarnLevel)

			f, err := history.Load(historyPath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			sess, result, err := history.Replay(ctx, application.Tracker, f)
			if err != nil {
				return err
			}
			derived, err := application.Tracker.Derived(sess)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), len(f.Visits), derived, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&historyPath, "history", "", "YAML visit history")
	cmd.Flags().StringVar(&modelPath, "model", "", "model artifact (overrides classifier config)")
	cmd.Flags().Float64Var(&threshold, "threshold", domain.DefaultDecisionThreshold, "decision threshold in (0,1)")
	return cmd
}

func printResult(w io.Writer, visits int, derived domain.DerivedFeatures, result domain.PredictionResult) {
	_, _ = fmt.Fprintf(w, "visits: %d\n", visits)
	_, _ = fmt.Fprintf(w, "days since first visit: %d\n", derived.DaysSinceFirst)
	if derived.HasPrevious {
		_, _ = fmt.Fprintf(w, "days since previous visit: %d\n", derived.DaysSincePrevious)
	}
	_, _ = fmt.Fprintf(w, "probability: %.4f\n", result.Probability)
	_, _ = fmt.Fprintf(w, "verdict: %s\n", result.Verdict)
	_, _ = fmt.Fprintln(w, result.Message)
}

func newCheckModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-model <artifact.json>",
		Short: "Validate a model artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := classifier.LoadArtifact(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: %s version=%s features=%v\n", args[0], model.Version(), domain.FeatureNames)
			return nil
		},
	}
}

func newMCPRegisterCmd() *cobra.Command {
	var opts setup.RegisterOptions

	cmd := &cobra.Command{
		Use:   "mcp-register",
		Short: "Register the MCP server with the desktop assistant client",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := setup.Register(opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "registered %s in %s\n", setup.ServerName, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ConfigPath, "client-config", "", "client config file (default: platform location)")
	cmd.Flags().StringVar(&opts.BinaryPath, "binary", "", "path to the MCP server binary")
	cmd.Flags().StringVar(&opts.ConfigFile, "tracker-config", "", "tracker config.yaml for the server")
	cmd.Flags().StringVar(&opts.ArtifactPath, "model", "", "model artifact for the server")
	return cmd
}

func newMCPStatusCmd() *cobra.Command {
	var clientConfig string

	cmd := &cobra.Command{
		Use:   "mcp-status",
		Short: "Check the desktop client registration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			issues, err := setup.Check(clientConfig)
			if err != nil {
				return err
			}
			if len(issues) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is registered\n", setup.ServerName)
				return nil
			}
			for _, issue := range issues {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), issue)
			}
			return fmt.Errorf("%d registration issue(s)", len(issues))
		},
	}
	cmd.Flags().StringVar(&clientConfig, "client-config", "", "client config file (default: platform location)")
	return cmd
}
