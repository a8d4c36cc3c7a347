package main

import (
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/pkg/log"
	"github.com/propval/estimo/report"
	"github.com/propval/estimo/session"
)

// app holds state shared by the subcommands.
type app struct {
	v       *viper.Viper
	profile interface{ Stop() }
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	d := session.DefaultConfig()

	root := &cobra.Command{
		Use:          "estimo",
		Short:        "Hybrid random forest + KNN property price estimator",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.profile != nil {
				a.profile.Stop()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (json, yaml or toml)")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console, json, slog")
	pf.Bool("no-color", false, "disable colored output")
	pf.String("profile", "", "write a cpu or mem profile to the working directory")

	pf.Int("n-trees", d.NTrees, "number of trees in the forest")
	pf.Int("max-depth", d.MaxDepth, "maximum depth of forest trees")
	pf.Int("min-samples-split", d.MinSamplesSplit, "minimum samples to split a node")
	pf.Int("k", d.K, "neighbors used by KNN")
	pf.Int("cart-max-depth", d.CARTMaxDepth, "maximum depth of the reference CART tree")
	pf.Float64("test-size", d.TestSize, "held-out fraction (last rows)")
	pf.Int("folds", d.Folds, "cross-validation folds")
	pf.Float64("rf-weight", d.RFWeight, "forest weight in the blend")
	pf.Float64("knn-weight", d.KNNWeight, "KNN weight in the blend")
	pf.Int64("random-state", d.RandomState, "bootstrap seed (negative: random)")
	pf.Int("n-jobs", d.NJobs, "worker pool size (0: all CPUs)")

	pf.VisitAll(func(f *pflag.Flag) {
		cobra.CheckErr(a.v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f))
	})

	root.AddCommand(
		newTrainCmd(a),
		newCVCmd(a),
		newPredictCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup() error {
	a.v.SetEnvPrefix("estimo")
	a.v.AutomaticEnv()
	session.SetDefaults(a.v)

	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	if err := log.SetupLogger(os.Stderr, a.v.GetString("log_format"), a.v.GetString("log_level")); err != nil {
		return err
	}
	if a.v.GetBool("no_color") {
		color.NoColor = true
	}

	switch mode := a.v.GetString("profile"); mode {
	case "":
	case "cpu":
		a.profile = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet)
	case "mem":
		a.profile = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet)
	default:
		return errors.NewValidationError("profile", "must be cpu or mem", mode)
	}
	return nil
}

// config returns the validated session settings.
func (a *app) config() (session.Config, error) {
	return session.ConfigFromViper(a.v)
}

func (a *app) printer(cmd *cobra.Command) *report.Printer {
	return report.NewPrinter(cmd.OutOrStdout(), !color.NoColor)
}
