package main

import (
	"github.com/spf13/cobra"

	"github.com/propval/estimo/dataset"
	"github.com/propval/estimo/report"
	"github.com/propval/estimo/session"
)

type dataFlags struct {
	path    string
	target  string
	shuffle int64
}

func (d *dataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&d.path, "data", "d", "", "CSV file with a header row")
	cmd.Flags().StringVarP(&d.target, "target", "t", "Price", "target column")
	cmd.Flags().Int64Var(&d.shuffle, "shuffle", -1, "shuffle rows with this seed before splitting (negative: keep file order)")
	_ = cmd.MarkFlagRequired("data")
}

func (d *dataFlags) load() (*dataset.Dataset, error) {
	ds, err := dataset.LoadCSVFile(d.path, d.target)
	if err != nil {
		return nil, err
	}
	if d.shuffle >= 0 {
		ds = ds.Shuffle(uint64(d.shuffle))
	}
	return ds, nil
}

func newTrainCmd(a *app) *cobra.Command {
	var (
		data   dataFlags
		models string
		plot   string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train (or load) the forest and KNN models and print the held-out comparison",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			ds, err := data.load()
			if err != nil {
				return err
			}
			s, err := session.New(cfg)
			if err != nil {
				return err
			}
			s.SetFeatureNames(ds.Features)

			var r *session.EvaluationReport
			if force {
				if r, err = s.Train(cmd.Context(), ds.X, ds.Y); err == nil {
					err = s.Save(models)
				}
			} else {
				r, err = s.LoadOrTrain(cmd.Context(), models, ds.X, ds.Y)
			}
			if err != nil {
				return err
			}

			a.printer(cmd).Evaluation(r)
			if plot != "" {
				return report.PlotPredictions(plot, r.YTrue, r.Predictions)
			}
			return nil
		},
	}
	data.register(cmd)
	cmd.Flags().StringVarP(&models, "models", "m", "models_saved", "directory holding rf_model.pb and knn_model.pb")
	cmd.Flags().StringVar(&plot, "plot", "", "write a predicted-vs-actual plot (png, svg or pdf)")
	cmd.Flags().BoolVar(&force, "retrain", false, "train even if saved models exist")
	return cmd
}
