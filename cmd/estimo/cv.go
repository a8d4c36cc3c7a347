package main

import (
	"github.com/spf13/cobra"

	"github.com/propval/estimo/core/model"
	"github.com/propval/estimo/model_selection"
	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/session"
)

func factoryFor(name string, cfg session.Config, s *session.Session) (model_selection.EstimatorFactory, error) {
	switch name {
	case "rf":
		return func() model.Estimator { return cfg.NewForest() }, nil
	case "knn":
		return func() model.Estimator { return cfg.NewKNN() }, nil
	case "cart":
		return func() model.Estimator { return cfg.NewCART() }, nil
	case "hybrid":
		return s.HybridFactory(), nil
	default:
		return nil, errors.NewValidationError("model", "must be rf, knn, cart or hybrid", name)
	}
}

func newCVCmd(a *app) *cobra.Command {
	var (
		data   dataFlags
		models []string
	)
	cmd := &cobra.Command{
		Use:   "cv",
		Short: "K-fold cross-validation (score = 100 - MAPE)",
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

			p := a.printer(cmd)
			for _, name := range models {
				factory, err := factoryFor(name, cfg, s)
				if err != nil {
					return err
				}
				res, err := model_selection.CrossValidate(cmd.Context(), factory, ds.X, ds.Y, cfg.Folds,
					model_selection.WithWorkers(cfg.NJobs))
				if err != nil {
					return errors.Wrapf(err, "%s", name)
				}
				p.CrossValidation(name, res)
			}
			return nil
		},
	}
	data.register(cmd)
	cmd.Flags().StringSliceVar(&models, "model", []string{"rf", "knn"}, "models to validate: rf, knn, cart, hybrid")
	return cmd
}
