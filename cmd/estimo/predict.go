package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/session"
)

func parseFeatures(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.NewValueError("predict", "feature "+strconv.Itoa(i)+": "+strconv.Quote(p)+" is not a number")
		}
		out[i] = v
	}
	return out, nil
}

func newPredictCmd(a *app) *cobra.Command {
	var (
		models   string
		features string
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Estimate the price of one property with saved models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			x, err := parseFeatures(features)
			if err != nil {
				return err
			}
			s, err := session.New(cfg)
			if err != nil {
				return err
			}
			if err := s.Load(models); err != nil {
				return err
			}
			pred, err := s.Predict(x)
			if err != nil {
				return err
			}
			a.printer(cmd).Prediction(pred)
			return nil
		},
	}
	cmd.Flags().StringVarP(&models, "models", "m", "models_saved", "directory holding rf_model.pb and knn_model.pb")
	cmd.Flags().StringVarP(&features, "features", "f", "", "comma-separated feature values in training column order")
	_ = cmd.MarkFlagRequired("features")
	return cmd
}
