package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/turbolytics/resultset/internal/config"
)

// bindConfigFlag registers --config, overridable with RESULTSET_CONFIG.
func bindConfigFlag(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	cmd.Flags().StringP("config", "c", "", "Path to config file")
	v.BindPFlag("config", cmd.Flags().Lookup("config"))
	v.SetEnvPrefix("RESULTSET")
	v.AutomaticEnv()
	return v
}

func loadConfig(v *viper.Viper, name string) (*config.Config, *zap.Logger, error) {
	path := v.GetString("config")
	if path == "" {
		return nil, nil, fmt.Errorf("a config file is required, set --config or RESULTSET_CONFIG")
	}

	c, err := config.NewFromFile(path)
	if err != nil {
		return nil, nil, err
	}

	logger, err := config.NewLogger(c.Global)
	if err != nil {
		return nil, nil, err
	}

	return c, logger.Named(name), nil
}
