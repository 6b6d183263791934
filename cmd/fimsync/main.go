package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openmined/fimsync/internal/config"
	"github.com/openmined/fimsync/internal/logging"
	"github.com/openmined/fimsync/internal/version"
)

const configFileName = "config"

// cli carries the state shared by every command of one invocation
type cli struct {
	v         *viper.Viper
	cfg       *config.Config
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:     "fimsync",
		Short:   "File integrity monitoring agent with manager synchronization",
		Version: version.Detailed(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.logCloser != nil {
				return c.logCloser.Close()
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", config.DefaultConfigPath, "config file")
	flags.String("env-file", ".env", "dotenv file with FIMSYNC_* variables")
	flags.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")
	flags.String("store", config.DefaultStorePath, "entry journal database")
	flags.StringSliceP("dir", "d", nil, "monitored directory, repeatable")

	rootCmd.AddCommand(newRunCmd(c))
	rootCmd.AddCommand(newScanCmd(c))
	rootCmd.AddCommand(newDigestCmd(c))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd, c.v)
	if err != nil {
		return err
	}
	c.cfg = cfg

	opts := logging.Options{Level: cfg.LogLevel}
	if cmd.Name() == "run" {
		opts.File = cfg.LogFile
	}
	closer, err := logging.Setup(opts)
	if err != nil {
		return err
	}
	c.logCloser = closer
	return nil
}

func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}

	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		v.SetConfigFile(configFilePath)
	} else {
		v.AddConfigPath(config.DefaultConfigDir)
		v.SetConfigName(configFileName)
		v.SetConfigType("json")
	}

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	config.SetDefaults(v)

	bindFlag(v, cmd, "store_path", "store")
	bindFlag(v, cmd, "directories", "dir")
	bindFlag(v, cmd, "log_level", "log-level")
	bindFlag(v, cmd, "server_url", "server")
	bindFlag(v, cmd, "control_addr", "control-addr")
	bindFlag(v, cmd, "realtime", "realtime")

	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	return config.FromViper(v)
}

// bindFlag binds key to the flag only when the command defines it
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if f := cmd.Flags().Lookup(flag); f != nil {
		_ = v.BindPFlag(key, f)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
