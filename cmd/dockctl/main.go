// Package main is the entry point for the dockctl CLI, a command line client for dockapi.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kailas-cloud/dockapi/internal/version"
	dockapi "github.com/kailas-cloud/dockapi/pkg/sdk"
)

const (
	keyServer  = "server"
	keyAPIKey  = "api_key"
	keyTimeout = "timeout"
	keyJSON    = "json"

	defaultServer = "http://localhost:8000"
)

// cli carries per-invocation state so commands stay testable.
type cli struct {
	v         *viper.Viper
	newClient func() (*dockapi.Client, error)
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	c.newClient = c.client

	rootCmd := &cobra.Command{
		Use:   "dockctl",
		Short: "Command line client for the dockapi docking service",
		Long: `dockctl talks to a dockapi server: dock a molecule against a protein target,
list the available targets and check service health.

Settings come from flags, DOCKCTL_* environment variables, or a dockctl.yaml
file in the current directory or ~/.config/dockctl/.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initConfig(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./dockctl.yaml or ~/.config/dockctl/dockctl.yaml)")
	pf.String(keyServer, defaultServer, "dockapi server URL")
	pf.String("api-key", "", "API key sent as a Bearer token")
	pf.Duration(keyTimeout, 15*time.Minute, "request timeout")
	pf.Bool(keyJSON, false, "print raw JSON instead of formatted output")

	_ = c.v.BindPFlag(keyServer, pf.Lookup(keyServer))
	_ = c.v.BindPFlag(keyAPIKey, pf.Lookup("api-key"))
	_ = c.v.BindPFlag(keyTimeout, pf.Lookup(keyTimeout))
	_ = c.v.BindPFlag(keyJSON, pf.Lookup(keyJSON))

	rootCmd.AddCommand(
		newDockCmd(c),
		newTargetsCmd(c),
		newHealthCmd(c),
		newVersionCmd(),
	)
	return rootCmd
}

func (c *cli) initConfig(cmd *cobra.Command) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		c.v.SetConfigFile(cfgFile)
	} else {
		c.v.SetConfigName("dockctl")
		c.v.SetConfigType("yaml")
		c.v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			c.v.AddConfigPath(filepath.Join(home, ".config", "dockctl"))
		}
	}

	c.v.SetEnvPrefix("DOCKCTL")
	c.v.AutomaticEnv()

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func (c *cli) client() (*dockapi.Client, error) {
	return dockapi.New(c.v.GetString(keyServer),
		dockapi.WithAPIKey(c.v.GetString(keyAPIKey)),
		dockapi.WithTimeout(c.v.GetDuration(keyTimeout)),
		dockapi.WithUserAgent("dockctl/"+version.Version),
	)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
