package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"careline/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or initialize configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path := globalFlags.ConfigPath
	if _, err := os.Stat(path); err == nil {
		exitWith(ExitConfigInvalid, "ERROR: config file already exists: "+path)
	}
	if err := config.Save(path, config.Default()); err != nil {
		exitWith(ExitGenericError, "ERROR: "+err.Error())
	}
	fmt.Println("Wrote", path)
	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		exitWith(ExitConfigInvalid, "ERROR: "+err.Error())
	}
	// Encoding drops the secret fields, which is exactly what we want here.
	return toml.NewEncoder(os.Stdout).Encode(cfg)
}
