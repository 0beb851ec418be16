// Package app provides the gcgit command tree.
package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gocortexio/gcgit/internal/config"
	"github.com/gocortexio/gcgit/internal/logger"
	"github.com/gocortexio/gcgit/internal/modules"
	"github.com/gocortexio/gcgit/internal/sync"
	"github.com/gocortexio/gcgit/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "gcgit",
	DisableAutoGenTag: true,
	Short:             "Version-control Cortex platform configurations",
	Long: `gcgit version-controls Cortex platform configurations (XSIAM, AppSec) by
pulling them into local Git repositories as deterministic YAML files.

https://gocortex.io`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if viper.GetBool("debug") {
			logger.Initialize(true)
		}
	},
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	registry := modules.NewRegistry()
	manager := sync.NewManager(registry)

	for _, mod := range registry.All() {
		rootCmd.AddCommand(newModuleCmd(manager, mod))
	}
	rootCmd.AddCommand(newInitCmd(registry))
	rootCmd.AddCommand(newStatusCmd(manager))
	rootCmd.AddCommand(newValidateCmd(manager))
	rootCmd.AddCommand(newDeployCmd(manager))
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			logger.Errorf("Error retrieving format flag: %v", err)
			return
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				logger.Errorf("Error formatting version info as JSON: %v", err)
				return
			}
			fmt.Println(string(output))
		} else {
			fmt.Printf("gcgit %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
		}
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}

func newInitCmd(registry *modules.Registry) *cobra.Command {
	var instance string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialise a new multi-module instance",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := config.NewManager().InitInstance(instance, registry); err != nil {
				return err
			}
			fmt.Printf("Initialised instance: %s\n", instance)
			fmt.Printf("Please edit %s/%s with your API credentials\n", instance, config.ConfigFileName)
			return nil
		},
	}
	cmd.Flags().StringVar(&instance, "instance", "", "Instance name")
	_ = cmd.MarkFlagRequired("instance")
	return cmd
}

func newStatusCmd(manager *sync.Manager) *cobra.Command {
	var instance string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Git and module synchronisation status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instances := []string{instance}
			if instance == "" {
				all, err := config.ListInstances()
				if err != nil {
					return err
				}
				if len(all) == 0 {
					fmt.Println("No instances found. Run 'gcgit init --instance <name>' first")
					return nil
				}
				instances = all
				fmt.Println("Status for all instances:")
			} else {
				fmt.Printf("Status for instance: %s\n", instance)
			}

			for _, name := range instances {
				if instance == "" {
					fmt.Printf("\n=== %s ===\n", name)
				}
				printInstanceStatus(manager.Status(cmd.Context(), name))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&instance, "instance", "", "Instance name to check (optional - shows all if not specified)")
	return cmd
}

func printInstanceStatus(status *sync.InstanceStatus) {
	if !status.GitAvailable {
		fmt.Println("  Git: No repository (run a pull to initialise)")
	} else if len(status.ModifiedFiles) == 0 {
		fmt.Println("  Git: No modified files")
	} else {
		fmt.Printf("  Git: %d modified files\n", len(status.ModifiedFiles))
		for _, file := range status.ModifiedFiles {
			fmt.Printf("    - %s\n", file)
		}
	}

	for _, mod := range status.Modules {
		if mod.Err != nil {
			fmt.Printf("  %s: Connection failed - %v\n", mod.ModuleID, mod.Err)
		} else {
			fmt.Printf("  %s: Connected\n", mod.ModuleID)
		}
	}
}

func newValidateCmd(manager *sync.Manager) *cobra.Command {
	var instance string

	cmd := &cobra.Command{
		Use:   "validate [files...]",
		Short: "Validate YAML files for platform compatibility",
		RunE: func(_ *cobra.Command, args []string) error {
			var results []sync.ValidationResult
			var err error

			switch {
			case len(args) > 0:
				results = manager.ValidateFiles(args)
			case instance != "":
				results, err = manager.ValidateInstance(instance)
			default:
				instances, listErr := config.ListInstances()
				if listErr != nil {
					return listErr
				}
				for _, name := range instances {
					r, vErr := manager.ValidateInstance(name)
					if vErr != nil {
						return vErr
					}
					results = append(results, r...)
				}
			}
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("No YAML files found to validate")
				return nil
			}

			fmt.Printf("Validating %d files...\n", len(results))
			errorCount := 0
			for _, result := range results {
				if result.Err != nil {
					fmt.Printf("  Checking %s... FAIL: %v\n", result.Path, result.Err)
					errorCount++
				} else {
					fmt.Printf("  Checking %s... OK\n", result.Path)
				}
			}

			if errorCount > 0 {
				return fmt.Errorf("%d validation errors found", errorCount)
			}
			fmt.Println("\nAll files are valid")
			return nil
		},
	}
	cmd.Flags().StringVar(&instance, "instance", "", "Instance name to validate")
	return cmd
}
