package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gocortexio/gcgit/internal/modules"
	"github.com/gocortexio/gcgit/internal/sync"
)

const defaultInstance = "default"

// notEnabledNotice is printed for write-path commands that are still gated.
const notEnabledNotice = "This command did not run as the feature is still under development, keep an eye on https://gocortex.io for updates"

// newModuleCmd builds the per-module command group (pull, diff, test, push,
// delete) for one registered module.
func newModuleCmd(manager *sync.Manager, mod modules.Module) *cobra.Command {
	ctNames := make([]string, 0, len(mod.ContentTypes()))
	for _, ct := range mod.ContentTypes() {
		ctNames = append(ctNames, ct.Name)
	}

	cmd := &cobra.Command{
		Use:   mod.ID(),
		Short: fmt.Sprintf("%s commands (%s)", mod.Name(), strings.Join(ctNames, ", ")),
	}

	cmd.AddCommand(newPullCmd(manager, mod))
	cmd.AddCommand(newDiffCmd(manager, mod))
	cmd.AddCommand(newTestCmd(manager, mod))
	cmd.AddCommand(newPushCmd())
	cmd.AddCommand(newDeleteCmd())
	return cmd
}

func newPullCmd(manager *sync.Manager, mod modules.Module) *cobra.Command {
	var instance string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull configurations from the platform",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := manager.Pull(cmd.Context(), instance, mod.ID())
			if err != nil {
				return err
			}

			types := make([]string, 0, len(result.CountsByType))
			for name := range result.CountsByType {
				types = append(types, name)
			}
			sort.Strings(types)
			for _, name := range types {
				fmt.Printf("  Found %d %s\n", result.CountsByType[name], name)
			}
			for _, warning := range result.Warnings {
				fmt.Printf("  WARNING: %s\n", warning)
			}

			switch {
			case len(result.PulledFiles) == 0:
				fmt.Println("No objects pulled")
			case result.Committed:
				fileWord := "file"
				if result.ChangedCount != 1 {
					fileWord = "files"
				}
				fmt.Printf("Committed %d changed %s: %s\n", result.ChangedCount, fileWord, result.CommitMessage)
			default:
				fmt.Printf("Processed %d pulled files - no Git changes detected\n", len(result.PulledFiles))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&instance, "instance", defaultInstance, "Instance name")
	return cmd
}

func newDiffCmd(manager *sync.Manager, mod modules.Module) *cobra.Command {
	var instance string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show differences between local and remote",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := manager.Diff(cmd.Context(), instance, mod.ID())
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No differences detected - local YAML files match remote objects")
				return nil
			}

			for _, entry := range entries {
				switch entry.Kind {
				case sync.DiffChanged:
					fmt.Printf("DIFF: %s (local differs from remote)\n", entry.Path)
					for _, detail := range entry.Details {
						fmt.Printf("    %s\n", detail)
					}
				case sync.DiffLocalOnly:
					fmt.Printf("NEW: %s (exists locally but not remotely)\n", entry.Path)
				case sync.DiffError:
					fmt.Printf("WARNING: %s (%s)\n", entry.Path, strings.Join(entry.Details, ", "))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&instance, "instance", defaultInstance, "Instance name")
	return cmd
}

func newTestCmd(manager *sync.Manager, mod modules.Module) *cobra.Command {
	var instance string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test API connectivity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			results, err := manager.TestEndpoints(cmd.Context(), instance, mod.ID())
			if err != nil {
				return fmt.Errorf("endpoint testing failed: %w", err)
			}

			failures := 0
			for _, result := range results {
				if result.Err != nil {
					fmt.Printf("  %s: FAIL - %v\n", result.ContentType, result.Err)
					failures++
				} else {
					fmt.Printf("  %s: OK (%d objects)\n", result.ContentType, result.Count)
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d endpoints failed", failures, len(results))
			}
			fmt.Println("\nEndpoint testing completed successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&instance, "instance", defaultInstance, "Instance name")
	return cmd
}

func newPushCmd() *cobra.Command {
	var instance string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push local changes to the platform",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println(notEnabledNotice)
			return nil
		},
	}
	cmd.Flags().StringVar(&instance, "instance", defaultInstance, "Instance name")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var instance, contentType, id string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an object from the platform",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println(notEnabledNotice)
			return nil
		},
	}
	cmd.Flags().StringVar(&instance, "instance", defaultInstance, "Instance name")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type")
	cmd.Flags().StringVar(&id, "id", "", "Object ID to delete")
	_ = cmd.MarkFlagRequired("content-type")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
