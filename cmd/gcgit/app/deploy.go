package app

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gocortexio/gcgit/internal/gitrepo"
	"github.com/gocortexio/gcgit/internal/sync"
)

// newDeployCmd validates and commits local changes in one step. The final
// push-to-platform leg is still gated like the per-module push command.
func newDeployCmd(manager *sync.Manager) *cobra.Command {
	var instance, message string

	cmd := &cobra.Command{
		Use:   "deploy [files...]",
		Short: "Streamlined deployment: validate + add + commit",
		RunE: func(_ *cobra.Command, args []string) error {
			repo, err := gitrepo.Open(instance)
			if err != nil {
				return err
			}

			files := args
			if len(files) == 0 {
				modified, err := repo.ModifiedFiles()
				if err != nil {
					return err
				}
				for _, path := range modified {
					ext := filepath.Ext(path)
					if ext == ".yaml" || ext == ".yml" {
						files = append(files, path)
					}
				}
			}
			if len(files) == 0 {
				fmt.Println("No modified YAML files to deploy")
				return nil
			}

			prefixed := make([]string, 0, len(files))
			for _, path := range files {
				prefixed = append(prefixed, filepath.Join(instance, path))
			}
			results := manager.ValidateFiles(prefixed)
			for _, result := range results {
				if result.Err != nil {
					return fmt.Errorf("validation failed for %s: %w", result.Path, result.Err)
				}
			}
			fmt.Printf("Validated %d files\n", len(results))

			hasChanges, changedCount, _, err := repo.HasChangesAfterAdd(files)
			if err != nil {
				return err
			}
			if !hasChanges {
				fmt.Println("No changes to commit")
				return nil
			}
			if err := repo.Commit(message); err != nil {
				return err
			}
			fmt.Printf("Committed %d files: %s\n", changedCount, message)

			fmt.Println(notEnabledNotice)
			return nil
		},
	}
	cmd.Flags().StringVar(&instance, "instance", "", "Instance name to deploy")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	_ = cmd.MarkFlagRequired("instance")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
