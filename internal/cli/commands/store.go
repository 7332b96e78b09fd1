package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/grt/internal/cli/ui"
	"github.com/conduit-lang/grt/internal/grt"
	"github.com/conduit-lang/grt/internal/store"
)

// NewStoreCommand creates the store command group
func NewStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage stored documents",
		Long: `Manage the documents kept in the configured database.

Documents are stored in their serialized JSON form, one row per document.
The database is chosen by store.driver and store.dsn in grt.yml; sqlite3,
postgres and pgx are supported.`,
	}

	cmd.AddCommand(newStoreListCommand())
	cmd.AddCommand(newStoreImportCommand())
	cmd.AddCommand(newStoreExportCommand())
	cmd.AddCommand(newStoreDeleteCommand())
	return cmd
}

func newStoreListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			s, err := env.openStore(cmd.Context())
			if err != nil {
				return err
			}
			docs, err := s.List(cmd.Context())
			if err != nil {
				return err
			}

			table := ui.NewTable(cmd.OutOrStdout(), noColor, "Name", "Objects", "Bytes", "Updated")
			for _, d := range docs {
				table.AddRow(d.Name, strconv.Itoa(d.Objects), strconv.Itoa(d.Size), d.UpdatedAt.Format(time.RFC3339))
			}
			table.Render()
			return nil
		},
	}
}

func newStoreImportCommand() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import <name> <file>",
		Short: "Store a serialized document",
		Long: `Read a serialized document from a file ("-" for stdin), check it against the
registered classes and store it under name.`,
		Example: `  grt store import sakila sakila.json
  grt store import sakila - --replace < sakila.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}

			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			s, err := env.openStore(cmd.Context())
			if err != nil {
				return err
			}
			root, err := grt.Unmarshal(env.newDocument(), data, grt.UnmarshalOptions{})
			if err != nil {
				return fmt.Errorf("invalid document %s: %w", args[1], err)
			}

			if replace {
				err = s.Save(cmd.Context(), args[0], root)
			} else {
				err = s.Import(cmd.Context(), args[0], data, grt.CountObjects(root))
			}
			if err != nil {
				if store.IsExists(err) {
					return fmt.Errorf("%w (use --replace to overwrite)", err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("stored %s (%d objects)", args[0], grt.CountObjects(root)), noColor))
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Overwrite an existing document")
	return cmd
}

func newStoreExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <name> [file]",
		Short: "Write a stored document to a file",
		Long:  `Write the serialized form of a stored document to a file, or to stdout.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			s, err := env.openStore(cmd.Context())
			if err != nil {
				return err
			}
			data, err := s.Data(cmd.Context(), args[0])
			if err != nil {
				if store.IsNotFound(err) {
					fmt.Fprint(cmd.ErrOrStderr(), ui.DocumentNotFoundError(args[0], env.documentNames(cmd.Context()), noColor))
					return errReported
				}
				return err
			}

			if len(args) == 1 {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(args[1], data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", args[1], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("exported %s to %s", args[0], args[1]), noColor))
			return nil
		},
	}
}

func newStoreDeleteCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored document",
		Long:  `Delete a stored document. Asks for confirmation unless --yes is given.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				confirmed := false
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("Delete document %s?", args[0]),
				}
				if err := survey.AskOne(prompt, &confirmed); err != nil {
					return err
				}
				if !confirmed {
					return nil
				}
			}

			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			s, err := env.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success("deleted "+args[0], noColor))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
