package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/grt/internal/cli/ui"
	"github.com/conduit-lang/grt/internal/clipboard"
	"github.com/conduit-lang/grt/internal/grt"
	"github.com/conduit-lang/grt/internal/tree"
)

// NewCopyCommand creates the copy command
func NewCopyCommand() *cobra.Command {
	var into string
	cmd := &cobra.Command{
		Use:   "copy <document> <node>",
		Short: "Copy the value at a node to the clipboard",
		Long: `Copy the value shown at a node, with everything it owns, to the clipboard.

With --into the copy is also pasted at once into the list at another node of
the same document, which works with every clipboard backend. Pasting from a
separate command needs the redis clipboard backend.`,
		Example: `  # Duplicate the first table of the first schema
  grt copy sakila 0.0.1.0 --into 0.0.1`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeDocuments,
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := parseNode(args[1])
			if err != nil {
				return err
			}

			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			doc, p, err := env.loadDocument(cmd, args[0])
			if err != nil {
				return err
			}
			value, err := p.GetValue(node)
			if err != nil {
				return err
			}

			cb, closeClipboard, err := env.openClipboard(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClipboard()

			if err := clipboard.Copy(cmd.Context(), cb, value); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("copied %s (%d objects)", node, grt.CountObjects(value)), noColor))

			if into == "" {
				return nil
			}
			target, err := parseNode(into)
			if err != nil {
				return err
			}
			return paste(cmd, env, cb, doc, p, args[0], target)
		},
	}
	cmd.Flags().StringVar(&into, "into", "", "Also paste into the list at this node")
	return cmd
}

// NewPasteCommand creates the paste command
func NewPasteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paste <document> <node>",
		Short: "Append the clipboard content to a list",
		Long: `Append the clipboard content to the list shown at a node and save the
document. Pasted objects get new identities; references to objects that were
not copied keep pointing at their original targets.`,
		Example: `  grt paste sakila 0.0.1`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeDocuments,
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := parseNode(args[1])
			if err != nil {
				return err
			}

			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			doc, p, err := env.loadDocument(cmd, args[0])
			if err != nil {
				return err
			}
			cb, closeClipboard, err := env.openClipboard(cmd.Context())
			if err != nil {
				return err
			}
			defer closeClipboard()

			return paste(cmd, env, cb, doc, p, args[0], node)
		},
	}
}

// paste appends the clipboard content to the list at node in one undo
// transaction and saves the document
func paste(cmd *cobra.Command, env *environment, cb clipboard.Clipboard, doc *grt.Context, p *tree.Projection, name string, node tree.NodeID) error {
	v, err := p.GetValue(node)
	if err != nil {
		return err
	}
	list, ok := v.(*grt.List)
	if !ok {
		return fmt.Errorf("%w: %s is not a list", tree.ErrInvalidNode, node)
	}

	pasted, err := clipboard.Paste(cmd.Context(), cb, doc)
	if err != nil {
		if clipboard.IsEmpty(err) {
			return fmt.Errorf("%w: copy something first", err)
		}
		return err
	}
	if err := doc.UndoManager().WithTransaction("Paste", func() error {
		return list.Append(pasted)
	}); err != nil {
		return err
	}
	if err := p.RefreshNode(node, false); err != nil {
		return err
	}

	if err := env.store.Save(cmd.Context(), name, p.Root()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("pasted into %s at %s", node, node.Child(list.Count()-1)), noColor))
	return nil
}
