package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/grt/internal/cli/ui"
	"github.com/conduit-lang/grt/internal/grt"
	"github.com/conduit-lang/grt/internal/tree"
)

var treeDepth int

// NewTreeCommand creates the tree command
func NewTreeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree <document> [node]",
		Short: "Browse a document as a tree",
		Long: `Print the rows of a stored document below a node.

Nodes are addressed by dotted child indices from the document root, e.g.
"0.2.1". Owned objects, lists and dicts are expanded; weak references are
shown as leaves holding the name of their target.`,
		Example: `  # Show the top two levels of a document
  grt tree sakila --depth 2

  # Show the columns of the first table of the first schema
  grt tree sakila 0.0.1`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completeDocuments,
		RunE:              runTreeCommand,
	}
	cmd.Flags().IntVar(&treeDepth, "depth", 1, "Number of levels to print; 0 prints everything")
	return cmd
}

func runTreeCommand(cmd *cobra.Command, args []string) error {
	var start tree.NodeID
	if len(args) == 2 {
		var err error
		if start, err = parseNode(args[1]); err != nil {
			return err
		}
	}

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	_, p, err := env.loadDocument(cmd, args[0])
	if err != nil {
		return err
	}

	table := ui.NewTable(cmd.OutOrStdout(), noColor, "Node", "Name", "Type", "Value")
	if err := printRows(table, p, start, 0); err != nil {
		return err
	}
	table.Render()
	return nil
}

// printRows adds the children of node to table, descending while depth allows
func printRows(table *ui.Table, p *tree.Projection, node tree.NodeID, level int) error {
	n, err := p.Count(node)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		child := node.Child(i)
		fields := make([]string, 3)
		for c, column := range []tree.Column{tree.ColumnName, tree.ColumnType, tree.ColumnValue} {
			if fields[c], err = p.GetField(child, column); err != nil {
				return err
			}
		}
		table.AddRow(child.String(), strings.Repeat("  ", level)+fields[0], fields[1], fields[2])

		if p.IsExpandable(child) && (treeDepth <= 0 || level+1 < treeDepth) {
			if err := printRows(table, p, child, level+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// NewSetCommand creates the set command
func NewSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <document> <node> <value>",
		Short: "Change a scalar value in a document",
		Long: `Store a new value in the slot shown at a node and save the document.

The value is parsed according to the slot type: int, real or string. Untyped
slots take an int or real when the text parses as one.`,
		Example: `  # Rename the first table of the first schema
  grt set sakila 0.0.1.0.0 customers`,
		Args:              cobra.ExactArgs(3),
		ValidArgsFunction: completeDocuments,
		RunE:              runSetCommand,
	}
}

func runSetCommand(cmd *cobra.Command, args []string) error {
	node, err := parseNode(args[1])
	if err != nil {
		return err
	}

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	_, p, err := env.loadDocument(cmd, args[0])
	if err != nil {
		return err
	}

	typ, err := p.GetField(node, tree.ColumnType)
	if err != nil {
		return err
	}
	value, err := parseScalar(typ, args[2])
	if err != nil {
		return err
	}
	if err := p.SetField(node, value); err != nil {
		return err
	}

	if err := env.store.Save(cmd.Context(), args[0], p.Root()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.Success(fmt.Sprintf("set %s to %s", node, value), noColor))
	return nil
}

// parseScalar converts text to a value of the named slot type
func parseScalar(typ, text string) (grt.Value, error) {
	switch typ {
	case "int":
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected an int, got %q", text)
		}
		return grt.Int(i), nil
	case "real":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a real, got %q", text)
		}
		return grt.Real(f), nil
	case "string":
		return grt.String(text), nil
	case "any":
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return grt.Int(i), nil
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return grt.Real(f), nil
		}
		return grt.String(text), nil
	default:
		return nil, fmt.Errorf("cannot set a %s from the command line", typ)
	}
}
