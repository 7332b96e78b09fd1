package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/grt/internal/cli/ui"
	"github.com/conduit-lang/grt/internal/grt"
)

var outputFormat string

// NewClassesCommand creates the classes command
func NewClassesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes [prefix]",
		Short: "List registered classes",
		Long: `List the classes declared by the configured structs files.

Each class is shown with its parent and the number of members it declares
itself and inherits.`,
		Example: `  # List every class
  grt classes

  # List the classes of the db package
  grt classes db.

  # Output in JSON format for tooling
  grt classes --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runClassesCommand,
	}
	cmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: json or table")
	return cmd
}

type classInfo struct {
	Name    string `json:"name"`
	Parent  string `json:"parent,omitempty"`
	Own     int    `json:"own_members"`
	Members int    `json:"members"`
}

func runClassesCommand(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	var classes []classInfo
	for _, name := range env.registry.List() {
		if len(args) == 1 && !strings.HasPrefix(name, args[0]) {
			continue
		}
		mc, err := env.registry.Get(name)
		if err != nil {
			return err
		}
		classes = append(classes, classInfo{
			Name:    name,
			Parent:  mc.ParentName(),
			Own:     len(mc.OwnMembers()),
			Members: len(mc.Members()),
		})
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(classes)
	}

	table := ui.NewTable(out, noColor, "Class", "Parent", "Own", "Members")
	for _, c := range classes {
		table.AddRow(c.Name, c.Parent, strconv.Itoa(c.Own), strconv.Itoa(c.Members))
	}
	table.Render()
	return nil
}

// NewMembersCommand creates the members command
func NewMembersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "members <class>",
		Short: "Show the members of a class",
		Long: `Show every member of a class, including inherited ones, in the order
objects store them.`,
		Example: `  grt members db.Table`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeClasses,
		RunE:              runMembersCommand,
	}
}

func runMembersCommand(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	mc, err := env.registry.Get(args[0])
	if err != nil {
		if errors.Is(err, grt.ErrUnknownClass) {
			fmt.Fprint(cmd.ErrOrStderr(), ui.UnknownClassError(args[0], env.registry.List(), noColor))
			return errReported
		}
		return err
	}

	out := cmd.OutOrStdout()
	kv := ui.NewKeyValueTable(out, noColor)
	kv.AddRow("Class", mc.Name())
	if mc.ParentName() != "" {
		kv.AddRow("Parent", mc.ParentName())
	}
	kv.Render()
	fmt.Fprintln(out)

	table := ui.NewTable(out, noColor, "Member", "Type", "Flags", "Default", "Declared In")
	for _, m := range mc.Members() {
		table.AddRow(m.Name, m.Type.String(), memberFlags(m), defaultText(m), m.DeclaredIn)
	}
	table.Render()
	return nil
}

func memberFlags(m *grt.Member) string {
	var flags []string
	if m.Owned {
		flags = append(flags, "owned")
	} else if !m.IsSimple() {
		flags = append(flags, "weak")
	}
	if m.ReadOnly {
		flags = append(flags, "read-only")
	}
	if m.Overrides {
		flags = append(flags, "override")
	}
	return strings.Join(flags, ",")
}

func defaultText(m *grt.Member) string {
	if !grt.IsValid(m.Default) {
		return ""
	}
	if m.Default.Type() == grt.StringType {
		return strconv.Quote(m.Default.String())
	}
	return m.Default.String()
}
