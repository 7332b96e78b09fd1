package commands

import (
	"context"

	"github.com/spf13/cobra"
)

// NewCompletionCommand creates the completion command for shell completions
func NewCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate a shell completion script for grt.

Completions cover commands, flags, class names and stored document names.

  $ source <(grt completion bash)
  $ grt completion zsh > "${fpath[1]}/_grt"
  $ grt completion fish | source
  PS> grt completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			out := cmd.OutOrStdout()

			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			default:
				return root.GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

// completeClasses completes the first argument with registered class names
func completeClasses(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	env, err := loadEnvironment(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer env.close()
	return env.registry.List(), cobra.ShellCompDirectiveNoFileComp
}

// completeDocuments completes the first argument with stored document names
func completeDocuments(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	env, err := loadEnvironment(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer env.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := env.openStore(ctx); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return env.documentNames(ctx), cobra.ShellCompDirectiveNoFileComp
}
