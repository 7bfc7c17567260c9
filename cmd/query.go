package cmd

import (
	"fmt"

	"github.com/agentic-research/sodacat-web/internal/query"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

func newQueryCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query DATA_DIR ARTIFACT JSONPATH",
		Short: "Evaluate a JSONPath expression against a generated artifact",
		Long: `ARTIFACT is index, tier1, tier2, tier3, or a path below DATA_DIR such as
chips/F4/F40x/STM32F405 or blocks/F4/TIM.summary.json.`,
		Example: `  sodacat-web query data index '$.vendors[*].name'
  sodacat-web query data chips/F4/F40x/STM32F405 '$.instances.*.modelPath'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := query.LoadArtifact(osfs.New(args[0]), args[1])
			if err != nil {
				return err
			}
			matches, err := query.Query(root, args[2])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range matches {
				fmt.Fprintln(out, query.Render(m))
			}
			return nil
		},
	}
}
