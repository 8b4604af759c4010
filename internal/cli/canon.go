package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karst-db/karst/internal/query"
)

// CanonReport is the data payload of a canon run.
type CanonReport struct {
	Fingerprint string `json:"fingerprint"`
	Canonical   string `json:"canonical"`
}

// NewCanonCommand creates the canon command, which prints the canonical
// wire form and fingerprint of a query.
func NewCanonCommand(rootOpts *RootOptions) *cobra.Command {
	var legacy bool

	cmd := &cobra.Command{
		Use:   "canon <query-file>",
		Short: "Print a query's canonical form and fingerprint",
		Long: `Validate a query envelope and print its canonical wire JSON (RFC 8785
form) and content-addressed fingerprint. Two semantically identical
queries print identical output, which is what downstream caches key on.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCanon(rootOpts, cmd, args[0], legacy)
		},
	}

	cmd.Flags().BoolVar(&legacy, "legacy", false, "decode the deprecated filters/top/skip shape")

	return cmd
}

func runCanon(opts *RootOptions, cmd *cobra.Command, path string, legacy bool) error {
	formatter := newFormatter(opts, cmd)

	canonical, err := loadAndValidate(formatter, path, legacy, query.DefaultMaxJoinDepth)
	if err != nil {
		return err
	}

	canonicalJSON, err := canonical.MarshalCanonical()
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, "", err.Error())
		return NewExitError(ExitCommandError, err.Error())
	}
	fingerprint, err := canonical.Fingerprint()
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, "", err.Error())
		return NewExitError(ExitCommandError, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(CanonReport{
			Fingerprint: fingerprint,
			Canonical:   string(canonicalJSON),
		})
	}

	fmt.Fprintln(formatter.Writer, string(canonicalJSON))
	fmt.Fprintf(formatter.Writer, "fingerprint: %s\n", fingerprint)
	return nil
}
