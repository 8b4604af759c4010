package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karst-db/karst/internal/query"
)

// ValidationReport is the data payload of a validate run. CursorFingerprint
// is present only for cursor-paginated queries; callers use it to check a
// resume token against the query that issued it.
type ValidationReport struct {
	Valid             bool   `json:"valid"`
	Object            string `json:"object,omitempty"`
	Fingerprint       string `json:"fingerprint,omitempty"`
	CursorFingerprint string `json:"cursorFingerprint,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var legacy bool
	var maxJoinDepth int

	cmd := &cobra.Command{
		Use:   "validate <query-file>",
		Short: "Validate a query envelope",
		Long: `Validate a query envelope from a .json, .yaml, or .cue file.

Validation is fail-fast: the first structural violation is reported with
its error code and the path of the offending node. A valid query also
prints its canonical fingerprint.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args[0], legacy, maxJoinDepth)
		},
	}

	cmd.Flags().BoolVar(&legacy, "legacy", false, "decode the deprecated filters/top/skip shape")
	cmd.Flags().IntVar(&maxJoinDepth, "max-join-depth", query.DefaultMaxJoinDepth,
		"maximum subquery nesting depth")

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command, path string, legacy bool, maxJoinDepth int) error {
	formatter := newFormatter(opts, cmd)

	canonical, err := loadAndValidate(formatter, path, legacy, maxJoinDepth)
	if err != nil {
		return err
	}

	fingerprint, err := canonical.Fingerprint()
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, "", err.Error())
		return NewExitError(ExitCommandError, err.Error())
	}
	cursorFingerprint, err := canonical.CursorFingerprint()
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, "", err.Error())
		return NewExitError(ExitCommandError, err.Error())
	}

	report := ValidationReport{
		Valid:             true,
		Object:            canonical.Query().Object,
		Fingerprint:       fingerprint,
		CursorFingerprint: cursorFingerprint,
	}
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", path)
	fmt.Fprintf(formatter.Writer, "  object:      %s\n", report.Object)
	fmt.Fprintf(formatter.Writer, "  fingerprint: %s\n", report.Fingerprint)
	if report.CursorFingerprint != "" {
		fmt.Fprintf(formatter.Writer, "  cursor:      %s\n", report.CursorFingerprint)
	}
	return nil
}

// loadAndValidate is the shared front half of every command: read the file,
// decode it, validate it. Load problems exit 2, validation failures exit 1.
func loadAndValidate(formatter *OutputFormatter, path string, legacy bool, maxJoinDepth int) (*query.CanonicalQuery, error) {
	env, err := LoadQuery(path, legacy)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, "", loadErr.Message)
			return nil, NewExitError(ExitCommandError, loadErr.Message)
		}
		_ = formatter.Error(ErrCodeGeneric, "", err.Error())
		return nil, NewExitError(ExitCommandError, err.Error())
	}

	formatter.VerboseLog("loaded %s (object %q)", path, env.Object)

	limits := query.Limits{MaxJoinDepth: maxJoinDepth}
	canonical, err := query.ValidateWithLimits(env, limits)
	if err != nil {
		var ve *query.ValidationError
		if errors.As(err, &ve) {
			_ = formatter.Error(string(ve.Code), ve.Path.String(), ve.Message)
			return nil, NewExitError(ExitFailure, ve.Error())
		}
		_ = formatter.Error(ErrCodeGeneric, "", err.Error())
		return nil, NewExitError(ExitFailure, err.Error())
	}

	return canonical, nil
}
