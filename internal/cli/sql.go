package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karst-db/karst/internal/query"
	"github.com/karst-db/karst/internal/querysql"
)

// SQLReport is the data payload of an sql run.
type SQLReport struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// NewSQLCommand creates the sql command, which lowers a query to
// parameterized SQL using the reference SQLite backend.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	var legacy bool

	cmd := &cobra.Command{
		Use:   "sql <query-file>",
		Short: "Lower a query to parameterized SQL",
		Long: `Validate a query envelope and lower it to parameterized SQL (SQLite
dialect). Values are bound parameters, never interpolated into the text.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(rootOpts, cmd, args[0], legacy)
		},
	}

	cmd.Flags().BoolVar(&legacy, "legacy", false, "decode the deprecated filters/top/skip shape")

	return cmd
}

func runSQL(opts *RootOptions, cmd *cobra.Command, path string, legacy bool) error {
	formatter := newFormatter(opts, cmd)

	canonical, err := loadAndValidate(formatter, path, legacy, query.DefaultMaxJoinDepth)
	if err != nil {
		return err
	}

	sqlText, params, err := querysql.NewCompiler().Compile(canonical)
	if err != nil {
		_ = formatter.Error(ErrCodeCompileSQL, "", err.Error())
		return NewExitError(ExitFailure, err.Error())
	}

	if formatter.Format == "json" {
		if params == nil {
			params = []any{}
		}
		return formatter.Success(SQLReport{SQL: sqlText, Params: params})
	}

	fmt.Fprintln(formatter.Writer, sqlText)
	for i, param := range params {
		fmt.Fprintf(formatter.Writer, "  ?%d = %v\n", i+1, param)
	}
	return nil
}
