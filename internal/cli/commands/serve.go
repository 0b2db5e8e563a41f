package commands

import (
	"github.com/spf13/cobra"

	"github.com/opencohort/colnorm/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the cleaning pipeline over HTTP",
		Long: `Start the HTTP server. Endpoints mirror the subcommands: POST
/clean-columns, /merge-table-versions, /validate, and /profile take JSON
bodies with fully qualified table names; GET /heartbeat reports liveness.`,
		Example: `  colnorm serve --port 8080`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, closeApp, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp()

			srv := server.New(a.pipe, a.profiler, a.cfg.Server.Port, a.logger)
			return srv.Serve(cmd.Context())
		},
	}

	return cmd
}
