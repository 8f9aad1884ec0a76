package cli

import "github.com/spf13/cobra"

func newPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <file-name>",
		Short: "Delete every alert generated for a log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := rt.service.Purge(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.out.JSON(map[string]any{"file_name": args[0], "deleted": n})
			}
			if n == 0 {
				a.out.Info("No alerts found for %s", args[0])
				return nil
			}
			a.out.Success("Deleted %d alerts for %s", n, args[0])
			return nil
		},
	}
}
