package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newActivityCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent activity, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(rt *runtimeEnv, p *printer) error {
				entries, err := rt.api.ListActivity(cmd.Context(), limit)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{e.OccurredAt.Local().Format(time.DateTime), string(e.Action), e.SubjectID, e.Message})
				}
				return p.Table(entries, []string{"When", "Action", "Subject", "Message"}, rows)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum entries (0 uses the default)")
	return cmd
}
