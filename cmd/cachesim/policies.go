package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/IvanBrykalov/cachesim/policy"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List the available eviction policies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "POLICY\tDEFAULT PARAMETERS")
		for _, name := range policy.Names() {
			params, err := policy.Default.Params(name)
			if err != nil {
				return err
			}
			if params == "" {
				params = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\n", name, params)
		}
		return tw.Flush()
	},
}

var paramsCmd = &cobra.Command{
	Use:   "params POLICY [k=v,...]",
	Short: "Show the effective parameters of a policy",
	Long: `Show the parameters a policy would run with, defaults filled in.
An optional parameter string is validated the same way 'run' does.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := "print=print"
		if len(args) == 2 && args[1] != "" {
			params = args[1] + "," + params
		}
		name, ok := policy.Default.Lookup(args[0])
		if !ok {
			name = args[0]
		}
		_, err := policy.New(name, defaultParams(1<<20), params)
		return printParams(cmd, err)
	},
}

func init() {
	rootCmd.AddCommand(policiesCmd, paramsCmd)
}
