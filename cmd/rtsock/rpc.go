package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func rpcCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rpc <id> [payload]",
		Short: "Call a server RPC function and print its reply",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			socket, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer socket.Close(ctx)

			var payload string
			if len(args) == 2 {
				payload = args[1]
			}
			reply, err := socket.RPC(ctx, args[0], payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Payload)
			return nil
		},
	}
}
