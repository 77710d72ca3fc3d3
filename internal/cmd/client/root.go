package client

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewRoot constructs a root Cobra command for the tideline client.
// It registers the stream command group and the health probe.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "tideline",
		Short: "tideline client commands",
	}
	root.AddCommand(NewStreamCommand(baseURL))
	root.AddCommand(NewHealthCommand())
	return root
}

// NewHealthCommand checks the server through the gRPC health service.
func NewHealthCommand() *cobra.Command {
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("grpc")
			service, _ := cmd.Flags().GetString("service")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			conn, err := dialGRPC(addr)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", res.GetStatus())
			if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("server is %s", res.GetStatus())
			}
			return nil
		},
	}
	healthCmd.Flags().String("grpc", grpcAddrFromEnv(), "gRPC address (env TIDELINE_GRPC)")
	healthCmd.Flags().String("service", "", "Health service name (empty = overall)")
	healthCmd.Flags().Duration("timeout", 3*time.Second, "Check timeout")
	return healthCmd
}
