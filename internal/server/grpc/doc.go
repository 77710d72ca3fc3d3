// Package grpcserver hosts the gRPC server for tideline. It registers the
// standard grpc.health.v1 service, driven by the runtime health check, and
// server reflection.
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: config.Default()})
//	s := grpcserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":50051")
package grpcserver
