// Package runtime wires config, storage and the stream store into a
// single-node tideline instance. It exposes Open/Close, a health check and
// accessors used by the HTTP and gRPC servers.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(ctx, runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(ctx)
//	_, _ = rt.Streams().Write(ctx, "prices", ev, 0)
package runtime
