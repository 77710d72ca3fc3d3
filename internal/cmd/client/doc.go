// Package client provides the `tideline` command-line client.
//
// The CLI talks to the tideline HTTP API for stream operations and to the
// gRPC health service for probes. It is primarily intended for developers
// and operators.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. The standalone binary reads TIDELINE_HTTP and
// defaults to http://127.0.0.1:8080. The gRPC address is read from
// TIDELINE_GRPC (default 127.0.0.1:50051).
//
// Usage
//
//	tideline stream write --stream prices --data '{"timestamp":1700000000000,"symbol":"BTC","price":64000}'
//	tideline stream write --stream prices --data '{"symbol":"ETH"}' --max-len 1000
//
//	tideline stream read --stream prices --ordered
//	tideline stream tail --stream prices --after 1700000000000-0 --limit 10
//
//	tideline stream latest --stream prices --field symbol --value BTC
//	tideline stream delete --stream prices --field symbol --value BTC
//	tideline stream delete --stream prices --filter 'event.price > 100.0'
//
//	tideline stream trim --stream prices --older-than 24h
//	tideline stream drop --stream prices --confirm
//
//	# Follow the % movement of a numeric field over a window
//	tideline stream watch --stream prices --field price --lookback 5m
//
//	tideline health
//
// Notes
//
//   - tail and watch replay the stream from the first entry unless --after
//     is given, then follow new writes over SSE.
//   - delete and latest take --value as a JSON literal when it parses
//     (42, true, "x") and as a plain string otherwise.
package client
