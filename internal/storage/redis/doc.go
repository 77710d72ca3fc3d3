// Package redisstore implements logstore.Backend on Redis Streams.
//
// Every tideline stream is one Redis stream key. Entry ids are the server
// assigned "<ms>-<seq>" ids, which map one to one onto id.ID. Max-length
// retention uses XADD MAXLEN ~ and age retention uses XTRIM MINID; servers
// older than 6.2 reject MINID and TrimMinID then reports
// logstore.ErrUnsupported so callers can fall back to XDEL.
package redisstore
