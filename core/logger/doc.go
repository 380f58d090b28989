// Package logger records the commands a shell runs as newline delimited JSON
// events and summarizes them.
//
// Each event is a google.protobuf.Struct serialized with protojson, so logs
// can be consumed by anything that reads JSON lines.
package logger
