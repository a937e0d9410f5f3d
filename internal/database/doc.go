// Package database provides the SQLite upload history for mediadrop.
//
// Every successful upload is recorded with its content digest, the URL it
// was published at, which path served it (a Blossom server or the fallback
// sink) and which transcode tier produced the bytes. The history is a local
// log for the gateway and the CLI; nothing is synchronized with servers.
//
// The database uses WAL mode and creates its schema on open.
package database
