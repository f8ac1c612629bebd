// Package crawler holds the records, states and small interfaces shared by the
// match crawler: the Riot client, the discovery queue, the orchestrator and the
// SQLite store all speak in these types.
package crawler
