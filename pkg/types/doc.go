// Package types holds the shared leaf types of redshield: the copy
// scheme variant applied per checkpoint and the transfer log record.
package types
