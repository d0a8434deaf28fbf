// Package protocol holds the wire-level constants, error taxonomy and byte
// buffer primitives shared by the master and server query clients. Every
// constant here is a compatibility contract with the legacy launcher
// protocol and must not be changed.
package protocol

import "errors"

const (
	// LauncherChallenge identifies a launcher query to a game server.
	LauncherChallenge = 199
	// MasterChallenge identifies a launcher query to the master server.
	MasterChallenge = 5660028
	// MasterVersion is the master protocol revision we speak.
	MasterVersion = 2
)

// Server query response codes.
const (
	ServerGood      = 5660023
	ServerWait      = 5660024
	ServerBanned    = 5660025
	ServerSegmented = 5660031
)

// Master response codes.
const (
	MasterBeginServerList     = 0
	MasterServer              = 1
	MasterEndServerList       = 2
	MasterBanned              = 3
	MasterRequestIgnored      = 4
	MasterWrongVersion        = 5
	MasterBeginServerListPart = 6
	MasterEndServerListPart   = 7
	MasterServerBlock         = 8
)

// Segmentation preference carried in the last request byte.
const (
	SegmentAny byte = iota
	SegmentPreferSingle
	SegmentPreferSegmented
)

// MaxDatagram is the largest UDP payload either peer will send.
const MaxDatagram = 8192

var (
	ErrTimeout      = errors.New("query timed out")
	ErrMalformed    = errors.New("malformed response")
	ErrBanned       = errors.New("address banned by remote")
	ErrWrongVersion = errors.New("protocol version rejected")
	ErrIgnored      = errors.New("request ignored, flood protection")
)
