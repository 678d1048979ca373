// package ibroadcast is a client for the iBroadcast HTTP API.
//
// The package covers authentication (OAuth 2 device-code and
// authorization-code flows, plus the deprecated password login),
// library snapshot downloads with compact-record decoding, uploads
// with checksum deduplication, and the mutation endpoints (tags,
// playlists, trash).
package ibroadcast
