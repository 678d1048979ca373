// package repositories provides the persistence layer.
//
// TokenRepository stores OAuth token sets per named profile so sessions
// survive restarts. UploadRepository keeps a local record of completed
// uploads, keyed by checksum, for the upload history command.
package repositories
