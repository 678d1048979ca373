package ibroadcast

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// uploadMessagePattern extracts the track ID from the free-text upload
// success message. The server embeds it as "(<id>) uploaded successfully";
// this coupling is deliberate but fragile, so a non-match is reported as an
// unknown ID rather than a failure.
var uploadMessagePattern = regexp.MustCompile(`.*\((.*)\) uploaded successfully.*`)

// UploadResult reports the outcome of an upload. Upload success and track
// ID extraction are independent: a parsed-but-unmatched success message
// leaves TrackID empty with Uploaded still true.
type UploadResult struct {
	Uploaded bool   // false when the file was skipped via checksum dedup
	TrackID  string // empty when skipped or when the success message did not match
}

// UploadOptions adjusts a single upload.
type UploadOptions struct {
	// Label is used in log messages instead of the file path.
	Label string
	// Force uploads even when the checksum is already present.
	Force bool
}

// CalcMD5 streams the file at path through MD5 and returns the lowercase
// hex digest. The hash is a dedup key, not a security boundary.
func CalcMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsUploaded reports whether the file's checksum is already known to the
// server, fetching the checksum set on first use.
func (c *Client) IsUploaded(ctx context.Context, path string) (bool, error) {
	sum, err := CalcMD5(path)
	if err != nil {
		return false, err
	}

	md5s, err := c.checksums(ctx)
	if err != nil {
		return false, err
	}
	_, ok := md5s[sum]
	return ok, nil
}

// checksums returns the checksum set, downloading it when unknown. The set
// is invalidated by every library refresh.
func (c *Client) checksums(ctx context.Context) (map[string]struct{}, error) {
	c.mu.Lock()
	md5s := c.md5
	c.mu.Unlock()
	if md5s != nil {
		return md5s, nil
	}

	c.logger.Info("downloading MD5 checksums")

	var body string
	if c.mode == authPassword {
		form := url.Values{"user_id": {c.userID}, "token": {c.legacyToken}}
		body = form.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.syncURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setAuthHeaders(req)

	raw, env, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if env.Result != nil && !*env.Result {
		return nil, &OperationError{Mode: "sync", Message: env.Message}
	}

	var state struct {
		MD5 []string `json:"md5"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to parse sync response: %w", err)
	}

	md5s = make(map[string]struct{}, len(state.MD5))
	for _, sum := range state.MD5 {
		md5s[sum] = struct{}{}
	}

	c.mu.Lock()
	c.md5 = md5s
	c.mu.Unlock()
	return md5s, nil
}

// Upload sends the file as a multipart body, unless its checksum is
// already present and opts.Force is unset.
func (c *Client) Upload(ctx context.Context, path string, opts UploadOptions) (UploadResult, error) {
	label := opts.Label
	if label == "" {
		label = path
	}

	sum, err := CalcMD5(path)
	if err != nil {
		return UploadResult{}, err
	}

	if !opts.Force {
		md5s, err := c.checksums(ctx)
		if err != nil {
			return UploadResult{}, err
		}
		if _, ok := md5s[sum]; ok {
			c.logger.Info("skipping, already uploaded", "file", label)
			return UploadResult{}, nil
		}
	}

	c.logger.Info("uploading", "file", label)

	f, err := os.Open(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadBody(mw, f, path, c.uploadFields()))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, pr)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuthHeaders(req)

	_, env, err := c.do(req)
	if err != nil {
		return UploadResult{}, err
	}
	if env.Result != nil && !*env.Result {
		return UploadResult{}, &OperationError{Mode: "upload", Message: env.Message}
	}

	// Record the checksum so a repeat upload of the same content is a pure
	// set lookup. The set is replaced wholesale, never mutated in place, so
	// readers holding the old map see a consistent snapshot.
	c.mu.Lock()
	if c.md5 != nil {
		md5s := maps.Clone(c.md5)
		md5s[sum] = struct{}{}
		c.md5 = md5s
	}
	c.mu.Unlock()

	result := UploadResult{Uploaded: true}
	if id, ok := parseTrackID(env.Message); ok {
		result.TrackID = id
	} else {
		c.logger.Warn("upload succeeded but track ID is unknown", "file", label)
	}
	return result, nil
}

func (c *Client) uploadFields() map[string]string {
	fields := map[string]string{
		"client":  c.clientName,
		"version": c.version,
		"method":  c.clientName,
	}
	if c.mode == authPassword {
		fields["user_id"] = c.userID
		fields["token"] = c.legacyToken
	}
	return fields
}

func writeUploadBody(mw *multipart.Writer, f *os.File, path string, fields map[string]string) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := mw.WriteField("file_path", path); err != nil {
		return err
	}

	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	return mw.Close()
}

// parseTrackID extracts the track ID from an upload success message.
func parseTrackID(message string) (string, bool) {
	m := uploadMessagePattern.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}
