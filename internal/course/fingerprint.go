package course

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/garyellow/tis-sync-go/internal/textutil"
)

// fingerprintFields is the fixed field set covered by the content hash.
// The id, timestamps and the embedding are deliberately excluded so that
// identity assignment and re-embedding never look like content changes.
var fingerprintFields = []string{
	"campus", "system", "category",
	"class_code", "title", "start_date",
	"days", "description", "audience",
	"level", "instructor", "url", "source", "status",
}

// fingerprintView returns the normalized key to value mapping the hash
// covers. Absent values coerce to the empty string.
func (r *Record) fingerprintView() map[string]string {
	raw := map[string]string{
		"campus":      r.Campus,
		"system":      r.System,
		"category":    r.Category,
		"class_code":  r.ClassCode,
		"title":       r.Title,
		"start_date":  r.StartDate,
		"days":        r.Days,
		"description": r.Description,
		"audience":    r.Audience,
		"level":       r.Level,
		"instructor":  r.Instructor,
		"url":         r.URL,
		"source":      r.Source,
		"status":      r.Status,
	}

	view := make(map[string]string, len(fingerprintFields))
	for _, key := range fingerprintFields {
		view[key] = textutil.Normalize(raw[key])
	}
	return view
}

// Fingerprint returns the 64-character hex content hash of the record,
// SHA-256 over the canonical JSON of the normalized field view.
func (r *Record) Fingerprint() (string, error) {
	canonical, err := r.canonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON serializes the fingerprint view in the store's hash
// convention: keys sorted, `", "` between pairs, `": "` between key and
// value, multibyte characters kept as UTF-8. Hashes already persisted use
// this exact byte layout, so it must never change.
func (r *Record) canonicalJSON() ([]byte, error) {
	view := r.fingerprintView()
	keys := make([]string, 0, len(view))
	for key := range view {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		if err := writeJSONString(&buf, key); err != nil {
			return nil, err
		}
		buf.WriteString(": ")
		if err := writeJSONString(&buf, view[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
