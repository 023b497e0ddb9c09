package cache

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/rudrakanya/Simhasth-X8/errors"
)

// Entry is one cached response: body, headers, status and the explicit
// insertion timestamp eviction ordering relies on.
type Entry struct {
	// Key is the logical request key: method + " " + normalized URL.
	Key      string      `json:"key"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body,omitempty"`
	StoredAt time.Time   `json:"stored_at"`
}

// envelope is the stored representation. The body may be gzip-compressed;
// the flag travels with the data so decode never guesses.
type envelope struct {
	Key        string      `json:"key"`
	Status     int         `json:"status"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body,omitempty"`
	StoredAt   time.Time   `json:"stored_at"`
	Compressed bool        `json:"compressed,omitempty"`
}

// NewEntry builds an entry stamped with the current time.
func NewEntry(key string, status int, header http.Header, body []byte) *Entry {
	return &Entry{
		Key:      key,
		Status:   status,
		Header:   cloneHeader(header),
		Body:     body,
		StoredAt: time.Now().UTC(),
	}
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	return h.Clone()
}

// Encode serializes the entry. Bodies at or above compressThreshold are
// gzip-compressed when that actually shrinks them. A threshold of zero
// disables compression.
func (e *Entry) Encode(compressThreshold int) ([]byte, error) {
	env := envelope{
		Key:      e.Key,
		Status:   e.Status,
		Header:   e.Header,
		Body:     e.Body,
		StoredAt: e.StoredAt,
	}

	if compressThreshold > 0 && len(e.Body) >= compressThreshold {
		compressed, err := gzipBytes(e.Body)
		if err == nil && len(compressed) < len(e.Body) {
			env.Body = compressed
			env.Compressed = true
		}
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.WrapInvalid(err, "cache", "Encode", "marshal entry "+e.Key)
	}
	return data, nil
}

// DecodeEntry deserializes a stored entry, transparently decompressing the
// body when needed.
func DecodeEntry(data []byte) (*Entry, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.WrapInvalid(errors.ErrEntryCorrupted, "cache", "DecodeEntry", "unmarshal")
	}

	body := env.Body
	if env.Compressed {
		decompressed, err := gunzipBytes(env.Body)
		if err != nil {
			return nil, errors.WrapInvalid(errors.ErrEntryCorrupted, "cache", "DecodeEntry", "decompress "+env.Key)
		}
		body = decompressed
	}

	return &Entry{
		Key:      env.Key,
		Status:   env.Status,
		Header:   env.Header,
		Body:     body,
		StoredAt: env.StoredAt,
	}, nil
}

// decodeMeta extracts key, timestamp and stored size without inflating the
// body. The governor uses this for cheap tier scans.
func decodeMeta(storeKey string, data []byte) (entryMeta, error) {
	var env struct {
		Key      string    `json:"key"`
		StoredAt time.Time `json:"stored_at"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return entryMeta{}, errors.WrapInvalid(errors.ErrEntryCorrupted, "cache", "decodeMeta", "unmarshal")
	}
	return entryMeta{
		StoreKey: storeKey,
		Key:      env.Key,
		StoredAt: env.StoredAt,
		Size:     int64(len(data)),
	}, nil
}

// entryMeta is the governor's view of a stored entry.
type entryMeta struct {
	StoreKey string
	Key      string
	StoredAt time.Time
	Size     int64
}

// WriteTo replays the cached response onto an HTTP response writer.
func (e *Entry) WriteTo(w http.ResponseWriter) error {
	for name, values := range e.Header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.WriteHeader(e.Status)
	_, err := w.Write(e.Body)
	return err
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
