// Compression helpers to reduce the size of documents kept in Redis.
// Feed documents are verbose XML and shrink well.

package cache

import (
	"bytes"
	"compress/gzip"

	"github.com/vmihailenco/msgpack/v5"
)

func compressObj(obj interface{}) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)

	if err := msgpack.NewEncoder(w).Encode(obj); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decompressObj(data []byte, obj interface{}) error {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer r.Close()

	return msgpack.NewDecoder(r).Decode(obj)
}
