package symbiomisc

import (
	"bytes"
	"context"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// ReadAll returns the full, decompressed contents of a local file or a gs://
// object. The client may be nil when no gs:// paths are used. Input tables for
// one study fit comfortably in memory, and holding them as bytes lets the
// loaders sniff delimiters and formats without reopening the source.
func ReadAll(ctx context.Context, path string, client *storage.Client) ([]byte, error) {
	var raw []byte

	if IsGoogleStoragePath(path) {
		obj, size, err := OpenGoogleStorage(ctx, path, client)
		if err != nil {
			return nil, err
		}
		defer obj.Close()

		var buf bytes.Buffer
		buf.Grow(int(size))
		if _, err := buf.ReadFrom(obj); err != nil {
			return nil, pfx.Err(err)
		}
		raw = buf.Bytes()
	} else {
		var err error
		raw, err = os.ReadFile(ExpandHome(path))
		if err != nil {
			return nil, pfx.Err(err)
		}
	}

	r, err := MaybeDecompressReader(bytes.NewReader(raw))
	if err != nil {
		return nil, pfx.Err(err)
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}
