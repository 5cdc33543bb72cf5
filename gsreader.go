package symbiomisc

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// GSObjectReader decorates a Google Storage object handle with io.Reader and
// io.Closer. The object is opened on the first Read.
type GSObjectReader struct {
	*storage.ObjectHandle
	Context context.Context
	r       *storage.Reader
}

func (s *GSObjectReader) Read(buf []byte) (int, error) {
	if s.r == nil {
		var err error
		s.r, err = s.NewReader(s.Context)
		if err != nil {
			return 0, err
		}
	}

	return s.r.Read(buf)
}

func (s *GSObjectReader) Close() error {
	if s.r == nil {
		return nil
	}
	err := s.r.Close()
	s.r = nil
	return err
}

// IsGoogleStoragePath reports whether path names a gs:// object.
func IsGoogleStoragePath(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

// OpenGoogleStorage opens a gs://bucket/object path for reading and returns
// the object's size.
func OpenGoogleStorage(ctx context.Context, path string, client *storage.Client) (*GSObjectReader, int64, error) {
	if client == nil {
		return nil, 0, fmt.Errorf("%s: a Google Storage client is required", path)
	}

	// Detect the bucket and the path to the actual file
	pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] == "" {
		return nil, 0, fmt.Errorf("Tried to split your google storage path into bucket and object, but got %v", pathParts)
	}

	handle := client.Bucket(pathParts[0]).Object(pathParts[1])

	// Make a hard call to get the filesize
	attrs, err := handle.Attrs(ctx)
	if err != nil {
		return nil, 0, pfx.Err(fmt.Errorf("%s: %s", path, err))
	}

	return &GSObjectReader{ObjectHandle: handle, Context: ctx}, attrs.Size, nil
}
