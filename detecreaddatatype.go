package symbiomisc

import (
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

var byteCodeSigs = map[DataType][]byte{
	DataTypeGzip:  {0x1f, 0x8b, 0x08},
	DataTypeZip:   {0x50, 0x4b, 0x03, 0x04},
	DataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	DataTypeZ:     {0x1f, 0x9d},
	DataTypeBZip2: {0x42, 0x5a, 0x68},
}

// DetectDataType attempts to detect the data type of a stream by checking
// against a set of known data types. Byte code signatures from
// https://stackoverflow.com/a/19127748/199475
func DetectDataType(r io.Reader) (DataType, error) {
	buff := make([]byte, 6)
	n, err := io.ReadFull(r, buff)
	if err == io.EOF {
		// An empty table is still plain text
		return DataTypeNoCompression, nil
	} else if err != nil && err != io.ErrUnexpectedEOF {
		return DataTypeInvalid, err
	}
	buff = buff[:n]

	// Match known signatures
Outer:
	for dt, sig := range byteCodeSigs {
		if len(buff) < len(sig) {
			continue
		}
		for position := range sig {
			if buff[position] != sig[position] {
				continue Outer
			}
		}
		return dt, nil
	}

	return DataTypeNoCompression, nil
}

// MaybeDecompressReader sniffs the leading bytes of r and, if they match a
// known compression format, wraps r in the matching decompressor. The reader is
// rewound before it is returned.
func MaybeDecompressReader(r io.ReadSeeker) (io.Reader, error) {
	dt, err := DetectDataType(r)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch dt {
	case DataTypeGzip:
		return gzip.NewReader(r)
	case DataTypeZip:
		// Only the first member of an archive is read
		zr := zipstream.NewReader(r)
		if _, err := zr.Next(); err != nil {
			return nil, err
		}
		return zr, nil
	case DataTypeBZip2:
		return bzip2.NewReader(r), nil
	case DataTypeXZ:
		return xz.NewReader(r, 0)
	case DataTypeZ:
		// Unix compress grows LZW codes to 16 bits; compress/lzw stops at 12
		return nil, fmt.Errorf("unix compress (.Z) input is not supported; recompress with gzip or xz")
	}

	// No data type detected. For now, we assume this is uncompressed.
	return r, nil
}
