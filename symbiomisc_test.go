package symbiomisc

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetermineDelimiterBytes(t *testing.T) {
	cases := []struct {
		in   string
		want rune
	}{
		{"sample_uid\tsample_name\tC3\n1\tKI15a_1\t10\n", '\t'},
		{"sample,colony,year\nKI15a_1,1,2015\nKI16_1,1,2016\n", ','},
	}

	for _, c := range cases {
		if got := DetermineDelimiterBytes([]byte(c.in)); got != c.want {
			t.Errorf("%q: got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMaybeDecompressReader(t *testing.T) {
	plain := []byte("sample\tC3\nKI15a_1\t10\n")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	for name, in := range map[string][]byte{"plain": plain, "gzip": buf.Bytes()} {
		r, err := MaybeDecompressReader(bytes.NewReader(in))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !bytes.Equal(got, plain) {
			t.Errorf("%s: got %q", name, got)
		}
	}
}

func TestMaybeDecompressReaderRejectsUnixCompress(t *testing.T) {
	// Header of `compress -b 16`: magic, then block mode with 16-bit codes
	in := []byte{0x1f, 0x9d, 0x90, 0x73, 0x61, 0x6d, 0x70, 0x6c, 0x65}

	dt, err := DetectDataType(bytes.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if dt != DataTypeZ {
		t.Fatalf("Expected DataTypeZ, got %v", dt)
	}

	if _, err := MaybeDecompressReader(bytes.NewReader(in)); err == nil || !strings.Contains(err.Error(), ".Z") {
		t.Fatalf("Expected a clear error for .Z input, got %v", err)
	}
}

func TestDetectDataTypeEmpty(t *testing.T) {
	dt, err := DetectDataType(bytes.NewReader(nil))
	if err != nil {
		t.Fatal(err)
	}
	if dt != DataTypeNoCompression {
		t.Errorf("got %v", dt)
	}
}

func TestReadAllLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.tsv")
	if err := os.WriteFile(path, []byte("a\tb\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadAll(context.Background(), path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "a\tb\n" {
		t.Errorf("got %q", got)
	}
}

func TestOpenGoogleStorageNeedsClient(t *testing.T) {
	if !IsGoogleStoragePath("gs://bucket/counts.tsv") || IsGoogleStoragePath("/tmp/counts.tsv") {
		t.Fatal("gs:// detection")
	}
	if _, _, err := OpenGoogleStorage(context.Background(), "gs://bucket/counts.tsv", nil); err == nil {
		t.Error("expected an error without a client")
	}
}

func TestExpandHome(t *testing.T) {
	for _, p := range []string{"gs://bucket/x", "/abs/path", "rel/path", "~user/x"} {
		if got := ExpandHome(p); got != p {
			t.Errorf("%s: changed to %s", p, got)
		}
	}
}

func TestTypedErrorsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("loading: %w", Malformed("meta.tsv", "duplicate sample identifier %q", "KI16_1"))

	var mie *MalformedInputError
	if !errors.As(err, &mie) {
		t.Fatal("errors.As failed")
	}
	if mie.Source != "meta.tsv" {
		t.Errorf("source %q", mie.Source)
	}
	if want := `malformed input meta.tsv: duplicate sample identifier "KI16_1"`; mie.Error() != want {
		t.Errorf("got %q", mie.Error())
	}
}
