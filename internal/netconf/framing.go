package netconf

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	endOfMessage = "]]>]]>"

	// maxChunk is the largest chunk size accepted from a peer (RFC 6242).
	maxChunk = 4294967295
)

var errBadChunk = errors.New("malformed chunk framing")

// framer reads and writes NETCONF messages over an SSH channel. It starts in
// end-of-message mode (base:1.0) and switches to chunked framing (base:1.1)
// after a hello exchange in which both peers announced base:1.1.
type framer struct {
	r       *bufio.Reader
	w       io.Writer
	chunked bool
}

func newFramer(r io.Reader, w io.Writer) *framer {
	return &framer{r: bufio.NewReader(r), w: w}
}

func (f *framer) writeMessage(msg []byte) error {
	if !f.chunked {
		_, err := f.w.Write(append(append([]byte(nil), msg...), endOfMessage...))
		return err
	}
	var buf bytes.Buffer
	buf.WriteString("\n#")
	buf.WriteString(strconv.Itoa(len(msg)))
	buf.WriteByte('\n')
	buf.Write(msg)
	buf.WriteString("\n##\n")
	_, err := f.w.Write(buf.Bytes())
	return err
}

func (f *framer) readMessage() ([]byte, error) {
	if f.chunked {
		return f.readChunked()
	}
	return f.readEOM()
}

func (f *framer) readEOM() ([]byte, error) {
	var buf bytes.Buffer
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(b)
		if b == '>' && bytes.HasSuffix(buf.Bytes(), []byte(endOfMessage)) {
			out := buf.Bytes()[:buf.Len()-len(endOfMessage)]
			return bytes.TrimSpace(out), nil
		}
	}
}

func (f *framer) readChunked() ([]byte, error) {
	var msg bytes.Buffer
	for {
		if err := f.expect('\n'); err != nil {
			return nil, err
		}
		if err := f.expect('#'); err != nil {
			return nil, err
		}
		c, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if c == '#' {
			if err := f.expect('\n'); err != nil {
				return nil, err
			}
			return msg.Bytes(), nil
		}
		if err := f.r.UnreadByte(); err != nil {
			return nil, err
		}
		line, err := f.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.ParseUint(line[:len(line)-1], 10, 64)
		if err != nil || size == 0 || size > maxChunk {
			return nil, fmt.Errorf("%w: chunk size %q", errBadChunk, line[:len(line)-1])
		}
		if _, err := io.CopyN(&msg, f.r, int64(size)); err != nil {
			return nil, err
		}
	}
}

func (f *framer) expect(want byte) error {
	got, err := f.r.ReadByte()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: expected %q, got %q", errBadChunk, want, got)
	}
	return nil
}
