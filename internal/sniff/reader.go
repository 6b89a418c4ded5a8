package sniff

import "io"

// peekReader is a cursor over a growable front buffer. Peek extends the
// buffer to at least n bytes and returns a view without advancing the
// logical position; Read drains the buffer first, then the underlying
// source.
type peekReader struct {
	src io.Reader
	buf []byte
	err error // sticky fill error, surfaced once the buffer is drained
}

func newPeekReader(src io.Reader) *peekReader {
	return &peekReader{src: src}
}

// Peek returns a view of the next n bytes without consuming them. The view
// is shorter when the source ends first; the fill error (io.EOF included)
// is returned alongside it in that case.
func (r *peekReader) Peek(n int) ([]byte, error) {
	for len(r.buf) < n && r.err == nil {
		chunk := make([]byte, n-len(r.buf))
		m, err := r.src.Read(chunk)
		r.buf = append(r.buf, chunk[:m]...)
		r.err = err
	}
	if len(r.buf) >= n {
		return r.buf[:n], nil
	}
	return r.buf, r.err
}

func (r *peekReader) Read(p []byte) (int, error) {
	if len(r.buf) > 0 {
		n := copy(p, r.buf)
		r.buf = r.buf[n:]
		return n, nil
	}
	if r.err != nil {
		return 0, r.err
	}
	return r.src.Read(p)
}
