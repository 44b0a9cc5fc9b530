package util

import "sync"

// ReadBufSize is the default chunk size for socket REPL reads.  Each
// chunk is treated as one physical input line.
const ReadBufSize = 2000

// BufPool provides reusable read buffers for connection handlers so that
// a burst of short-lived sessions does not churn the allocator.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ReadBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer of at least size bytes.  Callers must
// return it with [PutBuf] when finished.
func GetBuf(size int) *[]byte {
	buf := BufPool.Get().(*[]byte)
	if cap(*buf) < size {
		b := make([]byte, size)
		return &b
	}
	*buf = (*buf)[:size]
	return buf
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
