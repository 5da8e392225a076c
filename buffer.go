package netcore

// Buffer is a growable byte container with an explicit logical size
// separate from its backing capacity. It is the canonical storage used by
// stream sessions (send/receive queues) and HTTP messages (the single
// backing buffer that is both parsed and emitted).
//
// Buffer is NOT safe for concurrent use; each owner serializes its own
// access (session.go does this under send_lock, http_message.go relies on
// the owning session's single-threaded parse path).
type Buffer struct {
	data []byte
	size int
}

// NewBuffer returns an empty buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Size returns the logical number of valid bytes.
func (b *Buffer) Size() int { return b.size }

// Capacity returns the length of the backing array.
func (b *Buffer) Capacity() int { return len(b.data) }

// Bytes returns the valid prefix of the backing array. The slice aliases
// the buffer's storage and is only valid until the next mutating call.
func (b *Buffer) Bytes() []byte { return b.data[:b.size] }

// At returns the byte at the given logical offset.
func (b *Buffer) At(offset int) byte { return b.data[offset] }

// Reserve grows the backing array so that it can hold at least n bytes,
// doubling capacity (starting from 1) until it does. A no-op if the
// buffer already has enough capacity.
func (b *Buffer) Reserve(n int) {
	if n <= len(b.data) {
		return
	}
	newCap := len(b.data)
	if newCap == 0 {
		newCap = 1
	}
	for newCap < n {
		newCap *= 2
	}
	grown := make([]byte, newCap)
	copy(grown, b.data[:b.size])
	b.data = grown
}

// Resize sets the logical size to n. If n is smaller than the current
// size this truncates; if larger, the newly exposed bytes are zero-filled.
func (b *Buffer) Resize(n int) {
	b.Reserve(n)
	if n > b.size {
		for i := b.size; i < n; i++ {
			b.data[i] = 0
		}
	}
	b.size = n
}

// Append adds bytes to the end of the buffer, growing capacity
// geometrically as needed, and returns the offset they were written at.
func (b *Buffer) Append(p []byte) int {
	offset := b.size
	b.Reserve(b.size + len(p))
	copy(b.data[b.size:], p)
	b.size += len(p)
	return offset
}

// AppendString UTF-8 encodes and appends text, returning the offset it was
// written at.
func (b *Buffer) AppendString(s string) int {
	return b.Append([]byte(s))
}

// Clear resets the logical size to 0 without releasing the backing array.
func (b *Buffer) Clear() {
	b.size = 0
}

// ExtractString decodes length bytes at offset as UTF-8 text.
func (b *Buffer) ExtractString(offset, length int) string {
	return string(b.data[offset : offset+length])
}

// ExtractBytes returns a copy of length bytes at offset.
func (b *Buffer) ExtractBytes(offset, length int) []byte {
	out := make([]byte, length)
	copy(out, b.data[offset:offset+length])
	return out
}
