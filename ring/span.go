package ring

// WrappedSpan is a non-owning pair of contiguous byte spans whose
// concatenation represents a logical byte range that may cross the ring
// buffer's wrap point. First is the span running from the access point to
// the end of the backing array (or the whole range, if no wrap occurs);
// Second is the remainder, starting at the beginning of the backing array.
type WrappedSpan struct {
	First  []byte
	Second []byte
}

// Len returns First's length plus Second's length.
func (w WrappedSpan) Len() int {
	return len(w.First) + len(w.Second)
}

// At returns the byte at logical index i, panicking if i is out of range.
func (w WrappedSpan) At(i int) byte {
	if i < len(w.First) {
		return w.First[i]
	}
	return w.Second[i-len(w.First)]
}

// Slice returns the logical sub-range [offset, offset+length). Passing a
// negative length means "to the end of the span".
func (w WrappedSpan) Slice(offset int, length int) WrappedSpan {
	total := w.Len()
	if length < 0 {
		length = total - offset
	}
	if offset < 0 || length < 0 || offset+length > total {
		panic("ring: WrappedSpan.Slice out of range")
	}

	end := offset + length
	var out WrappedSpan
	if offset < len(w.First) {
		firstEnd := min(end, len(w.First))
		out.First = w.First[offset:firstEnd]
	}
	if end > len(w.First) {
		secondStart := max(offset, len(w.First)) - len(w.First)
		out.Second = w.Second[secondStart : end-len(w.First)]
	}
	return out
}

// ToArray copies the full logical range into a single freshly-allocated
// slice.
func (w WrappedSpan) ToArray() []byte {
	out := make([]byte, w.Len())
	copy(out, w.First)
	copy(out[len(w.First):], w.Second)
	return out
}

// TryRead copies the first len(p) bytes of the span into p, splitting across
// First/Second as needed. It returns false, copying nothing, if p is larger
// than the span.
func (w WrappedSpan) TryRead(p []byte) bool {
	if len(p) > w.Len() {
		return false
	}
	w.copyOut(p)
	return true
}

// TryWrite copies p into the span, splitting across First/Second as needed.
// It returns false if p is larger than the span.
func (w WrappedSpan) TryWrite(p []byte) bool {
	if len(p) > w.Len() {
		return false
	}
	w.copyIn(p)
	return true
}

func (w WrappedSpan) copyOut(dst []byte) {
	n := copy(dst, w.First)
	if n < len(dst) {
		copy(dst[n:], w.Second)
	}
}

func (w WrappedSpan) copyIn(src []byte) {
	n := copy(w.First, src)
	if n < len(src) {
		copy(w.Second, src[n:])
	}
}
