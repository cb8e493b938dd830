package filter

import "github.com/robert-malhotra/go-scdior/internal/message"

// Shuffle stores byte j of every element together, one plane per byte
// position. Its client data holds the element size.
type Shuffle struct {
	size int
}

func NewShuffle(clientData []uint32) *Shuffle {
	s := &Shuffle{size: 1}
	if len(clientData) > 0 && clientData[0] > 0 {
		s.size = int(clientData[0])
	}
	return s
}

func (s *Shuffle) ID() uint16 { return message.FilterShuffle }

func (s *Shuffle) Decode(in []byte) ([]byte, error) { return transpose(in, s.size, false), nil }
func (s *Shuffle) Encode(in []byte) ([]byte, error) { return transpose(in, s.size, true), nil }

// transpose moves whole elements of size bytes between element order and
// byte-plane order. Trailing bytes short of an element stay in place.
func transpose(in []byte, size int, toPlanes bool) []byte {
	n := len(in) / size
	if size <= 1 || n <= 1 {
		return in
	}
	out := make([]byte, len(in))
	for i := 0; i < n; i++ {
		for j := 0; j < size; j++ {
			elem, plane := i*size+j, j*n+i
			if toPlanes {
				out[plane] = in[elem]
			} else {
				out[elem] = in[plane]
			}
		}
	}
	copy(out[n*size:], in[n*size:])
	return out
}
