package arith

import (
	"bytes"
	"fmt"
	"math"

	"github.com/icza/bitio"

	"proseveil/pkg/contract"
)

// LengthBits 为帧长度字段宽度（大端无符号，单位：位）。
const LengthBits = 32

// MaxFrameBytes 为长度字段可表示的最大载荷字节数。
const MaxFrameBytes = math.MaxUint32 / 8

// Frame 在载荷前写入 32 位大端的位长度，返回帧字节与帧总位数。
func Frame(payload []byte, maxBytes uint64) ([]byte, uint64, error) {
	if maxBytes == 0 || maxBytes > MaxFrameBytes {
		maxBytes = MaxFrameBytes
	}
	if uint64(len(payload)) > maxBytes {
		return nil, 0, fmt.Errorf("%w: payload %d bytes exceeds limit %d", contract.ErrInvalidLength, len(payload), maxBytes)
	}
	var buf bytes.Buffer
	buf.Grow(LengthBits/8 + len(payload))
	w := bitio.NewWriter(&buf)
	bits := uint64(len(payload)) * 8
	if err := w.WriteBits(bits, LengthBits); err != nil {
		return nil, 0, err
	}
	if _, err := w.Write(payload); err != nil {
		return nil, 0, err
	}
	if err := w.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), LengthBits + bits, nil
}

// Unframe 为 Frame 的逆：校验长度字段并返回载荷。
func Unframe(framed []byte, maxBytes uint64) ([]byte, error) {
	u := newUnframer(maxBytes, 0)
	r := bitio.NewReader(bytes.NewReader(framed))
	for !u.done() {
		b, err := r.ReadBool()
		if err != nil {
			return nil, fmt.Errorf("%w: frame ends after %d bits", contract.ErrTruncatedCiphertext, u.seen)
		}
		if err := u.push(b); err != nil {
			return nil, err
		}
	}
	return u.payload()
}

// unframer 逐位接收解码结果：前 32 位为长度，随后恰好 length 位为载荷，其余丢弃。
type unframer struct {
	maxBits uint64
	budget  uint64 // 输入最多能产生的位数（含长度字段）；0 表示不限
	length  uint64
	seen    uint64 // 已接收的有效位（含长度字段）
	buf     bytes.Buffer
	w       *bitio.Writer
}

// newUnframer 创建流式解帧器。budget 为输入最多能产生的位数，
// 长度字段超出它时直接判为 ErrInvalidLength，而不是等输入耗尽。
func newUnframer(maxBytes, budget uint64) *unframer {
	if maxBytes == 0 || maxBytes > MaxFrameBytes {
		maxBytes = MaxFrameBytes
	}
	u := &unframer{maxBits: maxBytes * 8, budget: budget}
	u.w = bitio.NewWriter(&u.buf)
	return u
}

// push 追加一位；长度字段读满时立即校验。
func (u *unframer) push(bit bool) error {
	if u.done() {
		return nil
	}
	if u.seen < LengthBits {
		u.length <<= 1
		if bit {
			u.length |= 1
		}
		u.seen++
		if u.seen == LengthBits {
			if u.length%8 != 0 {
				return fmt.Errorf("%w: %d bits is not a whole number of bytes", contract.ErrInvalidLength, u.length)
			}
			if u.length > u.maxBits {
				return fmt.Errorf("%w: %d bits exceeds limit %d", contract.ErrInvalidLength, u.length, u.maxBits)
			}
			if u.budget > 0 && LengthBits+u.length > u.budget {
				return fmt.Errorf("%w: %d bits cannot come from input carrying at most %d", contract.ErrInvalidLength, u.length, u.budget)
			}
		}
		return nil
	}
	u.seen++
	return u.w.WriteBool(bit)
}

// pushRun 追加 n 个相同的位。
func (u *unframer) pushRun(bit bool, n uint64) error {
	for ; n > 0 && !u.done(); n-- {
		if err := u.push(bit); err != nil {
			return err
		}
	}
	return nil
}

// need 返回所需总位数；长度字段未读满时返回 0。
func (u *unframer) need() uint64 {
	if u.seen < LengthBits {
		return 0
	}
	return LengthBits + u.length
}

func (u *unframer) done() bool { return u.seen >= LengthBits && u.seen == LengthBits+u.length }

// payload 返回完整载荷；只应在 done() 之后调用。
func (u *unframer) payload() ([]byte, error) {
	if !u.done() {
		return nil, fmt.Errorf("%w: got %d of %d bits", contract.ErrTruncatedCiphertext, u.seen, u.need())
	}
	if err := u.w.Close(); err != nil {
		return nil, err
	}
	out := u.buf.Bytes()
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

// bitSource 按位读取帧；帧读完后补 1,0,0,…，使目标值落在可接受区间的中点，
// 保证有限步内所有帧位都能被确定。
type bitSource struct {
	r      *bitio.Reader
	left   uint64
	padded bool
}

func newBitSource(framed []byte, bits uint64) *bitSource {
	return &bitSource{r: bitio.NewReader(bytes.NewReader(framed)), left: bits}
}

func (s *bitSource) next() (uint64, error) {
	if s.left > 0 {
		s.left--
		b, err := s.r.ReadBool()
		if err != nil {
			return 0, err
		}
		if b {
			return 1, nil
		}
		return 0, nil
	}
	if !s.padded {
		s.padded = true
		return 1, nil
	}
	return 0, nil
}
