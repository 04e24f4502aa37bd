package arith

// 32 位定点区间，中间量用 uint64 容纳 range*cum 的乘积。
const (
	CodeBits     = 32
	topValue     = uint64(1)<<CodeBits - 1
	half         = uint64(1) << (CodeBits - 1)
	firstQuarter = half >> 1
	thirdQuarter = half + firstQuarter
)

// span 为一次重整化的分类。
type span int

const (
	spanNone   span = iota
	spanLower       // 落在下半区：确定位 0
	spanUpper       // 落在上半区：确定位 1
	spanMiddle      // 跨越中点但在中间半区：下溢，位待定
)

// interval 为加密端与解密端共用的编码区间 [low, high]（闭区间）。
// 两端共享同一份收窄与重整化逻辑，阈值与精度天然一致。
type interval struct {
	low, high uint64
	pending   uint64 // 下溢累计：下一个确定位之后需补的反码位数
	resolved  uint64 // 已确定的位数
}

func newInterval() interval { return interval{low: 0, high: topValue} }

// narrow 把区间收窄到 [lo,hi)/total 对应的子区间。
func (iv *interval) narrow(lo, hi, total uint64) {
	rng := iv.high - iv.low + 1
	iv.high = iv.low + rng*hi/total - 1
	iv.low = iv.low + rng*lo/total
}

func (iv *interval) classify() span {
	switch {
	case iv.high < half:
		return spanLower
	case iv.low >= half:
		return spanUpper
	case iv.low >= firstQuarter && iv.high < thirdQuarter:
		return spanMiddle
	default:
		return spanNone
	}
}

// renormalize 反复放大区间直到其跨越中点且覆盖超过一半。
// 每次放大前回调 visit：s 为分类，settled 为本次随确定位一起落定的下溢位数
// （确定位 b 之后紧跟 settled 个 1-b）。visit 负责调整各自的游标（值窗口或输出）。
func (iv *interval) renormalize(visit func(s span, settled uint64) error) error {
	for {
		s := iv.classify()
		var settled uint64
		switch s {
		case spanNone:
			return nil
		case spanLower:
			settled, iv.pending = iv.pending, 0
			iv.resolved += 1 + settled
		case spanUpper:
			settled, iv.pending = iv.pending, 0
			iv.resolved += 1 + settled
			iv.low -= half
			iv.high -= half
		case spanMiddle:
			iv.pending++
			iv.low -= firstQuarter
			iv.high -= firstQuarter
		}
		if err := visit(s, settled); err != nil {
			return err
		}
		iv.low <<= 1
		iv.high = iv.high<<1 | 1
	}
}
