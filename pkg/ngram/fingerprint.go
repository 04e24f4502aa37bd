package ngram

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint 返回模型规范序列化的 xxhash64。
// 相同训练源与阶数的两次独立构建得到相同指纹；用于日志中核对加解密两端是否同一模型。
func (m *Model) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [binary.MaxVarintLen64]byte
	putU := func(v uint64) {
		n := binary.PutUvarint(buf[:], v)
		_, _ = h.Write(buf[:n])
	}
	putS := func(s string) {
		putU(uint64(len(s)))
		_, _ = h.WriteString(s)
	}
	putU(uint64(m.order))
	for _, t := range m.tables {
		putU(uint64(len(t.keys)))
		for _, k := range t.keys {
			putS(string(k))
			d := t.dists[k]
			putU(uint64(d.Len()))
			for i, tok := range d.tokens {
				putS(tok)
				putU(d.counts[i])
			}
		}
	}
	return h.Sum64()
}
