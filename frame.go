package mcb

import "github.com/pkg/errors"

// Frame is one wire-level exchange, §3/§6: a header word, a 4-word config
// payload, an optional 0..MaxCyclicWords-word cyclic payload, and a
// trailing CRC word when calcCRC is set.
//
//	idx 0        header
//	idx 1..4     config payload
//	idx 5..N-1   cyclic payload (0..10 words)
//	idx N        CRC (if calcCRC)
type Frame struct {
	Buf  [MaxDataWords]uint16
	Size uint16 // size_words, words actually populated in Buf
}

// packHeader packs pending:1 | cmd:3 | addr:12, LSB-first as spec.md §3/§6.
func packHeader(addr, cmd, pending uint16) uint16 {
	return pending&0x1 | (cmd&0x7)<<1 | (addr&0xfff)<<4
}

func (f Frame) headerWord() uint16 { return f.Buf[0] }

// HeaderAddr extracts the 12-bit address from the frame's header word.
func (f Frame) HeaderAddr() uint16 { return (f.headerWord() >> 4) & 0xfff }

// HeaderCmd extracts the 3-bit command from the frame's header word.
func (f Frame) HeaderCmd() uint16 { return (f.headerWord() >> 1) & 0x7 }

// HeaderPending extracts the pending (segmentation) bit.
func (f Frame) HeaderPending() uint16 { return f.headerWord() & 0x1 }

// CreateConfig writes the header and 4-word config payload, §4.1. cfgSrc
// may be nil, in which case the config payload is zero-filled. When
// calcCRC is true a CRC word is appended and Size becomes 6; otherwise
// Size is 5.
func (f *Frame) CreateConfig(addr, cmd, pending uint16, cfgSrc []uint16, calcCRC bool) error {
	if addr > 0xfff {
		return errors.Errorf("mcb: address 0x%x exceeds 12 bits", addr)
	}
	if cmd > 0x7 {
		return errors.Errorf("mcb: command %d exceeds 3 bits", cmd)
	}
	if cfgSrc != nil && len(cfgSrc) != ConfigWords {
		return errors.Errorf("mcb: config payload must be %d words, got %d", ConfigWords, len(cfgSrc))
	}

	f.Buf[0] = packHeader(addr, cmd, pending)
	for i := 0; i < ConfigWords; i++ {
		if cfgSrc != nil {
			f.Buf[1+i] = cfgSrc[i]
		} else {
			f.Buf[1+i] = 0
		}
	}
	f.Size = 1 + ConfigWords

	if calcCRC {
		crc := defaultCRC.Sum(f.Buf[:f.Size])
		f.Buf[f.Size] = crc
		f.Size++
	}
	return nil
}

// AppendCyclic copies nWords of cyclic payload into the frame starting at
// index 5, §4.1. A fresh CRC is computed over the full composite frame
// when calcCRC is set. nWords must not exceed MaxCyclicWords.
func (f *Frame) AppendCyclic(src []uint16, nWords int, calcCRC bool) error {
	if nWords > MaxCyclicWords {
		return errors.Errorf("mcb: cyclic payload of %d words exceeds max %d", nWords, MaxCyclicWords)
	}
	if nWords > 0 && len(src) < nWords {
		return errors.Errorf("mcb: cyclic source has %d words, need %d", len(src), nWords)
	}
	// AppendCyclic expects a frame already populated by CreateConfig
	// (Size == 5, no CRC yet) so the cyclic block lands at offset 5.
	base := uint16(1 + ConfigWords)
	for i := 0; i < nWords; i++ {
		f.Buf[base+uint16(i)] = src[i]
	}
	f.Size = base + uint16(nWords)
	if calcCRC {
		crc := defaultCRC.Sum(f.Buf[:f.Size])
		f.Buf[f.Size] = crc
		f.Size++
	}
	return nil
}

// ReadConfigInto copies the 4-word config payload out of the frame.
func (f Frame) ReadConfigInto(dst []uint16) error {
	if len(dst) < ConfigWords {
		return errors.New("mcb: destination too small for config payload")
	}
	copy(dst, f.Buf[1:1+ConfigWords])
	return nil
}

// ReadCyclicInto copies nWords of cyclic payload out of the frame.
func (f Frame) ReadCyclicInto(dst []uint16, nWords int) error {
	if nWords > MaxCyclicWords {
		return errors.Errorf("mcb: cyclic read of %d words exceeds max %d", nWords, MaxCyclicWords)
	}
	if len(dst) < nWords {
		return errors.New("mcb: destination too small for cyclic payload")
	}
	base := 1 + ConfigWords
	for i := 0; i < nWords; i++ {
		dst[i] = f.Buf[base+i]
	}
	return nil
}

// CRCOk recomputes the CRC over the leading sizeInclCRC-1 words and
// compares it to the trailing word, §4.1.
func (f Frame) CRCOk(sizeInclCRC uint16) bool {
	if sizeInclCRC < 1 || int(sizeInclCRC) > len(f.Buf) {
		return false
	}
	return defaultCRC.Check(f.Buf[:sizeInclCRC])
}

var defaultCRC = CRCCCITT{}
