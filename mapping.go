package mcb

import "github.com/pkg/errors"

// mappingEntry is one slave-side register mapped into a cyclic channel.
type mappingEntry struct {
	addr      uint16
	sizeBytes uint16
}

// mappingList is an ordered, append/pop-at-end list of mapped registers,
// §4.4. Entries are appended only on slave ACK and removed from the end
// only — mapping changes are only safe while the instance is not cyclic.
type mappingList struct {
	entries     []mappingEntry
	mappedWords uint16
}

func newMappingList() *mappingList {
	return &mappingList{entries: make([]mappingEntry, 0, MaxMappedReg)}
}

func (l *mappingList) count() int { return len(l.entries) }

// wordsForBytes is the round-up-to-word conversion of §4.4:
// (size_bytes + (size_bytes & 1)) >> 1.
func wordsForBytes(sizeBytes uint16) uint16 {
	return (sizeBytes + (sizeBytes & 1)) >> 1
}

// indexOf returns the index of addr in the list, or -1.
func (l *mappingList) indexOf(addr uint16) int {
	for i, e := range l.entries {
		if e.addr == addr {
			return i
		}
	}
	return -1
}

// preMappedWords returns mappedWords as it stood before the pending
// append, i.e. the offset at which the new entry's words will begin.
func (l *mappingList) preMappedWords() uint16 { return l.mappedWords }

// append adds (addr, sizeBytes) to the end of the list and returns the
// word offset at which its data begins.
func (l *mappingList) append(addr, sizeBytes uint16) (uint16, error) {
	if len(l.entries) >= MaxMappedReg {
		return 0, errors.Errorf("mcb: mapping list full (max %d entries)", MaxMappedReg)
	}
	offset := l.mappedWords
	l.entries = append(l.entries, mappingEntry{addr: addr, sizeBytes: sizeBytes})
	l.mappedWords += wordsForBytes(sizeBytes)
	return offset, nil
}

// popLast removes the last entry, subtracts its words from mappedWords,
// and returns the removed entry.
func (l *mappingList) popLast() (mappingEntry, error) {
	if len(l.entries) == 0 {
		return mappingEntry{}, errors.New("mcb: mapping list empty")
	}
	last := l.entries[len(l.entries)-1]
	l.entries = l.entries[:len(l.entries)-1]
	l.mappedWords -= wordsForBytes(last.sizeBytes)
	return last, nil
}

// clear truncates the list to empty.
func (l *mappingList) clear() {
	l.entries = l.entries[:0]
	l.mappedWords = 0
}
