package mcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordsForBytes_RoundsUpToEven(t *testing.T) {
	assert.Equal(t, uint16(1), wordsForBytes(1))
	assert.Equal(t, uint16(1), wordsForBytes(2))
	assert.Equal(t, uint16(2), wordsForBytes(3))
	assert.Equal(t, uint16(2), wordsForBytes(4))
	assert.Equal(t, uint16(3), wordsForBytes(5))
}

func TestMappingList_AppendAndPreMappedWords(t *testing.T) {
	list := newMappingList()

	off, err := list.append(0x100, 2)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), off)

	off, err = list.append(0x104, 3)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), off)

	assert.Equal(t, uint16(1+2), list.preMappedWords())
	assert.Equal(t, 2, list.count())
}

func TestMappingList_FullRejectsFurtherAppends(t *testing.T) {
	list := newMappingList()
	for i := 0; i < MaxMappedReg; i++ {
		_, err := list.append(uint16(0x100+i), 2)
		require.NoError(t, err)
	}
	_, err := list.append(0x200, 2)
	assert.Error(t, err)
}

func TestMappingList_PopLastReversesAppend(t *testing.T) {
	list := newMappingList()
	_, err := list.append(0x100, 2)
	require.NoError(t, err)
	_, err = list.append(0x104, 4)
	require.NoError(t, err)

	entry, err := list.popLast()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x104), entry.addr)
	assert.Equal(t, 1, list.count())
}

func TestMappingList_PopLastOnEmptyErrors(t *testing.T) {
	list := newMappingList()
	_, err := list.popLast()
	assert.Error(t, err)
}

func TestMappingList_IndexOf(t *testing.T) {
	list := newMappingList()
	_, _ = list.append(0x100, 2)
	_, _ = list.append(0x104, 2)

	assert.Equal(t, 1, list.indexOf(0x104))
	assert.Equal(t, -1, list.indexOf(0x200))
}
