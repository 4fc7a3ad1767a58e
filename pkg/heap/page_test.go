package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linpingchuan/ledgerdb/pkg/ids"
	"github.com/linpingchuan/ledgerdb/pkg/tuple"
)

func twoIntDesc(t *testing.T) *tuple.Description {
	t.Helper()
	desc, err := tuple.NewDescription([]tuple.FieldType{tuple.IntType, tuple.IntType}, nil)
	require.NoError(t, err)
	return desc
}

func TestNewEmpty_TwoIntFields_484EmptySlots(t *testing.T) {
	desc := twoIntDesc(t)
	pid := ids.NewPageID(1, 0)

	p := NewEmpty(pid, desc)

	require.Equal(t, 504, p.NumSlots())
	require.Equal(t, 504, p.NumEmptySlots())

	for i := 0; i < 20; i++ {
		tup := tuple.New(desc)
		require.NoError(t, tup.SetField(0, tuple.NewIntField(int32(i))))
		require.NoError(t, tup.SetField(1, tuple.NewIntField(int32(i*2))))
		_, err := p.InsertTuple(tup)
		require.NoError(t, err)
	}

	require.Equal(t, 484, p.NumEmptySlots())
	require.True(t, p.SlotUsed(1))
	require.False(t, p.SlotUsed(20))
}

func TestParse_RoundTripsThroughBytes(t *testing.T) {
	desc := twoIntDesc(t)
	pid := ids.NewPageID(1, 0)

	p := NewEmpty(pid, desc)
	tup := tuple.New(desc)
	require.NoError(t, tup.SetField(0, tuple.NewIntField(7)))
	require.NoError(t, tup.SetField(1, tuple.NewIntField(9)))
	slot, err := p.InsertTuple(tup)
	require.NoError(t, err)

	reparsed, err := Parse(pid, desc, p.Bytes())
	require.NoError(t, err)

	require.Equal(t, 503, reparsed.NumEmptySlots())
	got, ok := reparsed.TupleAt(int(slot))
	require.True(t, ok)
	f0, err := got.Field(0)
	require.NoError(t, err)
	require.Equal(t, tuple.NewIntField(7), f0)
}

func TestDeleteTuple_FreesSlot(t *testing.T) {
	desc := twoIntDesc(t)
	pid := ids.NewPageID(1, 0)
	p := NewEmpty(pid, desc)

	tup := tuple.New(desc)
	require.NoError(t, tup.SetField(0, tuple.NewIntField(1)))
	require.NoError(t, tup.SetField(1, tuple.NewIntField(2)))
	slot, err := p.InsertTuple(tup)
	require.NoError(t, err)
	require.Equal(t, 503, p.NumEmptySlots())

	require.NoError(t, p.DeleteTuple(slot))
	require.Equal(t, 504, p.NumEmptySlots())
	require.False(t, p.SlotUsed(int(slot)))
}

func TestBeforeImage_SnapshotsAtConstructionOrParse(t *testing.T) {
	desc := twoIntDesc(t)
	pid := ids.NewPageID(1, 0)
	p := NewEmpty(pid, desc)

	tup := tuple.New(desc)
	require.NoError(t, tup.SetField(0, tuple.NewIntField(1)))
	require.NoError(t, tup.SetField(1, tuple.NewIntField(2)))
	_, err := p.InsertTuple(tup)
	require.NoError(t, err)

	before := p.BeforeImage()
	bp, ok := before.(*Page)
	require.True(t, ok)
	require.Equal(t, 504, bp.NumEmptySlots())

	p.SetBeforeImage()
	afterSnapshot := p.BeforeImage().(*Page)
	require.Equal(t, 503, afterSnapshot.NumEmptySlots())
}
