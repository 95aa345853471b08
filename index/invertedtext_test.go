package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hareql.dev/value"
)

func openTestInvertedText(t *testing.T) *InvertedText {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inverted.db")
	ix, err := OpenInvertedText(path, "test_text", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func drainTids(t *testing.T, it value.Iterator) []value.TupleId {
	t.Helper()
	var out []value.TupleId
	for {
		rec, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, rec.Tid)
	}
	return out
}

func TestTokenizeLowercasesAndSplitsOnPunctuation(t *testing.T) {
	require.Equal(t, []string{"the", "quick", "fox"}, tokenize("The Quick, Fox!"))
}

func TestInvertedTextRebuildThenFilterMatch(t *testing.T) {
	ix := openTestInvertedText(t)
	ctx := context.Background()

	recs := []value.Record{
		value.NewRecord(1, []value.Value{value.OfString("red fox jumps")}),
		value.NewRecord(2, []value.Value{value.OfString("blue whale swims")}),
		value.NewRecord(3, []value.Value{value.OfString("red whale dives")}),
	}
	require.NoError(t, ix.Rebuild(ctx, value.NewSliceIterator(recs), []int{0}))

	matchRed := value.Atomic{Column: 0, Op: value.Match, Values: []value.Value{value.OfString("red")}}
	require.True(t, ix.CanProcess(matchRed))
	iter, err := ix.Filter(ctx, matchRed)
	require.NoError(t, err)
	require.ElementsMatch(t, []value.TupleId{1, 3}, drainTids(t, iter))
}

func TestInvertedTextFilterExactEqual(t *testing.T) {
	ix := openTestInvertedText(t)
	ctx := context.Background()

	recs := []value.Record{
		value.NewRecord(1, []value.Value{value.OfString("exact phrase one")}),
		value.NewRecord(2, []value.Value{value.OfString("exact phrase two")}),
	}
	require.NoError(t, ix.Rebuild(ctx, value.NewSliceIterator(recs), []int{0}))

	eq := value.Atomic{Column: 0, Op: value.Equal, Values: []value.Value{value.OfString("exact phrase two")}}
	iter, err := ix.Filter(ctx, eq)
	require.NoError(t, err)
	require.Equal(t, []value.TupleId{2}, drainTids(t, iter))
}

func TestInvertedTextAndCompoundPredicateIntersects(t *testing.T) {
	ix := openTestInvertedText(t)
	ctx := context.Background()

	recs := []value.Record{
		value.NewRecord(1, []value.Value{value.OfString("red fox")}),
		value.NewRecord(2, []value.Value{value.OfString("red whale")}),
		value.NewRecord(3, []value.Value{value.OfString("blue fox")}),
	}
	require.NoError(t, ix.Rebuild(ctx, value.NewSliceIterator(recs), []int{0}))

	and := value.Compound{
		Connector: value.And,
		Left:      value.Atomic{Column: 0, Op: value.Match, Values: []value.Value{value.OfString("red")}},
		Right:     value.Atomic{Column: 0, Op: value.Match, Values: []value.Value{value.OfString("fox")}},
	}
	require.True(t, ix.CanProcess(and))
	iter, err := ix.Filter(ctx, and)
	require.NoError(t, err)
	require.Equal(t, []value.TupleId{1}, drainTids(t, iter))
}

func TestInvertedTextUpdateBuffersUntilCommit(t *testing.T) {
	ix := openTestInvertedText(t)
	ctx := context.Background()

	require.NoError(t, ix.Update(ctx, DataChangeEvent{Kind: Inserted, Tid: 5, NewValue: value.OfString("brand new doc")}))

	matchNew := value.Atomic{Column: 0, Op: value.Match, Values: []value.Value{value.OfString("brand")}}
	iter, err := ix.Filter(ctx, matchNew)
	require.NoError(t, err)
	require.Empty(t, drainTids(t, iter))

	require.NoError(t, ix.Commit())
	iter, err = ix.Filter(ctx, matchNew)
	require.NoError(t, err)
	require.Equal(t, []value.TupleId{5}, drainTids(t, iter))
}
