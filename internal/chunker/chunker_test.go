package chunker

import (
    "strings"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestChunkRoundTrip(t *testing.T) {
    inputs := []string{
        "short",
        strings.Repeat("a", 2000),
        strings.Repeat("b", 2001),
        strings.Repeat("패널 발언 ", 700),
        strings.Repeat("x", 12345),
    }
    for _, in := range inputs {
        chunks := Chunk(in, 2000)
        assert.Equal(t, in, strings.Join(chunks, ""), "concatenated chunks must reproduce input")
        for _, c := range chunks {
            assert.LessOrEqual(t, len([]rune(c)), 2000)
        }
    }
}

func TestChunkEmpty(t *testing.T) {
    assert.Nil(t, Chunk("", 2000))
    assert.Nil(t, Chunk("text", 0))
}

func TestGroupBatchCount(t *testing.T) {
    for _, tc := range []struct {
        chunks, groupSize, want int
    }{
        {1, 3, 1},
        {3, 3, 1},
        {4, 3, 2},
        {6, 3, 2},
        {7, 3, 3},
        {5, 1, 5},
        {5, 10, 1},
    } {
        chunks := make([]string, tc.chunks)
        for i := range chunks {
            chunks[i] = "c"
        }
        assert.Len(t, Group(chunks, tc.groupSize), tc.want)
    }
    assert.Nil(t, Group(nil, 3))
}

func TestGroupJoinsWithNewline(t *testing.T) {
    batches := Group([]string{"one", "two", "three", "four"}, 3)
    require.Len(t, batches, 2)
    assert.Equal(t, "one\ntwo\nthree", batches[0])
    assert.Equal(t, "four", batches[1])
}

func TestFiveThousandCharsOneBatch(t *testing.T) {
    text := strings.Repeat("k", 5000)
    chunks := Chunk(text, 2000)
    require.Len(t, chunks, 3)
    batches := Group(chunks, 3)
    assert.Len(t, batches, 1)
}

func TestTwelveThousandCharsTwoBatches(t *testing.T) {
    text := strings.Repeat("k", 12000)
    chunks := Chunk(text, 2000)
    require.Len(t, chunks, 6)
    batches := Group(chunks, 3)
    assert.Len(t, batches, 2)
}
