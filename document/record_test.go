package document

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/georgepadayatti/docsign/digest"
)

func TestRecordCovers(t *testing.T) {
	rec := &SignatureRecord{
		ByteRange: []digest.Span{
			{Offset: 0, Length: 100},
			{Offset: 150, Length: 50},
		},
		ContentsStart: 100,
		ContentsEnd:   150,
	}

	assert.True(t, rec.BracketsPlaceholder())
	assert.Equal(t, int64(200), rec.CoveredEnd())
	assert.True(t, rec.Covers(0))
	assert.True(t, rec.Covers(99))
	assert.False(t, rec.Covers(100)) // inside the placeholder
	assert.False(t, rec.Covers(149))
	assert.True(t, rec.Covers(150))
	assert.False(t, rec.Covers(200))
}

func TestBracketsPlaceholderRejectsGaps(t *testing.T) {
	rec := &SignatureRecord{
		ByteRange: []digest.Span{
			{Offset: 0, Length: 90}, // stops short of the placeholder
			{Offset: 150, Length: 50},
		},
		ContentsStart: 100,
		ContentsEnd:   150,
	}
	assert.False(t, rec.BracketsPlaceholder())

	rec.ByteRange = rec.ByteRange[:1]
	assert.False(t, rec.BracketsPlaceholder())
}

func TestOnPage(t *testing.T) {
	records := []*SignatureRecord{
		{ID: "a", Placement: &Placement{Page: 0}},
		{ID: "b", Placement: &Placement{Page: 2}},
		{ID: "c"},
		{ID: "d", Placement: &Placement{Page: 2}},
	}

	page2 := OnPage(records, 2)
	assert.Len(t, page2, 2)
	assert.Equal(t, "b", page2[0].ID)
	assert.Equal(t, "d", page2[1].ID)

	assert.Len(t, OnPage(records, 0), 1)
	assert.Empty(t, OnPage(records, 7))
}

func TestRectangleDimensions(t *testing.T) {
	r := Rectangle{LLX: 36, LLY: 40, URX: 236, URY: 100}
	assert.Equal(t, 200.0, r.Width())
	assert.Equal(t, 60.0, r.Height())
}
