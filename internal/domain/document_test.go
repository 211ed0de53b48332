package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tandemlabs/tandem/internal/domain"
)

func field(name, value string, version uint64, actor uuid.UUID) domain.DocumentField {
	return domain.DocumentField{
		Name: name, Value: value, Version: version, Actor: actor, UpdatedAt: time.Now(),
	}
}

// ---------------------------------------------------------------------------
// Supersedes
// ---------------------------------------------------------------------------

func TestDocumentField_Supersedes(t *testing.T) {
	t.Parallel()

	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-0000-0000-0000-000000000001")

	tests := []struct {
		name string
		a, b domain.DocumentField
		want bool
	}{
		{"higher version wins", field("f", "x", 2, low), field("f", "y", 1, high), true},
		{"lower version loses", field("f", "x", 1, high), field("f", "y", 2, low), false},
		{"tie broken by actor", field("f", "x", 3, high), field("f", "y", 3, low), true},
		{"tie loser", field("f", "x", 3, low), field("f", "y", 3, high), false},
		{"identical does not supersede", field("f", "x", 3, low), field("f", "x", 3, low), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.a.Supersedes(tt.b))
		})
	}
}

// ---------------------------------------------------------------------------
// Merge
// ---------------------------------------------------------------------------

func TestCollaborativeDocument_Merge_DifferentFieldsBothSurvive(t *testing.T) {
	t.Parallel()

	actorA, actorB := uuid.New(), uuid.New()
	doc := &domain.CollaborativeDocument{Key: "task-42"}

	assert.True(t, doc.Merge(field("title", "Sprint plan", 1, actorA)))
	assert.True(t, doc.Merge(field("description", "Q3 goals", 1, actorB)))

	assert.Equal(t, "Sprint plan", doc.Fields["title"].Value)
	assert.Equal(t, "Q3 goals", doc.Fields["description"].Value)
}

func TestCollaborativeDocument_Merge_SameFieldConvergesRegardlessOfOrder(t *testing.T) {
	t.Parallel()

	actorA := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	actorB := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")

	wa := field("title", "from A", 2, actorA)
	wb := field("title", "from B", 2, actorB)

	one := &domain.CollaborativeDocument{Key: "task-1"}
	one.Merge(wa)
	one.Merge(wb)

	two := &domain.CollaborativeDocument{Key: "task-1"}
	two.Merge(wb)
	two.Merge(wa)

	assert.Equal(t, one.Fields["title"].Value, two.Fields["title"].Value,
		"both application orders converge to the same winner")
	assert.Equal(t, "from B", one.Fields["title"].Value, "higher actor id wins the tie")
}

func TestCollaborativeDocument_Merge_RejectsSupersededWrite(t *testing.T) {
	t.Parallel()

	actor := uuid.New()
	doc := &domain.CollaborativeDocument{Key: "note-7"}
	doc.Merge(field("body", "newer", 5, actor))

	assert.False(t, doc.Merge(field("body", "older", 3, actor)))
	assert.Equal(t, "newer", doc.Fields["body"].Value)
}

func TestCollaborativeDocument_Clock(t *testing.T) {
	t.Parallel()

	doc := &domain.CollaborativeDocument{Key: "task-9"}
	assert.EqualValues(t, 0, doc.Clock(), "empty document")

	actor := uuid.New()
	doc.Merge(field("title", "a", 3, actor))
	doc.Merge(field("description", "b", 7, actor))

	assert.EqualValues(t, 7, doc.Clock())
}
