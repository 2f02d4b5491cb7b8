package pairings

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-debate/backend/internal/models"
)

func TestArgumentDiversity(t *testing.T) {
	// Identical claims, zero diversity.
	assert.Equal(t, 0.0, ArgumentDiversity([]string{"Prices fell"}, []string{"prices fell"}))
	// Disjoint claims, full diversity.
	assert.Equal(t, 1.0, ArgumentDiversity([]string{"Prices fell"}, []string{"Wages dropped"}))
	// Half overlap: intersection 1, union 3.
	assert.InDelta(t, 1.0-1.0/3.0, ArgumentDiversity(
		[]string{"Prices fell", "Jobs created"},
		[]string{"Prices fell", "Wages dropped"},
	), 1e-9)
	// Empty sides score zero.
	assert.Equal(t, 0.0, ArgumentDiversity(nil, []string{"anything"}))
}

func TestMatchOpposingPrefersDiverseArguments(t *testing.T) {
	pos := Candidate{StudentID: uuid.New(), Position: models.PositionNetPositive, Strength: "moderate",
		KeyClaims: []string{"prices fell", "jobs created"}}
	similarNeg := Candidate{StudentID: uuid.New(), Position: models.PositionNetNegative, Strength: "moderate",
		KeyClaims: []string{"prices fell", "wages dropped"}}
	diverseNeg := Candidate{StudentID: uuid.New(), Position: models.PositionNetNegative, Strength: "moderate",
		KeyClaims: []string{"small towns hollowed out", "suppliers squeezed"}}

	result := MatchOpposing([]Candidate{pos, similarNeg, diverseNeg})
	require.Len(t, result.Pairs, 1)
	assert.Equal(t, pos.StudentID, result.Pairs[0].StudentAID)
	assert.Equal(t, diverseNeg.StudentID, result.Pairs[0].StudentBID)
	assert.Equal(t, "Opposing positions, argument diversity: 1.00", result.Pairs[0].Reason)
	assert.Equal(t, []uuid.UUID{similarNeg.StudentID}, result.Unpaired)
}

func TestMatchOpposingWeakestFirst(t *testing.T) {
	weakPos := Candidate{StudentID: uuid.New(), Position: models.PositionNetPositive, Strength: "weak",
		KeyClaims: []string{"a"}}
	strongPos := Candidate{StudentID: uuid.New(), Position: models.PositionNetPositive, Strength: "strong",
		KeyClaims: []string{"b"}}
	neg := Candidate{StudentID: uuid.New(), Position: models.PositionNetNegative, Strength: "moderate",
		KeyClaims: []string{"c"}}

	// Only one negative: the weak positive gets matched, the strong one
	// is left over.
	result := MatchOpposing([]Candidate{strongPos, weakPos, neg})
	require.Len(t, result.Pairs, 1)
	assert.Equal(t, weakPos.StudentID, result.Pairs[0].StudentAID)
	assert.Equal(t, []uuid.UUID{strongPos.StudentID}, result.Unpaired)
}

func TestMatchOpposingDeterministicTieBreak(t *testing.T) {
	pos := Candidate{StudentID: uuid.MustParse("33333333-0000-0000-0000-000000000000"),
		Position: models.PositionNetPositive, Strength: "moderate", KeyClaims: []string{"prices fell"}}
	negLow := Candidate{StudentID: uuid.MustParse("11111111-0000-0000-0000-000000000000"),
		Position: models.PositionNetNegative, Strength: "moderate", KeyClaims: []string{"wages dropped"}}
	negHigh := Candidate{StudentID: uuid.MustParse("22222222-0000-0000-0000-000000000000"),
		Position: models.PositionNetNegative, Strength: "moderate", KeyClaims: []string{"suppliers squeezed"}}

	// Both negatives tie on strength and diversity; every input order
	// must produce the same pair, taking the lower student ID.
	for _, order := range [][]Candidate{
		{pos, negLow, negHigh},
		{negHigh, pos, negLow},
		{negHigh, negLow, pos},
	} {
		result := MatchOpposing(order)
		require.Len(t, result.Pairs, 1)
		assert.Equal(t, negLow.StudentID, result.Pairs[0].StudentBID)
		assert.Equal(t, []uuid.UUID{negHigh.StudentID}, result.Unpaired)
	}
}

func TestMatchOpposingNoCandidates(t *testing.T) {
	result := MatchOpposing(nil)
	assert.Empty(t, result.Pairs)
	assert.Empty(t, result.Unpaired)
}

func TestMatchOpposingOneSidedPool(t *testing.T) {
	a := Candidate{StudentID: uuid.New(), Position: models.PositionNetPositive, KeyClaims: []string{"x"}}
	b := Candidate{StudentID: uuid.New(), Position: models.PositionNetPositive, KeyClaims: []string{"y"}}

	result := MatchOpposing([]Candidate{a, b})
	assert.Empty(t, result.Pairs)
	assert.Len(t, result.Unpaired, 2)
}
