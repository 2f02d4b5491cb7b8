// Package pairings matches students with opposing memo positions,
// preferring pairs whose arguments diverge the most.
package pairings

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/aura-debate/backend/internal/models"
)

var strengthOrder = map[string]int{
	"weak":     0,
	"moderate": 1,
	"strong":   2,
}

// Candidate is one analyzed memo entering the pairing pool.
type Candidate struct {
	StudentID uuid.UUID
	Position  string
	Strength  string
	KeyClaims []string
}

// Pair is a proposed debate pairing.
type Pair struct {
	StudentAID uuid.UUID `json:"student_a_id"`
	StudentBID uuid.UUID `json:"student_b_id"`
	Reason     string    `json:"reason"`
}

// Result is the full pairing outcome including students left over.
type Result struct {
	Pairs    []Pair      `json:"pairs"`
	Unpaired []uuid.UUID `json:"unpaired"`
}

// ArgumentDiversity is the Jaccard distance between two claim sets,
// case-insensitive. Higher means more diverse arguments.
func ArgumentDiversity(claimsA, claimsB []string) float64 {
	setA := claimSet(claimsA)
	setB := claimSet(claimsB)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for c := range setA {
		if _, ok := setB[c]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return 1 - float64(intersection)/float64(union)
}

func claimSet(claims []string) map[string]struct{} {
	set := make(map[string]struct{}, len(claims))
	for _, c := range claims {
		set[strings.ToLower(c)] = struct{}{}
	}
	return set
}

// MatchOpposing pairs net_positive candidates against net_negative ones.
// Both sides are processed weakest stance first, so tentative arguers
// meet each other; each positive greedily takes the remaining negative
// with the highest argument diversity.
func MatchOpposing(candidates []Candidate) Result {
	// Callers may build the pool from a map; fix the order up front so
	// ties in strength and diversity break the same way on every run.
	pool := append([]Candidate(nil), candidates...)
	sort.Slice(pool, func(i, j int) bool {
		return pool[i].StudentID.String() < pool[j].StudentID.String()
	})

	var positives, negatives []Candidate
	for _, c := range pool {
		switch c.Position {
		case models.PositionNetPositive:
			positives = append(positives, c)
		case models.PositionNetNegative:
			negatives = append(negatives, c)
		}
	}
	byStrength := func(list []Candidate) {
		sort.SliceStable(list, func(i, j int) bool {
			return strengthRank(list[i].Strength) < strengthRank(list[j].Strength)
		})
	}
	byStrength(positives)
	byStrength(negatives)

	result := Result{Unpaired: []uuid.UUID{}}
	usedNegatives := make(map[int]bool)

	for _, pos := range positives {
		bestIdx := -1
		bestDiversity := -1.0
		for i, neg := range negatives {
			if usedNegatives[i] {
				continue
			}
			if d := ArgumentDiversity(pos.KeyClaims, neg.KeyClaims); d > bestDiversity {
				bestDiversity = d
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			result.Unpaired = append(result.Unpaired, pos.StudentID)
			continue
		}
		usedNegatives[bestIdx] = true
		result.Pairs = append(result.Pairs, Pair{
			StudentAID: pos.StudentID,
			StudentBID: negatives[bestIdx].StudentID,
			Reason:     fmt.Sprintf("Opposing positions, argument diversity: %.2f", bestDiversity),
		})
	}

	for i, neg := range negatives {
		if !usedNegatives[i] {
			result.Unpaired = append(result.Unpaired, neg.StudentID)
		}
	}
	return result
}

func strengthRank(strength string) int {
	if rank, ok := strengthOrder[strength]; ok {
		return rank
	}
	return strengthOrder["moderate"]
}
