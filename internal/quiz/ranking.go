package quiz

import (
	"math/rand"
	"sort"

	"re2q/internal/domain"
)

// Rank orders tallies into standings. Primary order is correct count
// descending with total answered ascending as a deterministic secondary key.
// Ranks are dense: tied entries share a rank and the next distinct value's
// rank equals its 1-based position in the ordered list.
//
// With lottery enabled, each group of participants tied on correct count is
// shuffled and assigned lottery scores 1..N (singleton groups keep 0); the
// list is re-sorted by (correct desc, lottery asc) and re-ranked with the
// lottery score folded into the tie key, so every formerly tied pair ends up
// on a strictly distinct rank.
func Rank(tallies []domain.Tally, lottery bool, rnd *rand.Rand) []domain.RankingEntry {
	entries := make([]domain.RankingEntry, 0, len(tallies))
	for _, t := range tallies {
		entries = append(entries, domain.RankingEntry{
			ParticipantID:   t.ParticipantID,
			ParticipantName: t.ParticipantName,
			CorrectCount:    t.CorrectCount,
			TotalAnswered:   t.TotalAnswered,
		})
	}

	sortEntries(entries)
	assignRanks(entries, func(e domain.RankingEntry) [2]int {
		return [2]int{e.CorrectCount, 0}
	})

	if !lottery {
		return entries
	}

	drawLottery(entries, rnd)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CorrectCount != entries[j].CorrectCount {
			return entries[i].CorrectCount > entries[j].CorrectCount
		}
		return entries[i].LotteryScore < entries[j].LotteryScore
	})
	assignRanks(entries, func(e domain.RankingEntry) [2]int {
		return [2]int{e.CorrectCount, e.LotteryScore}
	})
	return entries
}

func sortEntries(entries []domain.RankingEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CorrectCount != entries[j].CorrectCount {
			return entries[i].CorrectCount > entries[j].CorrectCount
		}
		if entries[i].TotalAnswered != entries[j].TotalAnswered {
			return entries[i].TotalAnswered < entries[j].TotalAnswered
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
}

// assignRanks performs the dense-ranking pass: a new rank starts whenever the
// tie key changes from the previous row.
func assignRanks(entries []domain.RankingEntry, tieKey func(domain.RankingEntry) [2]int) {
	currentRank := 1
	var previous [2]int
	for i := range entries {
		key := tieKey(entries[i])
		if i == 0 || key != previous {
			currentRank = i + 1
		}
		entries[i].Rank = currentRank
		previous = key
	}
}

// drawLottery shuffles each group tied on correct count and assigns lottery
// scores 1..N by shuffled position. Singleton groups keep score 0.
func drawLottery(entries []domain.RankingEntry, rnd *rand.Rand) {
	groups := make(map[int][]int)
	for i := range entries {
		groups[entries[i].CorrectCount] = append(groups[entries[i].CorrectCount], i)
	}
	for _, indexes := range groups {
		if len(indexes) < 2 {
			continue
		}
		shuffled := make([]int, len(indexes))
		copy(shuffled, indexes)
		rnd.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		for score, idx := range shuffled {
			entries[idx].LotteryScore = score + 1
		}
	}
}
