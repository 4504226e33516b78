package registry

import (
	"github.com/christiaan-bronkhorst/planning-poker-magnapp/internal/model/session"
)

// ComputeStatistics aggregates a round's votes. Coffee votes count toward
// the distribution and total but never toward the average; a lone vote is
// never consensus.
func ComputeStatistics(votes []session.Vote) session.Statistics {
	distribution := make(map[session.Value]int, len(votes))
	var numericSum float64
	var numericCount int
	var coffeeVotes int

	for _, vote := range votes {
		distribution[vote.Value]++
		if n, ok := vote.Value.Numeric(); ok {
			numericSum += n
			numericCount++
		} else {
			coffeeVotes++
		}
	}

	var average *float64
	if numericCount > 0 {
		mean := numericSum / float64(numericCount)
		average = &mean
	}

	return session.Statistics{
		Average:      average,
		Distribution: distribution,
		HasConsensus: len(distribution) == 1 && len(votes) > 1,
		TotalVotes:   len(votes),
		CoffeeVotes:  coffeeVotes,
	}
}
