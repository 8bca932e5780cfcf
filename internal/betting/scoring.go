package betting

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/reedzbet/backend/internal/models"
)

// ExactMatchBonus is added on top of rank points for a perfect answer.
const ExactMatchBonus = 5

// Score computes the Reedz reward for every prediction on a resolved bet.
//
// Number bets are ranked by absolute error distance from the correct answer.
// Predictions sharing the exact same error share a rank: each member of the
// closest group receives n points (n = total predictions), the next distinct
// group receives n minus the number of predictors already ranked, and so on.
// An error of exactly zero earns ExactMatchBonus on top.
//
// Text bets are compared after trimming whitespace and lowercasing. Matches
// receive n+ExactMatchBonus, non-matches receive an explicit zero entry.
//
// Score never mutates balances; callers apply the returned deltas. An empty
// prediction set yields an empty map and no error. Unparseable input for a
// number bet fails with ErrMalformedAnswer before any reward is computed.
func Score(bet *models.Bet, predictions []models.Prediction) (map[uuid.UUID]int64, error) {
	if !bet.IsResolved || bet.CorrectAnswer == nil {
		return nil, models.ErrBetNotResolved
	}

	rewards := make(map[uuid.UUID]int64, len(predictions))
	if len(predictions) == 0 {
		return rewards, nil
	}

	switch bet.AnswerType {
	case models.AnswerTypeNumber:
		return scoreNumber(*bet.CorrectAnswer, predictions, rewards)
	case models.AnswerTypeText:
		return scoreText(*bet.CorrectAnswer, predictions, rewards)
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedAnswerType, bet.AnswerType)
	}
}

func scoreNumber(answer string, predictions []models.Prediction, rewards map[uuid.UUID]int64) (map[uuid.UUID]int64, error) {
	correct, err := parseNumber(answer)
	if err != nil {
		return nil, fmt.Errorf("%w: correct answer %q", models.ErrMalformedAnswer, answer)
	}

	// Group predictors by exact error distance so ties share a rank.
	groups := make(map[float64][]uuid.UUID)
	for _, p := range predictions {
		v, err := parseNumber(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: prediction %q", models.ErrMalformedAnswer, p.Value)
		}
		dist := math.Abs(v - correct)
		groups[dist] = append(groups[dist], p.UserID)
	}

	distances := make([]float64, 0, len(groups))
	for dist := range groups {
		distances = append(distances, dist)
	}
	sort.Float64s(distances)

	total := int64(len(predictions))
	given := int64(0)
	for _, dist := range distances {
		members := groups[dist]
		base := total - given
		for _, userID := range members {
			reward := base
			if dist == 0 {
				reward += ExactMatchBonus
			}
			rewards[userID] = reward
		}
		given += int64(len(members))
	}
	return rewards, nil
}

func scoreText(answer string, predictions []models.Prediction, rewards map[uuid.UUID]int64) (map[uuid.UUID]int64, error) {
	correct := normalizeText(answer)
	total := int64(len(predictions))
	for _, p := range predictions {
		if normalizeText(p.Value) == correct {
			rewards[p.UserID] = total + ExactMatchBonus
		} else {
			rewards[p.UserID] = 0
		}
	}
	return rewards, nil
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
