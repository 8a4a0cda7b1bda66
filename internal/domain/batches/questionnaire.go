package batches

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type Tier string

const (
	TierOperational Tier = "operational"
	TierManagement  Tier = "management"
)

func ParseTier(raw string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierOperational:
		return TierOperational, nil
	case TierManagement:
		return TierManagement, nil
	default:
		return "", fmt.Errorf("unknown employee tier %q", raw)
	}
}

// QuestionKey identifies one answer slot inside an assessment.
type QuestionKey struct {
	Group int
	Item  string
}

// Questionnaire is the fixed set of answer slots an assessment must fill.
type Questionnaire struct {
	keys map[QuestionKey]struct{}
}

// copsoqGroups lists how many items each of the ten groups carries.
var copsoqGroups = []int{4, 4, 4, 4, 4, 4, 4, 3, 3, 3}

var standardQuestionnaire = buildQuestionnaire(copsoqGroups)

func buildQuestionnaire(groups []int) Questionnaire {
	q := Questionnaire{keys: make(map[QuestionKey]struct{})}
	n := 0
	for gi, count := range groups {
		for i := 0; i < count; i++ {
			n++
			q.keys[QuestionKey{Group: gi + 1, Item: fmt.Sprintf("Q%d", n)}] = struct{}{}
		}
	}
	return q
}

// QuestionnaireFor returns the expected response set for a tier. Both tiers
// currently answer the same 37 items.
func QuestionnaireFor(Tier) Questionnaire {
	return standardQuestionnaire
}

func (q Questionnaire) Size() int { return len(q.keys) }

func (q Questionnaire) Contains(k QuestionKey) bool {
	_, ok := q.keys[QuestionKey{Group: k.Group, Item: strings.ToUpper(strings.TrimSpace(k.Item))}]
	return ok
}

// Complete reports whether answered covers every expected slot.
func (q Questionnaire) Complete(answered []QuestionKey) bool {
	seen := make(map[QuestionKey]struct{}, len(answered))
	for _, k := range answered {
		k.Item = strings.ToUpper(strings.TrimSpace(k.Item))
		if _, ok := q.keys[k]; ok {
			seen[k] = struct{}{}
		}
	}
	return len(seen) == len(q.keys)
}

// ValidAnswer reports whether v is on the 0-100 five point scale.
func ValidAnswer(v int) bool {
	switch v {
	case 0, 25, 50, 75, 100:
		return true
	default:
		return false
	}
}

// Keys lists the expected slots ordered by group, then item number.
func (q Questionnaire) Keys() []QuestionKey {
	out := make([]QuestionKey, 0, len(q.keys))
	for k := range q.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return itemNumber(out[i].Item) < itemNumber(out[j].Item)
	})
	return out
}

func itemNumber(item string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(item, "Q"))
	if err != nil {
		return 0
	}
	return n
}
