package simm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWinningRegulationPicksLargestMargin(t *testing.T) {
	reg := winningRegulation(map[string]float64{
		"ESA":  100,
		"SEC":  500,
		"CFTC": 300,
	}, DefaultRegulationPriority())
	assert.Equal(t, "SEC", reg)
}

func TestWinningRegulationTieUsesPriority(t *testing.T) {
	// 상대 오차 1e-9 차이는 동률, CFTC가 SEC보다 우선순위가 높다
	reg := winningRegulation(map[string]float64{
		"SEC":  1_000,
		"CFTC": 1_000 + 1e-6,
	}, DefaultRegulationPriority())
	assert.Equal(t, "CFTC", reg)

	// 허용 오차를 벗어나면 동률이 아니다
	reg = winningRegulation(map[string]float64{
		"SEC":  1_000,
		"CFTC": 999,
	}, DefaultRegulationPriority())
	assert.Equal(t, "SEC", reg)
}

func TestWinningRegulationUnknownRegsRankLast(t *testing.T) {
	// 우선순위 목록에 있는 규제가 목록 밖 규제를 이긴다
	reg := winningRegulation(map[string]float64{
		"ZZZ": 100,
		"AAA": 100,
		"RBI": 100,
	}, DefaultRegulationPriority())
	assert.Equal(t, "RBI", reg)

	// 목록 밖 규제끼리는 사전순
	reg = winningRegulation(map[string]float64{
		"ZZZ": 100,
		"AAA": 100,
	}, DefaultRegulationPriority())
	assert.Equal(t, "AAA", reg)
}

func TestWinningRegulationSingleCandidate(t *testing.T) {
	reg := winningRegulation(map[string]float64{"Unspecified": 42}, DefaultRegulationPriority())
	assert.Equal(t, "Unspecified", reg)
}

func TestWinningRegulationNegativeMargins(t *testing.T) {
	// 최댓값 탐색은 -Inf에서 시작하므로 음수 마진도 비교된다
	reg := winningRegulation(map[string]float64{
		"ESA": -5,
		"SEC": -3,
	}, DefaultRegulationPriority())
	assert.Equal(t, "SEC", reg)
}

func TestWinningRegulationZeroMargins(t *testing.T) {
	reg := winningRegulation(map[string]float64{
		"SEC": 0,
		"ESA": 0,
	}, DefaultRegulationPriority())
	assert.Equal(t, "ESA", reg)
}
