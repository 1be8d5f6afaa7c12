package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 스냅샷, DB row에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S0 → S1 → S2 → S3 → S4
//   Crif  Params  Calculate  Persist  Report

// Stage represents a pipeline stage
type Stage string

const (
	// StageCrif S0: CRIF 적재 및 넷팅
	// 책임: 민감도 레코드 로드, 행 단위 검증, 넷팅 키 집계
	// 위치: internal/crif/
	StageCrif Stage = "S0_CRIF"

	// StageParams S1: 파라미터 적재
	// 책임: SIMM 파라미터 YAML 파싱, 검증, 콘텐츠 해시
	// 위치: internal/simmparams/
	StageParams Stage = "S1_PARAMS"

	// StageCalculate S2: 마진 계산
	// 책임: 규제 분리, 버킷 마진, 롤업, 승자 선정
	// 위치: internal/simm/
	StageCalculate Stage = "S2_CALCULATE"

	// StagePersist S3: 결과 저장
	// 책임: 런 메타데이터, 결과 행, CRIF 레코드 저장
	// 위치: internal/report/, internal/crif/
	StagePersist Stage = "S3_PERSIST"

	// StageReport S4: 리포트 작성
	// 책임: 전체/최종/데이터 CSV 리포트 출력
	// 위치: internal/report/
	StageReport Stage = "S4_REPORT"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageCrif:
		return "S0"
	case StageParams:
		return "S1"
	case StageCalculate:
		return "S2"
	case StagePersist:
		return "S3"
	case StageReport:
		return "S4"
	default:
		return "UNKNOWN"
	}
}

// Description returns Korean description of the stage
func (s Stage) Description() string {
	switch s {
	case StageCrif:
		return "CRIF 적재/넷팅"
	case StageParams:
		return "파라미터 적재"
	case StageCalculate:
		return "마진 계산"
	case StagePersist:
		return "결과 저장"
	case StageReport:
		return "리포트 작성"
	default:
		return "알 수 없음"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageCrif,
		StageParams,
		StageCalculate,
		StagePersist,
		StageReport,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// PipelineResult represents the result of a pipeline stage execution
type PipelineResult struct {
	Stage       Stage                  `json:"stage"`
	Success     bool                   `json:"success"`
	InputCount  int                    `json:"input_count"`
	OutputCount int                    `json:"output_count"`
	Duration    int64                  `json:"duration_ms"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// RunSnapshot is the live view of an in-flight run, published after
// every stage so status queries can follow progress
type RunSnapshot struct {
	RunID     string           `json:"run_id"`
	Status    RunStatus        `json:"status"`
	Stage     Stage            `json:"stage"`
	Stages    []PipelineResult `json:"stages,omitempty"`
	Error     string           `json:"error,omitempty"`
	UpdatedAt int64            `json:"updated_at"`
}
