package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/atlas/internal/contracts"
	"github.com/wonny/atlas/internal/crif"
	"github.com/wonny/atlas/pkg/config"
	"github.com/wonny/atlas/pkg/logger"
)

// crifCmd represents the crif command
var crifCmd = &cobra.Command{
	Use:   "crif",
	Short: "CRIF 파일 점검",
	Long: `CRIF 민감도 파일을 적재하고 요약합니다.

이 명령어는:
- CSV 파싱 (행 단위 검증, 오류 행 스킵)
- 넷팅 키 집계
- 넷팅셋/상품군/리스크 타입별 요약 표시

Example:
  go run ./cmd/simm crif check --file crif.csv`,
}

var crifCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "CRIF 파일 적재 및 요약",
	RunE:  runCrifCheck,
}

var crifFile string

func init() {
	rootCmd.AddCommand(crifCmd)
	crifCmd.AddCommand(crifCheckCmd)

	// Flags
	crifCheckCmd.Flags().StringVar(&crifFile, "file", "", "CRIF CSV 파일 (기본: SIMM_CRIF_FILE)")
}

func runCrifCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Atlas CRIF Check ===")

	// 1. Load config (for defaults and logger settings)
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	path := crifFile
	if path == "" {
		path = cfg.Simm.CrifFile
	}
	if path == "" {
		return fmt.Errorf("CRIF file is required (--file or SIMM_CRIF_FILE)")
	}
	fmt.Printf("\n📄 File: %s\n\n", path)

	// 2. Load and net
	fmt.Println("Loading CRIF file...")
	loader := crif.NewLoader(log)
	records, err := loader.LoadFile(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("❌ Failed to load CRIF: %w", err)
	}
	fmt.Printf("✅ Loaded %d records\n", len(records))

	set := crif.NewSet()
	set.AddAll(records)
	fmt.Printf("✅ Netted to %d records\n", set.Len())

	// 3. Summarize
	nettingSets := make(map[string]int)
	riskTypes := make(map[contracts.RiskType]int)
	schedule := 0
	for _, r := range records {
		nettingSets[r.NettingSet.ID]++
		riskTypes[r.RiskType]++
		if r.IsSchedule() {
			schedule++
		}
	}

	fmt.Println("\n📊 CRIF Summary:")
	fmt.Printf("   Netting Sets: %d\n", len(nettingSets))
	fmt.Printf("   Product Classes: %d\n", len(set.ProductClasses()))
	fmt.Printf("   Schedule Records (excluded from SIMM): %d\n", schedule)

	fmt.Println("\n   Records per netting set:")
	for _, id := range sortedMapKeys(nettingSets) {
		fmt.Printf("     %-20s %d\n", id, nettingSets[id])
	}

	fmt.Println("\n   Records per risk type:")
	rts := make([]string, 0, len(riskTypes))
	for rt := range riskTypes {
		rts = append(rts, string(rt))
	}
	sort.Strings(rts)
	for _, rt := range rts {
		fmt.Printf("     %-24s %d\n", rt, riskTypes[contracts.RiskType(rt)])
	}

	fmt.Println("\n✅ CRIF file is loadable!")
	return nil
}

func sortedMapKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
