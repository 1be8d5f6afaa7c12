package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/atlas/internal/simmparams"
	"github.com/wonny/atlas/pkg/config"
)

// paramsCmd represents the params command
var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "SIMM 파라미터 관리",
	Long: `SIMM 파라미터 YAML 파일을 검증하거나 해시를 계산합니다.

Subcommands:
  validate - 파라미터 파일 파싱/검증 및 요약 표시
  hash     - 파라미터 콘텐츠 해시 표시

Example:
  go run ./cmd/simm params validate
  go run ./cmd/simm params validate --file configs/simm_v2_6.yaml
  go run ./cmd/simm params hash --file configs/simm_v2_6.yaml`,
}

var (
	paramsValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "파라미터 파일 검증",
		RunE:  runParamsValidate,
	}

	paramsHashCmd = &cobra.Command{
		Use:   "hash",
		Short: "파라미터 콘텐츠 해시 표시",
		RunE:  runParamsHash,
	}
)

var paramsFile string

func init() {
	rootCmd.AddCommand(paramsCmd)
	paramsCmd.AddCommand(paramsValidateCmd)
	paramsCmd.AddCommand(paramsHashCmd)

	// Flags
	paramsCmd.PersistentFlags().StringVar(&paramsFile, "file", "", "파라미터 YAML 파일 (기본: SIMM_PARAMS_FILE)")
}

// resolveParamsFile picks the flag value or falls back to configuration
func resolveParamsFile() (string, error) {
	if paramsFile != "" {
		return paramsFile, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Simm.ParamsFile, nil
}

func runParamsValidate(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Atlas SIMM Parameter Validation ===")

	path, err := resolveParamsFile()
	if err != nil {
		return err
	}
	fmt.Printf("\n📐 File: %s\n\n", path)

	// Load and validate
	fmt.Println("Loading parameter file...")
	params, _, err := simmparams.Load(path)
	if err != nil {
		return fmt.Errorf("❌ Failed to load parameters: %w", err)
	}
	fmt.Println("✅ Parameter file parsed")

	fmt.Println("Building provider...")
	provider, err := simmparams.NewProvider(params)
	if err != nil {
		return fmt.Errorf("❌ Failed to build provider: %w", err)
	}
	fmt.Println("✅ Provider built")

	fmt.Println("\n📊 Parameter Summary:")
	fmt.Printf("   Version: %s\n", provider.Version())
	fmt.Printf("   Content Hash: %s\n", provider.Hash())
	fmt.Printf("   Curvature Margin Scaling: %g\n", provider.CurvatureMarginScaling())
	fmt.Printf("   IR Tenors: %d\n", len(params.InterestRate.Tenors))
	fmt.Printf("   IR Currency Groups: %d\n", len(params.InterestRate.CurrencyGroups))
	fmt.Printf("   Credit Q Buckets: %d\n", len(params.CreditQualifying.RiskWeights))
	fmt.Printf("   Credit NonQ Buckets: %d\n", len(params.CreditNonQualifying.RiskWeights))
	fmt.Printf("   Equity Buckets: %d\n", len(params.Equity.RiskWeights))
	fmt.Printf("   Commodity Buckets: %d\n", len(params.Commodity.RiskWeights))

	fmt.Println("\n✅ Parameter file is valid!")
	return nil
}

func runParamsHash(cmd *cobra.Command, args []string) error {
	path, err := resolveParamsFile()
	if err != nil {
		return err
	}

	params, _, err := simmparams.Load(path)
	if err != nil {
		return fmt.Errorf("❌ Failed to load parameters: %w", err)
	}

	hash, err := simmparams.Hash(params)
	if err != nil {
		return fmt.Errorf("❌ Failed to hash parameters: %w", err)
	}

	fmt.Printf("%s  %s (version %s)\n", hash, path, params.Version)
	return nil
}
