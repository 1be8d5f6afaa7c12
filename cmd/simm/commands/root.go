package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "simm",
	Short: "Atlas - SIMM 증거금 계산 엔진",
	Long: `Atlas Unified CLI

CRIF 민감도 기반 ISDA SIMM 증거금 계산 서비스.
5단계 파이프라인으로 CRIF 적재부터 리포트 출력까지.

Usage:
  go run ./cmd/simm [command]

Examples:
  go run ./cmd/simm calculate --crif crif.csv
  go run ./cmd/simm api
  go run ./cmd/simm test-db
  go run ./cmd/simm test-logger`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
