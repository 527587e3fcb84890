package main

import (
	"fmt"
	"strings"

	"fundus-go/internal/diagnosis"

	"github.com/spf13/cobra"
)

var adviseCmd = &cobra.Command{
	Use:     "advise DISEASE",
	Short:   "输出诊断对应的诊疗建议，多个诊断用逗号分隔",
	Example: "  fundusctl advise 糖尿病,青光眼",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprint(cmd.OutOrStdout(), diagnosis.Advise(strings.Join(args, ",")))
		return nil
	},
}
