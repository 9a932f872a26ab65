package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version 通过 ldflags 在构建时设置
	Version = "dev"
	// Commit 通过 ldflags 在构建时设置
	Commit = "none"
)

// NewRootCommand 创建根命令并注册全部子命令
func NewRootCommand() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:     "bookkeeping",
		Short:   "个人记账后端：收支记录、预算提醒与汇总",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "外部配置文件路径（可选）")

	rootCmd.AddCommand(
		newServeCommand(&configFile),
		newSeedCategoriesCommand(&configFile),
		newVersionCommand(),
	)

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "记账本 %s (commit: %s)\n", Version, Commit)
		},
	}
}
