package main

import (
	"os"

	"bookkeeping/commands"
)

// @title 记账本 API
// @version 1.0
// @description 个人记账后端：收支记录、类别、预算提醒与通知、收支汇总和导出
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
