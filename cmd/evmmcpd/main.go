package main

import (
	"context"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

// main 是 evmmcpd 的入口：加载 .env 后交给 cobra 处理子命令。
func main() {
	// .env 不存在时直接使用进程环境变量。
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		color.Red("evmmcpd: %v", err)
		os.Exit(1)
	}
}
