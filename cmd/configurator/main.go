package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"configurator/internal/config"
	"configurator/internal/logging"
	"configurator/internal/model"
	"configurator/internal/pipeline"
	"configurator/internal/server"
	"configurator/internal/store"
	"configurator/internal/util"
)

var (
	configPath = flag.String("config", "", "配置文件路径 (默认取可执行文件同目录 config.toml)")
	inputDir   = flag.String("input", "", "站点勘测文档目录 (覆盖配置文件)")
	market     = flag.String("market", "", "市场代码 (覆盖配置文件)")
	workers    = flag.Int("workers", 0, "并行站点数 (覆盖配置文件)")
	keepOutput = flag.Bool("keep", false, "保留输出与临时目录的已有内容")
	serve      = flag.Bool("serve", false, "批处理后启动报告服务器")
	devMode    = flag.Bool("dev", false, "开发模式")
)

func main() {
	flag.Parse()

	fmt.Println("==========================================")
	fmt.Println("  Configurator - 站点配置器生成工具")
	fmt.Println("==========================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *devMode {
		cfg.Server.DevMode = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("配置校验失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Server.DevMode, cfg.Log.File)
	if err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// 运行日志库打不开时降级为不落库
	var st *store.Store
	dbPath := filepath.Join(cfg.Directories.DataDir, "configurator.db")
	if st, err = store.New(dbPath); err != nil {
		logger.Warn("初始化运行日志库失败，本次运行不落库", zap.Error(err))
		st = nil
	} else {
		defer st.Close()
	}

	coordinator := pipeline.NewCoordinator(cfg, st, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	exitCode := runBatch(ctx, coordinator, pipeline.RunOptions{
		InputDir:    *inputDir,
		Market:      *market,
		Workers:     *workers,
		ClearOutput: !*keepOutput,
	})

	if *serve {
		serveReports(cfg, st)
	}

	os.Exit(exitCode)
}

// runBatch 执行批处理并把进度事件打到控制台
func runBatch(ctx context.Context, coordinator *pipeline.Coordinator, opts pipeline.RunOptions) int {
	exitCode := 0

	for event := range coordinator.Run(ctx, opts) {
		switch event.Type {
		case "error":
			fmt.Printf("[错误] %s\n", event.Message)
			exitCode = 1
		case "warning":
			fmt.Printf("[警告] %s\n", event.Message)
		case "done":
			fmt.Println(event.Message)
			if report, ok := event.Data.(*model.RunReport); ok {
				printSummary(report)
			}
		default:
			fmt.Println(event.Message)
		}
	}

	return exitCode
}

// printSummary 打印批次摘要
func printSummary(report *model.RunReport) {
	fmt.Println("------------------------------------------")
	fmt.Printf("运行 ID: %s  耗时: %s\n", report.RunID, report.Duration.Round(10*time.Millisecond))
	for _, site := range report.Sites {
		line := fmt.Sprintf("  %-30s %s", site.Site, site.Status)
		if len(site.Warnings) > 0 {
			line += fmt.Sprintf(" (%d 条警告)", len(site.Warnings))
		}
		if site.Error != "" {
			line += " " + site.Error
		}
		fmt.Println(line)
	}
	fmt.Println("------------------------------------------")
}

// serveReports 启动报告服务器并打开浏览器
func serveReports(cfg *config.AppConfig, st *store.Store) {
	if st == nil {
		fmt.Println("运行日志库不可用，无法启动报告服务器")
		return
	}

	srv := server.NewServer(cfg, st)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	url := fmt.Sprintf("http://localhost:%d/api/runs", cfg.Server.Port)

	go func() {
		fmt.Printf("报告服务启动中，监听端口 %d ...\n", cfg.Server.Port)
		if err := srv.Run(addr); err != nil {
			fmt.Printf("报告服务启动失败: %v\n", err)
			os.Exit(1)
		}
	}()

	if !cfg.Server.DevMode {
		if err := util.OpenBrowserWithFallback(url); err != nil {
			fmt.Printf("无法自动打开浏览器，请手动访问: %s\n", url)
		}
	} else {
		fmt.Printf("开发模式: 请访问 %s\n", url)
	}

	fmt.Println("\n按 Ctrl+C 停止服务...")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
