package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"configurator/internal/config"
	"configurator/internal/lookup"
	"configurator/internal/metrics"
	"configurator/internal/model"
	"configurator/internal/populate"
	"configurator/internal/store"
)

// Coordinator 流水线协调器：建索引、并行处理站点、汇总报告
type Coordinator struct {
	cfg    *config.AppConfig
	store  *store.Store // 可为 nil（不落运行日志）
	logger *zap.Logger
}

// NewCoordinator 创建协调器
func NewCoordinator(cfg *config.AppConfig, st *store.Store, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		store:  st,
		logger: logger,
	}
}

// RunOptions 批次运行选项
type RunOptions struct {
	InputDir    string
	Market      string
	Workers     int
	ClearOutput bool // 运行前清空输出与临时目录
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"` // start/info/warning/error/site_done/done
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// templateWriter 模板填充行为面（populate.Populator 实现）
type templateWriter interface {
	Populate(templatePath string, cfg model.ResolvedConfig, outputPath string) error
	PopulateAll(templatePath string, configs []model.ResolvedConfig, outputPath string) error
}

// runContext 单次批处理的共享状态
type runContext struct {
	runID        string
	runLogID     int64
	opts         RunOptions
	templatePath string
	circuits     *lookup.CircuitIndex
	addresses    *lookup.AddressIndex
	populator    templateWriter
	progressChan chan ProgressEvent

	mu        sync.Mutex
	report    *model.RunReport
	byClass   map[model.SiteClass][]model.ResolvedConfig
	usedNames map[string]int // 已保留的输出文件名（按分类）
}

// Run 执行批处理，返回进度通道。通道在批次结束后关闭。
func (c *Coordinator) Run(ctx context.Context, opts RunOptions) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)
		c.doRun(ctx, opts, progressChan)
	}()

	return progressChan
}

// doRun 批处理主逻辑
func (c *Coordinator) doRun(ctx context.Context, opts RunOptions, progressChan chan ProgressEvent) {
	startTime := time.Now()

	if opts.Market == "" {
		opts.Market = c.cfg.Output.Market
	}
	if opts.Workers <= 0 {
		opts.Workers = c.cfg.Output.Workers
	}
	if opts.InputDir == "" {
		opts.InputDir = c.cfg.Directories.InputDir
	}

	rc := &runContext{
		runID:        uuid.NewString(),
		opts:         opts,
		progressChan: progressChan,
		report: &model.RunReport{
			Market:   opts.Market,
			InputDir: opts.InputDir,
		},
		byClass: make(map[model.SiteClass][]model.ResolvedConfig),
	}
	rc.report.RunID = rc.runID

	c.sendProgress(progressChan, ProgressEvent{
		Type:      "start",
		Message:   "开始批处理",
		Data:      map[string]string{"run_id": rc.runID, "market": opts.Market},
		Timestamp: time.Now(),
	})

	// 模板按市场代码选择；未配置或文件缺失时每个站点都会以 TemplateNotFound 失败，
	// 这里提前解析一次并给出警告
	templatePath, err := c.cfg.TemplateForMarket(opts.Market)
	if err != nil {
		c.sendProgress(progressChan, ProgressEvent{
			Type:      "warning",
			Message:   fmt.Sprintf("市场 %q 未配置模板: %v", opts.Market, err),
			Timestamp: time.Now(),
		})
	}
	rc.templatePath = templatePath
	rc.populator = populate.New(c.cfg.Output.Sheet, c.cfg.Output.Cells, c.cfg.Output.HighlightColor)

	// 运行前目录准备
	if opts.ClearOutput {
		for _, dir := range []string{c.cfg.Directories.OutputDir, c.cfg.Directories.TmpDir} {
			if err := clearDirectory(dir); err != nil {
				c.sendProgress(progressChan, ProgressEvent{
					Type:      "warning",
					Message:   fmt.Sprintf("清空目录 %s 失败: %v", dir, err),
					Timestamp: time.Now(),
				})
			}
		}
	}

	// 运行日志先落库，索引构建等致命失败也能留下审计行
	if c.store != nil {
		id, err := c.store.CreateRunLog(rc.runID, opts.InputDir, opts.Market)
		if err != nil {
			c.logger.Warn("创建运行日志失败", zap.Error(err))
		} else {
			rc.runLogID = id
		}
	}

	// 索引构建失败对整个批次致命
	if err := c.buildIndexes(rc); err != nil {
		c.failRun(rc, err)
		return
	}

	inputs, err := listInputDocuments(opts.InputDir)
	if err != nil {
		c.failRun(rc, err)
		return
	}
	rc.report.TotalSites = len(inputs)

	c.sendProgress(progressChan, ProgressEvent{
		Type:      "info",
		Message:   fmt.Sprintf("发现 %d 个站点文档", len(inputs)),
		Data:      map[string]int{"total_sites": len(inputs)},
		Timestamp: time.Now(),
	})

	// 索引构建后只读，站点间纯读共享，无需加锁
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, path := range inputs {
		path := path
		g.Go(func() error {
			outcome := c.processSite(gctx, rc, path)
			c.recordOutcome(rc, outcome)
			return nil
		})
	}
	_ = g.Wait()

	// 追加分组配置器工作簿（每个分类一份汇总文件）
	c.exportGrouped(rc)

	sort.Slice(rc.report.Sites, func(i, j int) bool {
		return rc.report.Sites[i].Site < rc.report.Sites[j].Site
	})
	rc.report.Duration = time.Since(startTime)

	status := "completed"
	if rc.report.Failed > 0 {
		status = "completed_with_failures"
	}
	metrics.RunsTotal.WithLabelValues(status).Inc()

	if c.store != nil && rc.runLogID > 0 {
		if err := c.store.CompleteRunLog(rc.runLogID, rc.report, status, ""); err != nil {
			c.logger.Warn("更新运行日志失败", zap.Error(err))
		}
	}

	c.sendProgress(progressChan, ProgressEvent{
		Type: "done",
		Message: fmt.Sprintf("批处理完成: 成功 %d, 部分 %d, 失败 %d",
			rc.report.Succeeded, rc.report.Partial, rc.report.Failed),
		Data:      rc.report,
		Timestamp: time.Now(),
	})
}

// buildIndexes 一次性构建电路索引与地址索引
func (c *Coordinator) buildIndexes(rc *runContext) error {
	circuits, err := lookup.BuildCircuitIndex(
		c.cfg.Circuits.DatasetPath,
		lookup.Columns{
			EVC:             c.cfg.Circuits.Columns.EVC,
			UNI:             c.cfg.Circuits.Columns.UNI,
			CVLAN:           c.cfg.Circuits.Columns.CVLAN,
			Bandwidth:       c.cfg.Circuits.Columns.Bandwidth,
			Tower:           c.cfg.Circuits.Columns.Tower,
			UNITargetHeader: c.cfg.Circuits.UNITargetHeader,
			EVCTargetHeader: c.cfg.Circuits.EVCTargetHeader,
		},
		c.cfg.Circuits.UNIUniqKeys,
		c.cfg.Circuits.EVCUniqKey,
		c.logger,
	)
	if err != nil {
		return err
	}
	rc.circuits = circuits

	addresses, err := lookup.BuildAddressIndex(
		c.cfg.SiteLookup.Path,
		c.cfg.SiteLookup.Sheet,
		lookup.SiteColumns{
			Site:    c.cfg.SiteLookup.Columns.Site,
			Address: c.cfg.SiteLookup.Columns.Address,
			City:    c.cfg.SiteLookup.Columns.City,
			State:   c.cfg.SiteLookup.Columns.State,
		},
		c.logger,
	)
	if err != nil {
		return err
	}
	rc.addresses = addresses
	return nil
}

// recordOutcome 记录站点结果并发事件、指标、日志行
func (c *Coordinator) recordOutcome(rc *runContext, outcome model.SiteOutcome) {
	rc.mu.Lock()
	rc.report.Record(outcome)
	rc.mu.Unlock()

	metrics.SitesProcessed.WithLabelValues(string(outcome.Status)).Inc()
	metrics.SiteDuration.Observe(outcome.Duration.Seconds())
	for _, w := range outcome.Warnings {
		metrics.WarningsTotal.WithLabelValues(string(w.Kind)).Inc()
	}

	if c.store != nil && rc.runLogID > 0 {
		if err := c.store.InsertSiteOutcome(rc.runLogID, outcome); err != nil {
			c.logger.Warn("记录站点结果失败", zap.String("site", outcome.Site), zap.Error(err))
		}
	}

	msg := fmt.Sprintf("站点 %s: %s", outcome.Site, outcome.Status)
	if outcome.Error != "" {
		msg += " (" + outcome.Error + ")"
	}
	c.sendProgress(rc.progressChan, ProgressEvent{
		Type:      "site_done",
		Message:   msg,
		Data:      outcome,
		Timestamp: time.Now(),
	})
}

// exportGrouped 每个站点分类输出一份汇总配置器工作簿
func (c *Coordinator) exportGrouped(rc *runContext) {
	if rc.templatePath == "" {
		return
	}
	for class, configs := range rc.byClass {
		if len(configs) == 0 {
			continue
		}
		dir := filepath.Join(c.cfg.Directories.OutputDir, string(class))
		name := fmt.Sprintf("CONFIGURATOR-%s-%s-%d-SITES.xlsx",
			strings.ToUpper(rc.opts.Market), class, len(configs))
		if err := rc.populator.PopulateAll(rc.templatePath, configs, filepath.Join(dir, name)); err != nil {
			c.sendProgress(rc.progressChan, ProgressEvent{
				Type:      "warning",
				Message:   fmt.Sprintf("分组配置器 %s 导出失败: %v", name, err),
				Timestamp: time.Now(),
			})
		}
	}
}

// failRun 整批致命错误收尾
func (c *Coordinator) failRun(rc *runContext, err error) {
	c.logger.Error("批处理失败", zap.Error(err))
	metrics.RunsTotal.WithLabelValues("failed").Inc()
	if c.store != nil && rc.runLogID > 0 {
		_ = c.store.CompleteRunLog(rc.runLogID, rc.report, "failed", err.Error())
	}
	c.sendProgress(rc.progressChan, ProgressEvent{
		Type:      "error",
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
}

// sendProgress 发送进度事件，通道满时丢弃
func (c *Coordinator) sendProgress(ch chan ProgressEvent, event ProgressEvent) {
	select {
	case ch <- event:
	default:
	}
}

// listInputDocuments 列出输入目录下的站点工作簿，跳过 Office 锁文件
func listInputDocuments(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), "~$") {
			continue
		}
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// clearDirectory 清空目录内容，目录本身保留
func clearDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o755)
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
