package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"configurator/internal/extract"
	"configurator/internal/lookup"
	"configurator/internal/model"
)

// processSite 处理单个站点文档：提取 → 解析 → 填充。
// 任何失败只影响本站点，批次继续。
func (c *Coordinator) processSite(ctx context.Context, rc *runContext, path string) model.SiteOutcome {
	start := time.Now()
	outcome := model.SiteOutcome{
		SourcePath: path,
		Site:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	fail := func(err error) model.SiteOutcome {
		outcome.Status = model.SiteStatusFailed
		outcome.Error = err.Error()
		outcome.Duration = time.Since(start)
		return outcome
	}

	timeout := time.Duration(c.cfg.Survey.ParseTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	parseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	doc, err := extract.Open(parseCtx, path)
	if err != nil {
		return fail(err)
	}
	defer doc.Close()

	record, err := extract.Extract(doc, c.cfg.Survey.Sheet, c.cfg.Survey.Cells)
	if err != nil {
		return fail(err)
	}

	if name := record.Get("tower_name"); name != "" {
		outcome.Site = name
	}

	// 电路与地址解析相互独立，共享只读索引
	circuits, circuitWarnings := lookup.ResolveCircuit(record, rc.circuits)
	address, addressWarnings := lookup.ResolveAddress(outcome.Site, rc.addresses)
	outcome.Warnings = append(circuitWarnings, addressWarnings...)

	outcome.Class = classifySite(record, rc.circuits)
	resolved := buildResolved(record, circuits, address)

	if circuits.CVLAN == "" {
		c.logger.Info("站点未解析出 CVLAN", zap.String("site", outcome.Site))
	}

	if rc.templatePath == "" {
		return fail(&model.TemplateNotFoundError{Market: rc.opts.Market})
	}

	outputPath := filepath.Join(
		c.cfg.Directories.OutputDir,
		string(outcome.Class),
		fmt.Sprintf("CONFIGURATOR-%s.xlsx", rc.reserveOutputName(outcome.Class, sanitizeFileName(outcome.Site))),
	)
	if err := c.populateWithRetry(rc, resolved, outputPath); err != nil {
		return fail(err)
	}

	rc.mu.Lock()
	rc.byClass[outcome.Class] = append(rc.byClass[outcome.Class], resolved)
	rc.mu.Unlock()

	outcome.OutputPath = outputPath
	outcome.Duration = time.Since(start)
	if len(outcome.Warnings) > 0 {
		outcome.Status = model.SiteStatusPartial
	} else {
		outcome.Status = model.SiteStatusSuccess
	}
	return outcome
}

// populateWithRetry 写输出，WriteError 重试一次
func (c *Coordinator) populateWithRetry(rc *runContext, resolved model.ResolvedConfig, outputPath string) error {
	err := rc.populator.Populate(rc.templatePath, resolved, outputPath)
	var writeErr *model.WriteError
	if errors.As(err, &writeErr) {
		c.logger.Warn("输出写入失败，重试一次",
			zap.String("path", outputPath), zap.Error(err))
		err = rc.populator.Populate(rc.templatePath, resolved, outputPath)
	}
	return err
}

// classifySite 按 UNI/EVC 组合与参考数据行数给站点分类
func classifySite(record model.SiteRecord, idx *lookup.CircuitIndex) model.SiteClass {
	uni := record.Has("uni")
	bothEVC := record.Has("evc1") && record.Has("evc2")
	multiRow := idx.TowerRowCount(record.Get("tower_name")) > 2

	switch {
	case multiRow && uni && bothEVC:
		return model.SiteClassPdiscUniEvc
	case multiRow && bothEVC && !uni:
		return model.SiteClassPdiscVlan
	case !multiRow && uni && bothEVC:
		return model.SiteClassFdisc
	default:
		return model.SiteClassNoType
	}
}

// buildResolved 合并提取字段与解析结果，键为输出字段名
func buildResolved(record model.SiteRecord, circuits model.CircuitFields, address model.AddressFields) model.ResolvedConfig {
	resolved := make(model.ResolvedConfig, len(record)+6)
	for field, value := range record {
		resolved[field] = strings.TrimSpace(value)
	}

	if circuits.CVLAN != "" {
		resolved["cvlan"] = circuits.CVLAN
	}
	if circuits.Bandwidth != "" {
		resolved["bandwidth"] = circuits.Bandwidth
	}
	if circuits.UNI != nil {
		resolved["uni"] = circuits.UNI.UNIID
	}
	if circuits.EVC1 != nil {
		resolved["evc1"] = circuits.EVC1.EVCID
	}
	if circuits.EVC2 != nil {
		resolved["evc2"] = circuits.EVC2.EVCID
	}

	if address.Address != "" {
		resolved["address"] = address.Address
	}
	if address.City != "" {
		resolved["city"] = address.City
	}
	if address.State != "" {
		resolved["state"] = address.State
	}

	return resolved
}

// reserveOutputName 为站点保留输出文件名。
// 清洗后同名的站点追加序号，保证并行工作协程不会写同一路径。
func (rc *runContext) reserveOutputName(class model.SiteClass, base string) string {
	key := string(class) + "/" + base

	rc.mu.Lock()
	if rc.usedNames == nil {
		rc.usedNames = make(map[string]int)
	}
	n := rc.usedNames[key]
	rc.usedNames[key] = n + 1
	rc.mu.Unlock()

	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n+1)
}

var unsafeFileChars = regexp.MustCompile(`[^\w\-.]+`)

// sanitizeFileName 站点名转安全文件名
func sanitizeFileName(name string) string {
	cleaned := unsafeFileChars.ReplaceAllString(strings.TrimSpace(name), "_")
	return strings.Trim(cleaned, "_")
}
