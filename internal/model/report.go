package model

import "time"

// WarningKind 警告类型
type WarningKind string

const (
	WarnAmbiguousMatch   WarningKind = "ambiguous_match"   // 多条匹配，取数据集顺序第一条
	WarnUnresolvedLookup WarningKind = "unresolved_lookup" // 查找无结果
	WarnSiteNotFound     WarningKind = "site_not_found"    // 地址目录中无该站点
)

// Warning 非致命警告，按站点记录并出现在最终报告中
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Field   string      `json:"field"`         // 触发警告的字段（evc1/evc2/uni/address）
	Key     string      `json:"key,omitempty"` // 查找用的键
	Message string      `json:"message"`
}

// SiteStatus 站点处理状态
type SiteStatus string

const (
	SiteStatusSuccess SiteStatus = "success"
	SiteStatusPartial SiteStatus = "partial" // 有警告但产出了文件
	SiteStatusFailed  SiteStatus = "failed"
)

// SiteOutcome 单站点处理结果
type SiteOutcome struct {
	Site       string        `json:"site"`
	SourcePath string        `json:"sourcePath"`
	OutputPath string        `json:"outputPath,omitempty"`
	Class      SiteClass     `json:"class"`
	Status     SiteStatus    `json:"status"`
	Warnings   []Warning     `json:"warnings,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// RunReport 批次报告
type RunReport struct {
	RunID      string        `json:"runId"`
	Market     string        `json:"market"`
	InputDir   string        `json:"inputDir"`
	TotalSites int           `json:"totalSites"`
	Succeeded  int           `json:"succeeded"`
	Partial    int           `json:"partial"`
	Failed     int           `json:"failed"`
	Sites      []SiteOutcome `json:"sites"`
	Duration   time.Duration `json:"duration"`
}

// Record 记录一个站点结果并更新计数
func (r *RunReport) Record(outcome SiteOutcome) {
	r.Sites = append(r.Sites, outcome)
	switch outcome.Status {
	case SiteStatusSuccess:
		r.Succeeded++
	case SiteStatusPartial:
		r.Partial++
	case SiteStatusFailed:
		r.Failed++
	}
}
