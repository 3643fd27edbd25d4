package populate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"configurator/internal/model"
)

// cvlanField 输出映射中 CVLAN 的字段名，缺失时触发整行高亮
const cvlanField = "cvlan"

// Populator 模板填充器。
//
// 强约束：以市场模板为底稿，仅写入映射的数据单元格，保留模板的样式、
// 合并单元格、列宽与公式；磁盘上的模板文件永不改动。
type Populator struct {
	sheet     string
	cells     model.CellMapping
	highlight string // 十六进制色值，空串关闭高亮
}

// New 创建填充器
func New(sheet string, cells model.CellMapping, highlightColor string) *Populator {
	return &Populator{
		sheet:     sheet,
		cells:     cells,
		highlight: highlightColor,
	}
}

// Populate 将单个站点的解析结果写入模板并另存为输出文件
func (p *Populator) Populate(templatePath string, cfg model.ResolvedConfig, outputPath string) error {
	return p.PopulateAll(templatePath, []model.ResolvedConfig{cfg}, outputPath)
}

// PopulateAll 将多个站点的解析结果依次写入同一份模板副本。
// 映射的目标行已被占用时整体下移到下一空行，站点按序追加。
func (p *Populator) PopulateAll(templatePath string, configs []model.ResolvedConfig, outputPath string) error {
	if _, err := os.Stat(templatePath); err != nil {
		return &model.TemplateNotFoundError{Path: templatePath}
	}

	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to open template %s: %w", templatePath, err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(p.sheet); err != nil || idx == -1 {
		return fmt.Errorf("template %s has no sheet %q", templatePath, p.sheet)
	}

	targets, err := p.targets()
	if err != nil {
		return err
	}

	offset := 0
	for _, cfg := range configs {
		offset, err = p.nextFreeOffset(f, targets, offset)
		if err != nil {
			return err
		}
		if err := p.writeRow(f, targets, offset, cfg); err != nil {
			return err
		}
		offset++
	}

	return saveAtomic(f, outputPath)
}

// target 输出侧单个字段的落点：列 + 起始行
type target struct {
	field string
	col   string
	row   int
}

// targets 解析输出映射，按列序稳定排序
func (p *Populator) targets() ([]target, error) {
	out := make([]target, 0, len(p.cells))
	for cell, field := range p.cells {
		col, row, err := excelize.SplitCellName(cell)
		if err != nil {
			return nil, fmt.Errorf("invalid output cell %q: %w", cell, err)
		}
		out = append(out, target{field: field, col: col, row: row})
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := excelize.ColumnNameToNumber(out[i].col)
		b, _ := excelize.ColumnNameToNumber(out[j].col)
		return a < b
	})
	return out, nil
}

// nextFreeOffset 从 offset 开始找所有映射单元格都为空的行偏移
func (p *Populator) nextFreeOffset(f *excelize.File, targets []target, offset int) (int, error) {
	for {
		occupied := false
		for _, t := range targets {
			cell, err := excelize.JoinCellName(t.col, t.row+offset)
			if err != nil {
				return 0, err
			}
			v, err := f.GetCellValue(p.sheet, cell)
			if err != nil {
				return 0, err
			}
			if v != "" {
				occupied = true
				break
			}
		}
		if !occupied {
			return offset, nil
		}
		offset++
	}
}

// writeRow 写入一个站点的全部映射字段，并按需高亮 CVLAN 缺失行
func (p *Populator) writeRow(f *excelize.File, targets []target, offset int, cfg model.ResolvedConfig) error {
	rowFilled := false
	cvlanEmpty := false
	cvlanMapped := false

	for _, t := range targets {
		cell, err := excelize.JoinCellName(t.col, t.row+offset)
		if err != nil {
			return err
		}
		value := cfg[t.field]
		if t.field == cvlanField {
			cvlanMapped = true
			cvlanEmpty = value == ""
		}
		if value == "" {
			continue
		}
		if err := f.SetCellValue(p.sheet, cell, value); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
		rowFilled = true
	}

	if p.highlight != "" && cvlanMapped && cvlanEmpty && rowFilled {
		if err := p.highlightRow(f, targets, offset); err != nil {
			return err
		}
	}
	return nil
}

// highlightRow 给映射列覆盖的区间整行上色
func (p *Populator) highlightRow(f *excelize.File, targets []target, offset int) error {
	styleID, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{p.highlight}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	first, err := excelize.JoinCellName(targets[0].col, targets[0].row+offset)
	if err != nil {
		return err
	}
	last, err := excelize.JoinCellName(targets[len(targets)-1].col, targets[len(targets)-1].row+offset)
	if err != nil {
		return err
	}
	return f.SetCellStyle(p.sheet, first, last, styleID)
}

// saveAtomic 原子落盘：先写同目录临时文件再改名，失败时不留半成品
func saveAtomic(f *excelize.File, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &model.WriteError{Path: outputPath, Err: err}
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s", filepath.Base(outputPath), uuid.NewString()[:8]))
	if err := f.SaveAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return &model.WriteError{Path: outputPath, Err: err}
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		_ = os.Remove(tmp)
		return &model.WriteError{Path: outputPath, Err: err}
	}
	return nil
}
