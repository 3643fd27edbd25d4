package extract

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"configurator/internal/model"
)

// Open 打开勘测工作簿，解析时间受 ctx 限制。
// 解析失败或超时都归为 MalformedDocumentError：损坏文档不能拖住整个批次。
func Open(ctx context.Context, path string) (*excelize.File, error) {
	type result struct {
		file *excelize.File
		err  error
	}
	done := make(chan result, 1)

	go func() {
		f, err := excelize.OpenFile(path)
		done <- result{file: f, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, &model.MalformedDocumentError{Path: path, Err: r.err}
		}
		return r.file, nil
	case <-ctx.Done():
		// 解析协程仍在后台收尾，结果到达后关闭句柄
		go func() {
			if r := <-done; r.file != nil {
				_ = r.file.Close()
			}
		}()
		return nil, &model.MalformedDocumentError{Path: path, Err: ctx.Err()}
	}
}

// Extract 按固定坐标映射从工作表提取站点记录。
// 空单元格映射为空值而非错误；结果字段集与映射字段集严格一致。
func Extract(f *excelize.File, sheet string, mapping model.CellMapping) (model.SiteRecord, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx == -1 {
		return nil, fmt.Errorf("%w: %q", model.ErrMissingSheet, sheet)
	}

	record := make(model.SiteRecord, len(mapping))
	for cell, field := range mapping {
		value, err := f.GetCellValue(sheet, cell)
		if err != nil {
			return nil, fmt.Errorf("failed to read cell %s on sheet %q: %w", cell, sheet, err)
		}
		record[field] = value
	}

	return record, nil
}
