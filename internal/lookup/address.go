package lookup

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"configurator/internal/model"
)

// SiteColumns 地址目录的列名
type SiteColumns struct {
	Site    string
	Address string
	City    string
	State   string
}

// AddressIndex 站点名 -> 地址字段。构建后只读。
type AddressIndex struct {
	entries map[string]model.AddressFields
}

// BuildAddressIndex 一次性加载站点地址目录。
// sheet 为空时取第一个工作表；站点名按归一化键索引。
func BuildAddressIndex(path, sheet string, cols SiteColumns, logger *zap.Logger) (*AddressIndex, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &model.DatasetLoadError{Path: path, Err: err}
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &model.DatasetLoadError{Path: path, Err: fmt.Errorf("workbook has no sheets")}
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &model.DatasetLoadError{Path: path, Err: err}
	}
	if len(rows) < 1 {
		return nil, &model.DatasetLoadError{Path: path, Err: fmt.Errorf("sheet %q is empty", sheet)}
	}

	colIdx := make(map[string]int, 4)
	for i, h := range rows[0] {
		colIdx[normHeader(h)] = i
	}
	siteCol, ok := colIdx[normHeader(cols.Site)]
	if !ok {
		return nil, &model.DatasetLoadError{
			Path: path,
			Err:  fmt.Errorf("site column %q not found on sheet %q", cols.Site, sheet),
		}
	}

	cell := func(row []string, name string) string {
		i, ok := colIdx[normHeader(name)]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	index := &AddressIndex{entries: make(map[string]model.AddressFields, len(rows)-1)}
	for _, row := range rows[1:] {
		if siteCol >= len(row) {
			continue
		}
		key := model.NormalizeSiteName(row[siteCol])
		if key == "" {
			continue
		}
		index.entries[key] = model.AddressFields{
			Address: cell(row, cols.Address),
			City:    cell(row, cols.City),
			State:   cell(row, cols.State),
		}
	}

	logger.Info("地址索引构建完成",
		zap.String("path", path),
		zap.String("sheet", sheet),
		zap.Int("sites", len(index.entries)))

	return index, nil
}

// ResolveAddress 按站点名解析地址，大小写与空白不敏感。
// 未命中时返回空字段并上报 SiteNotFoundWarning，永不致命。
func ResolveAddress(siteName string, idx *AddressIndex) (model.AddressFields, []model.Warning) {
	if fields, ok := idx.entries[model.NormalizeSiteName(siteName)]; ok {
		return fields, nil
	}
	return model.AddressFields{}, []model.Warning{{
		Kind:    model.WarnSiteNotFound,
		Field:   "address",
		Key:     siteName,
		Message: fmt.Sprintf("site %q not found in address directory", siteName),
	}}
}

// Len 目录中的站点数
func (idx *AddressIndex) Len() int {
	return len(idx.entries)
}
