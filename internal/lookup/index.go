package lookup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"configurator/internal/model"
)

// Columns 电路数据集的逻辑列 -> 物理列名
type Columns struct {
	EVC       string
	UNI       string
	CVLAN     string
	Bandwidth string
	Tower     string

	// UNITargetHeader/EVCTargetHeader 标识列的列头标签。
	// 导出的数据集列头前常有标题行，按标签向下定位真正的列头行；
	// 标签为空或未命中时回退到第一行。
	UNITargetHeader string
	EVCTargetHeader string
}

// headerScanLimit 定位列头行时向下扫描的最大行数
const headerScanLimit = 10

// CircuitIndex 电路参考数据索引。构建后只读，可被多个站点协程共享。
type CircuitIndex struct {
	uni       map[string][]*model.CircuitRecord // UNI 键 -> 到达顺序记录
	evc       map[string][]*model.CircuitRecord // EVC 键 -> 到达顺序记录
	towerRows map[string]int                    // 归一化塔名 -> 参考数据行数
	total     int
	excluded  int
}

var spaceRE = regexp.MustCompile(`\s+`)

// normHeader 列头归一化：小写、去空白、压缩空格
func normHeader(h string) string {
	return spaceRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), " ")
}

// BuildCircuitIndex 一次性加载电路参考数据集并建立 UNI/EVC 索引。
// 行按唯一性键前缀分类，未命中任何前缀的行被排除（记日志，不致命）；
// 同键多行全部保留，保持到达顺序，消歧交给解析器。
func BuildCircuitIndex(path string, cols Columns, uniKeys []string, evcKey string, logger *zap.Logger) (*CircuitIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.DatasetLoadError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, replay, err := findHeaderRow(r, cols)
	if err != nil {
		return nil, &model.DatasetLoadError{Path: path, Err: fmt.Errorf("failed to locate header row: %w", err)}
	}

	hIdx := make(map[string]int, len(header))
	for i, h := range header {
		hIdx[normHeader(h)] = i
	}

	colIdx := make(map[string]int, 5)
	for logical, physical := range map[string]string{
		"evc":       cols.EVC,
		"uni":       cols.UNI,
		"cvlan":     cols.CVLAN,
		"bandwidth": cols.Bandwidth,
		"tower":     cols.Tower,
	} {
		idx, ok := hIdx[normHeader(physical)]
		if !ok {
			return nil, &model.DatasetLoadError{
				Path: path,
				Err:  fmt.Errorf("declared column %q (%s) not found in dataset", physical, logical),
			}
		}
		colIdx[logical] = idx
	}

	index := &CircuitIndex{
		uni:       make(map[string][]*model.CircuitRecord),
		evc:       make(map[string][]*model.CircuitRecord),
		towerRows: make(map[string]int),
	}

	field := func(row []string, logical string) string {
		i := colIdx[logical]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	next := func() ([]string, error) {
		if len(replay) > 0 {
			row := replay[0]
			replay = replay[1:]
			return row, nil
		}
		return r.Read()
	}

	rowNum := 0
	for {
		row, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &model.DatasetLoadError{Path: path, Err: fmt.Errorf("row %d: %w", rowNum+2, err)}
		}
		rowNum++

		rec := &model.CircuitRecord{
			EVCID:     field(row, "evc"),
			UNIID:     field(row, "uni"),
			CVLAN:     field(row, "cvlan"),
			Bandwidth: field(row, "bandwidth"),
			TowerName: field(row, "tower"),
			Row:       rowNum,
			Raw:       make(map[string]string, len(header)),
		}
		for i, h := range header {
			if i < len(row) {
				rec.Raw[h] = row[i]
			}
		}

		index.total++
		if rec.TowerName != "" {
			index.towerRows[model.NormalizeSiteName(rec.TowerName)]++
		}

		class := Classify(rec, uniKeys, evcKey)
		if class == Unclassified {
			index.excluded++
			logger.Debug("参考数据行未命中唯一性键，已排除",
				zap.Int("row", rowNum),
				zap.String("evc_id", rec.EVCID),
				zap.String("uni_id", rec.UNIID))
			continue
		}
		if class.Has(UNIRecord) {
			key := NormalizeKey(rec.UNIID)
			index.uni[key] = append(index.uni[key], rec)
		}
		if class.Has(EVCRecord) {
			key := NormalizeKey(rec.EVCID)
			index.evc[key] = append(index.evc[key], rec)
		}
	}

	logger.Info("电路索引构建完成",
		zap.String("dataset", path),
		zap.Int("rows", index.total),
		zap.Int("uni_keys", len(index.uni)),
		zap.Int("evc_keys", len(index.evc)),
		zap.Int("excluded", index.excluded))

	return index, nil
}

// findHeaderRow 按目标列头标签在前若干行中定位列头行。
// 返回列头与已扫描但尚未消费的数据行；未命中时第一行即列头，
// 其余已扫描行按数据行回放。
func findHeaderRow(r *csv.Reader, cols Columns) ([]string, [][]string, error) {
	var targets []string
	for _, label := range []string{cols.UNITargetHeader, cols.EVCTargetHeader} {
		if strings.TrimSpace(label) != "" {
			targets = append(targets, normHeader(label))
		}
	}

	first, err := r.Read()
	if err != nil {
		return nil, nil, err
	}
	if len(targets) == 0 || rowHasLabel(first, targets) {
		return first, nil, nil
	}

	scanned := [][]string{first}
	for len(scanned) < headerScanLimit {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if rowHasLabel(row, targets) {
			return row, nil, nil
		}
		scanned = append(scanned, row)
	}

	return scanned[0], scanned[1:], nil
}

// rowHasLabel 判断行内是否出现任一目标列头标签
func rowHasLabel(row []string, targets []string) bool {
	for _, cell := range row {
		h := normHeader(cell)
		for _, target := range targets {
			if h == target {
				return true
			}
		}
	}
	return false
}

// LookupUNI 按 UNI 标识查找，返回到达顺序的全部匹配
func (idx *CircuitIndex) LookupUNI(id string) []*model.CircuitRecord {
	return idx.uni[NormalizeKey(id)]
}

// LookupEVC 按 EVC 标识查找，返回到达顺序的全部匹配
func (idx *CircuitIndex) LookupEVC(id string) []*model.CircuitRecord {
	return idx.evc[NormalizeKey(id)]
}

// TowerRowCount 指定塔名在参考数据中出现的行数
func (idx *CircuitIndex) TowerRowCount(name string) int {
	return idx.towerRows[model.NormalizeSiteName(name)]
}

// Excluded 被排除的未分类行数
func (idx *CircuitIndex) Excluded() int {
	return idx.excluded
}
