package lookup

import (
	"regexp"
	"strings"

	"configurator/internal/model"
)

// RecordClass 参考数据行的分类标签。
// 行可以同时带 UNI 与 EVC 标识，因此用位标志组合。
type RecordClass uint8

const (
	Unclassified RecordClass = 0
	UNIRecord    RecordClass = 1 << iota
	EVCRecord
)

// Has 判断分类是否包含指定标签
func (c RecordClass) Has(flag RecordClass) bool {
	return c&flag != 0
}

// 电路标识可能带数字段前缀，如 "31.KGGS.123456..TMO"
var leadingSegmentRE = regexp.MustCompile(`^\d+\.`)

// NormalizeKey 标识归一化：去空白、统一大写
func NormalizeKey(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// keyPrefix 取标识的键前缀段：去掉前导数字段后的起始部分
func keyPrefix(id string) string {
	return leadingSegmentRE.ReplaceAllString(NormalizeKey(id), "")
}

// MatchesKey 判断标识的键前缀是否命中白名单中的某个唯一性键
func MatchesKey(id string, keys ...string) bool {
	prefix := keyPrefix(id)
	if prefix == "" {
		return false
	}
	for _, key := range keys {
		if key != "" && strings.HasPrefix(prefix, NormalizeKey(key)) {
			return true
		}
	}
	return false
}

// Classify 按唯一性键前缀给参考数据行打分类标签。
// 不命中任何前缀的行保持 Unclassified，由索引构建方排除。
func Classify(rec *model.CircuitRecord, uniKeys []string, evcKey string) RecordClass {
	class := Unclassified
	if MatchesKey(rec.UNIID, uniKeys...) {
		class |= UNIRecord
	}
	if MatchesKey(rec.EVCID, evcKey) {
		class |= EVCRecord
	}
	return class
}
