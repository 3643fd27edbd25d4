package model

import "strings"

// SiteRecord 单个站点提取出的扁平字段记录（字段名 -> 原始值）
type SiteRecord map[string]string

// Get 读取字段值（去除首尾空白）
func (r SiteRecord) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// Has 判断字段是否存在且非空
func (r SiteRecord) Has(field string) bool {
	return r.Get(field) != ""
}

// Merge 合并另一组字段，非空值覆盖
func (r SiteRecord) Merge(other map[string]string) {
	for k, v := range other {
		if strings.TrimSpace(v) != "" {
			r[k] = v
		}
	}
}

// ResolvedConfig 最终写入模板的字段集合（输出字段名 -> 值）
type ResolvedConfig map[string]string

// CellMapping 单元格坐标 -> 字段名映射（输入输出两侧各一份）
type CellMapping map[string]string

// Fields 返回映射覆盖的字段名集合
func (m CellMapping) Fields() []string {
	fields := make([]string, 0, len(m))
	for _, f := range m {
		fields = append(fields, f)
	}
	return fields
}

// CellFor 查找字段对应的单元格坐标，未映射返回 ""
func (m CellMapping) CellFor(field string) string {
	for cell, f := range m {
		if f == field {
			return cell
		}
	}
	return ""
}

// SiteClass 站点分类（由 UNI/EVC 组合与参考数据行数决定）
type SiteClass string

const (
	SiteClassPdiscUniEvc SiteClass = "pdisc-unievc" // UNI + 双 EVC，参考数据多行
	SiteClassPdiscVlan   SiteClass = "pdisc-vlan"   // 双 EVC 无 UNI，参考数据多行
	SiteClassFdisc       SiteClass = "fdisc"        // UNI + 双 EVC，参考数据少行
	SiteClassNoType      SiteClass = "no-type"      // 无法分类
)

// NormalizeSiteName 站点名归一化：去空白、统一大写、压缩内部空格
func NormalizeSiteName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
