package lookup

import (
	"fmt"
	"strings"

	"configurator/internal/model"
)

// ResolveCircuit 用共享索引解析站点的电路记录。纯函数，允许部分解析。
//
// 消歧策略：恰好一条匹配即为权威记录；多条时优先取 CVLAN、带宽与
// 勘测值一致的记录；仍有歧义时取数据集顺序第一条并上报
// AmbiguousMatchWarning；零匹配时对应字段留空并上报 UnresolvedLookupWarning。
func ResolveCircuit(site model.SiteRecord, idx *CircuitIndex) (model.CircuitFields, []model.Warning) {
	var (
		fields   model.CircuitFields
		warnings []model.Warning
	)

	siteCVLAN := site.Get("cvlan")
	siteBW := site.Get("bandwidth")

	resolve := func(field, id string, find func(string) []*model.CircuitRecord) *model.CircuitRecord {
		if id == "" {
			return nil
		}
		candidates := find(id)
		if len(candidates) == 0 {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnUnresolvedLookup,
				Field:   field,
				Key:     id,
				Message: fmt.Sprintf("no circuit record found for %s %q", field, id),
			})
			return nil
		}
		rec, ambiguous := disambiguate(candidates, siteCVLAN, siteBW)
		if ambiguous {
			warnings = append(warnings, model.Warning{
				Kind:  model.WarnAmbiguousMatch,
				Field: field,
				Key:   id,
				Message: fmt.Sprintf("%d circuit records match %s %q, using dataset row %d",
					len(candidates), field, id, rec.Row),
			})
		}
		return rec
	}

	fields.UNI = resolve("uni", site.Get("uni"), idx.LookupUNI)
	fields.EVC1 = resolve("evc1", site.Get("evc1"), idx.LookupEVC)
	fields.EVC2 = resolve("evc2", site.Get("evc2"), idx.LookupEVC)

	fields.CVLAN = combineCVLAN(fields.EVC1, fields.EVC2)
	fields.Bandwidth = pickBandwidth(fields.UNI, fields.EVC1, fields.EVC2)

	return fields, warnings
}

// disambiguate 在多条候选中挑选权威记录。
// 返回 ambiguous=true 表示挑选依据不足，取了数据集顺序第一条。
func disambiguate(candidates []*model.CircuitRecord, cvlan, bandwidth string) (*model.CircuitRecord, bool) {
	if len(candidates) == 1 {
		return candidates[0], false
	}

	narrowed := candidates
	if cvlan != "" {
		if byCVLAN := filterRecords(narrowed, func(r *model.CircuitRecord) bool {
			return r.CVLAN == cvlan
		}); len(byCVLAN) > 0 {
			if len(byCVLAN) == 1 {
				return byCVLAN[0], false
			}
			narrowed = byCVLAN
		}
	}
	if bandwidth != "" {
		if byBW := filterRecords(narrowed, func(r *model.CircuitRecord) bool {
			return strings.EqualFold(r.Bandwidth, bandwidth)
		}); len(byBW) == 1 {
			return byBW[0], false
		}
	}

	return candidates[0], true
}

func filterRecords(records []*model.CircuitRecord, keep func(*model.CircuitRecord) bool) []*model.CircuitRecord {
	var out []*model.CircuitRecord
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// combineCVLAN 合并两条 EVC 的 CVLAN 值，如 "10/20"；单边缺失时去掉分隔符
func combineCVLAN(evc1, evc2 *model.CircuitRecord) string {
	var a, b string
	if evc1 != nil {
		a = evc1.CVLAN
	}
	if evc2 != nil {
		b = evc2.CVLAN
	}
	return strings.Trim(a+"/"+b, "/")
}

// pickBandwidth 权威带宽：UNI 记录优先，其次 EVC
func pickBandwidth(records ...*model.CircuitRecord) string {
	for _, r := range records {
		if r != nil && r.Bandwidth != "" {
			return r.Bandwidth
		}
	}
	return ""
}
