package model

// CircuitRecord 电路参考数据的一行（加载后不可变）
type CircuitRecord struct {
	EVCID     string            `json:"evcId"`
	UNIID     string            `json:"uniId"`
	Bandwidth string            `json:"bandwidth"`
	CVLAN     string            `json:"cvlan"`
	TowerName string            `json:"towerName"`
	Row       int               `json:"row"` // 数据集中的行号（到达顺序）
	Raw       map[string]string `json:"-"`   // 其余原始列
}

// CircuitFields 电路解析结果（允许部分解析）
type CircuitFields struct {
	EVC1      *CircuitRecord `json:"evc1,omitempty"`
	EVC2      *CircuitRecord `json:"evc2,omitempty"`
	UNI       *CircuitRecord `json:"uni,omitempty"`
	CVLAN     string         `json:"cvlan"`     // 两条 EVC 的 CVLAN 合并值，如 "10/20"
	Bandwidth string         `json:"bandwidth"` // 权威记录的带宽
}

// AddressFields 地址解析结果
type AddressFields struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
}
