package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/xuri/excelize/v2"

	"configurator/internal/model"
)

// AppConfig 应用配置
type AppConfig struct {
	Server      ServerConfig      `toml:"server"`
	Directories DirectoriesConfig `toml:"directories"`
	Survey      SurveyConfig      `toml:"survey"`
	Circuits    CircuitsConfig    `toml:"circuits"`
	SiteLookup  SiteLookupConfig  `toml:"site_lookup"`
	Output      OutputConfig      `toml:"output"`
	Log         LogConfig         `toml:"log"`
}

// ServerConfig 报告服务器配置
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// DirectoriesConfig 目录配置
type DirectoriesConfig struct {
	InputDir  string `toml:"input_dir"`  // 站点勘测工作簿目录
	OutputDir string `toml:"output_dir"` // 配置器输出目录
	TmpDir    string `toml:"tmp_dir"`    // 中间文件目录
	DataDir   string `toml:"data_dir"`   // SQLite 运行日志目录
}

// SurveyConfig 勘测表提取配置
type SurveyConfig struct {
	Sheet            string            `toml:"sheet"`              // 勘测数据所在工作表
	ParseTimeoutSecs int               `toml:"parse_timeout_secs"` // 单文档解析超时
	Cells            model.CellMapping `toml:"cells"`              // 坐标 -> 字段名
}

// CircuitsConfig 电路参考数据配置
type CircuitsConfig struct {
	DatasetPath     string         `toml:"dataset_path"`
	UNITargetHeader string         `toml:"uni_target_header"` // UNI 标识列头标签
	EVCTargetHeader string         `toml:"evc_target_header"` // EVC 标识列头标签
	UNIUniqKeys     []string       `toml:"uni_uniq_keys"`     // UNI 唯一性键前缀白名单
	EVCUniqKey      string         `toml:"evc_uniq_keys"`     // EVC 唯一性键前缀
	Columns         ColumnsMapping `toml:"columns"`
}

// ColumnsMapping 逻辑列 -> 物理列名映射
type ColumnsMapping struct {
	EVC       string `toml:"evc"`
	UNI       string `toml:"uni"`
	CVLAN     string `toml:"cvlan"`
	Bandwidth string `toml:"bandwidth"`
	Tower     string `toml:"tower"`
}

// SiteLookupConfig 站点地址目录配置
type SiteLookupConfig struct {
	Path    string            `toml:"path"`
	Sheet   string            `toml:"sheet"` // 为空时取第一个工作表
	Columns SiteLookupColumns `toml:"columns"`
}

// SiteLookupColumns 地址目录列名
type SiteLookupColumns struct {
	Site    string `toml:"site"`
	Address string `toml:"address"`
	City    string `toml:"city"`
	State   string `toml:"state"`
}

// OutputConfig 输出侧配置
type OutputConfig struct {
	Market         string            `toml:"market"`          // 市场代码，选择模板
	Sheet          string            `toml:"sheet"`           // 模板中写入的工作表
	Workers        int               `toml:"workers"`         // 并行站点数
	HighlightColor string            `toml:"highlight_color"` // CVLAN 缺失行的高亮色
	Templates      map[string]string `toml:"templates"`       // 市场代码 -> 模板路径
	Cells          model.CellMapping `toml:"cells"`           // 输出侧坐标 -> 字段名
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"` // 为空时只输出到 stderr
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20719,
			DevMode: false,
		},
		Directories: DirectoriesConfig{
			InputDir:  "input",
			OutputDir: "output",
			TmpDir:    "tmp",
			DataDir:   "data",
		},
		Survey: SurveyConfig{
			Sheet:            "Site Survey",
			ParseTimeoutSecs: 30,
			Cells:            model.CellMapping{},
		},
		Circuits: CircuitsConfig{
			UNITargetHeader: "A End (U)NI ID",
			EVCTargetHeader: "EVC ID",
			UNIUniqKeys:     []string{"KGGS", "KFGS", "KSGS", "KTGS"},
			EVCUniqKey:      "VLXP",
			Columns: ColumnsMapping{
				EVC:       "EVC ID",
				UNI:       "A End (U)NI ID",
				CVLAN:     "CVLAN",
				Bandwidth: "Bandwidth",
				Tower:     "Tower Name",
			},
		},
		SiteLookup: SiteLookupConfig{
			Columns: SiteLookupColumns{
				Site:    "Site Name",
				Address: "Address",
				City:    "City",
				State:   "State",
			},
		},
		Output: OutputConfig{
			Market:         "bawa",
			Sheet:          "Configurator",
			Workers:        4,
			HighlightColor: "FF0000",
			Templates:      map[string]string{},
			Cells:          model.CellMapping{},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// Load 从指定路径加载配置；path 为空时尝试可执行文件同目录下的 config.toml
func Load(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	if path == "" {
		exeDir, err := GetExeDir()
		if err != nil {
			exeDir = "."
		}
		path = filepath.Join(exeDir, "config.toml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// 配置文件不存在，使用默认配置
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &model.ConfigError{Field: path, Reason: err.Error()}
	}

	// 环境变量覆盖（用于 E2E / 本地运行）
	if v := os.Getenv("CONFIGURATOR_DATASET_PATH"); v != "" {
		cfg.Circuits.DatasetPath = v
	}
	if v := os.Getenv("CONFIGURATOR_SITE_LOOKUP_PATH"); v != "" {
		cfg.SiteLookup.Path = v
	}

	return cfg, nil
}

// Validate 校验配置，返回首个 ConfigError
func (c *AppConfig) Validate() error {
	if c.Survey.Sheet == "" {
		return &model.ConfigError{Field: "survey.sheet", Reason: "must not be empty"}
	}
	if len(c.Survey.Cells) == 0 {
		return &model.ConfigError{Field: "survey.cells", Reason: "at least one cell mapping is required"}
	}
	if err := validateCellMapping("survey.cells", c.Survey.Cells); err != nil {
		return err
	}
	if len(c.Output.Cells) == 0 {
		return &model.ConfigError{Field: "output.cells", Reason: "at least one cell mapping is required"}
	}
	if err := validateCellMapping("output.cells", c.Output.Cells); err != nil {
		return err
	}
	if c.Circuits.DatasetPath == "" {
		return &model.ConfigError{Field: "circuits.dataset_path", Reason: "must not be empty"}
	}
	if c.Circuits.EVCUniqKey == "" {
		return &model.ConfigError{Field: "circuits.evc_uniq_keys", Reason: "must not be empty"}
	}
	if len(c.Circuits.UNIUniqKeys) == 0 {
		return &model.ConfigError{Field: "circuits.uni_uniq_keys", Reason: "at least one key prefix is required"}
	}
	if c.Output.Market == "" {
		return &model.ConfigError{Field: "output.market", Reason: "must not be empty"}
	}
	if c.Output.Workers < 1 {
		return &model.ConfigError{Field: "output.workers", Reason: "must be at least 1"}
	}
	return nil
}

// TemplateForMarket 按市场代码选择模板路径
func (c *AppConfig) TemplateForMarket(market string) (string, error) {
	path, ok := c.Output.Templates[market]
	if !ok || path == "" {
		return "", &model.TemplateNotFoundError{Market: market}
	}
	return path, nil
}

// validateCellMapping 校验坐标合法且字段名不重复
func validateCellMapping(section string, mapping model.CellMapping) error {
	seen := make(map[string]string, len(mapping))
	for cell, field := range mapping {
		if _, _, err := excelize.CellNameToCoordinates(cell); err != nil {
			return &model.ConfigError{
				Field:  section,
				Reason: fmt.Sprintf("invalid cell reference %q: %v", cell, err),
			}
		}
		if field == "" {
			return &model.ConfigError{
				Field:  section,
				Reason: fmt.Sprintf("cell %q maps to an empty field name", cell),
			}
		}
		if prev, ok := seen[field]; ok {
			return &model.ConfigError{
				Field:  section,
				Reason: fmt.Sprintf("field %q mapped by both %s and %s", field, prev, cell),
			}
		}
		seen[field] = cell
	}
	return nil
}
