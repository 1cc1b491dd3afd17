package xconfig

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/xuperchain/xregister/lib/utils"
)

type EnvConf struct {
	// Program running root directory
	RootPath string `yaml:"rootPath,omitempty"`
	// config file directory
	ConfDir string `yaml:"confDir,omitempty"`
	// data file directory
	DataDir string `yaml:"dataDir,omitempty"`
	// log file directory
	LogDir string `yaml:"logDir,omitempty"`
	// engine config file name
	EngineConf string `yaml:"engineConf,omitempty"`
	// log config file name
	LogConf string `yaml:"logConf,omitempty"`
	// metric switch
	MetricSwitch bool `yaml:"metricSwitch,omitempty"`
}

func LoadEnvConf(cfgFile string) (*EnvConf, error) {
	cfg := GetDefEnvConf()
	err := loadConf(cfgFile, cfg)
	if err != nil {
		return nil, fmt.Errorf("load env config failed.err:%s", err)
	}

	// 修改根目录。优先级：1:XREG_ROOT_PATH 2:配置文件设置 3:当前bin文件目录
	if rt := utils.GetRootPath(); rt != utils.GetCurExecDir() || cfg.RootPath == "" {
		cfg.RootPath = rt
	}

	return cfg, nil
}

func GetDefEnvConf() *EnvConf {
	return &EnvConf{
		// 默认设置为当前执行目录
		RootPath:     utils.GetCurExecDir(),
		ConfDir:      "conf",
		DataDir:      "data",
		LogDir:       "logs",
		EngineConf:   "engine.yaml",
		LogConf:      "log.yaml",
		MetricSwitch: false,
	}
}

func (t *EnvConf) GenDirAbsPath(dir string) string {
	return filepath.Join(t.RootPath, dir)
}

func (t *EnvConf) GenDataAbsPath(dir string) string {
	return filepath.Join(t.GenDirAbsPath(t.DataDir), dir)
}

func (t *EnvConf) GenConfFilePath(fName string) string {
	return filepath.Join(t.GenDirAbsPath(t.ConfDir), fName)
}

// StorageConf selects and sizes the register database.
type StorageConf struct {
	// leveldb, badger or memory
	Engine string `yaml:"engine,omitempty"`
	// database directory, relative to the data dir
	Path string `yaml:"path,omitempty"`
	// human readable size such as "64MB"
	CacheSize string `yaml:"cacheSize,omitempty"`
	// number of decoded states kept in memory
	StateCacheEntries int `yaml:"stateCacheEntries,omitempty"`
	// snappy compress stored contracts
	Compress bool `yaml:"compress,omitempty"`
}

// CacheBytes parses CacheSize.
func (t *StorageConf) CacheBytes() (int64, error) {
	if t.CacheSize == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(t.CacheSize)
	if err != nil {
		return 0, fmt.Errorf("cache size error.size:%s,err:%v", t.CacheSize, err)
	}
	return n, nil
}

// EngineConf tunes the contract engine.
type EngineConf struct {
	// how long an accepted transaction id is remembered
	HandledTTL time.Duration `yaml:"handledTTL,omitempty"`
	// condition cost covered without fee
	FreeConditionCost uint64 `yaml:"freeConditionCost,omitempty"`
	// fee charged per data byte written
	DataByteFee uint64 `yaml:"dataByteFee,omitempty"`
	// parallel verification workers in ConnectBlock, 0 means unbounded
	VerifyWorkers int         `yaml:"verifyWorkers,omitempty"`
	Storage       StorageConf `yaml:"storage,omitempty"`
}

func GetDefEngineConf() *EngineConf {
	return &EngineConf{
		HandledTTL:        10 * time.Minute,
		FreeConditionCost: 64,
		DataByteFee:       1,
		VerifyWorkers:     0,
		Storage: StorageConf{
			Engine:            "leveldb",
			Path:              "registers",
			CacheSize:         "64MB",
			StateCacheEntries: 4096,
			Compress:          true,
		},
	}
}

func LoadEngineConf(cfgFile string) (*EngineConf, error) {
	cfg := GetDefEngineConf()
	if err := loadConf(cfgFile, cfg); err != nil {
		return nil, fmt.Errorf("load engine config failed.err:%s", err)
	}
	if _, err := cfg.Storage.CacheBytes(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadConf(cfgFile string, out interface{}) error {
	if cfgFile == "" || !utils.FileIsExist(cfgFile) {
		return fmt.Errorf("config file set error.path:%s", cfgFile)
	}

	viperObj := viper.New()
	viperObj.SetConfigFile(cfgFile)
	err := viperObj.ReadInConfig()
	if err != nil {
		return fmt.Errorf("read config failed.path:%s,err:%v", cfgFile, err)
	}

	err = viperObj.Unmarshal(out, func(config *mapstructure.DecoderConfig) {
		config.TagName = "yaml"
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return fmt.Errorf("unmatshal config failed.path:%s,err:%v", cfgFile, err)
	}

	return nil
}
