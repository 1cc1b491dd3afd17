package kvdb

import (
	"fmt"
	"sort"
	"sync"
)

// KVParameter structure for kv instance parameters
type KVParameter struct {
	DBPath       string
	KVEngineType string
	StorageType  string
	// block cache size in MB
	MemCacheSize          int
	FileHandlersCacheSize int
}

const (
	KVEngineTypeLDB    = "leveldb"
	KVEngineTypeBadger = "badger"
)

const (
	StorageTypeSingle = "single"
	StorageTypeMemory = "memory"
)

var (
	servsMu  sync.RWMutex
	services = make(map[string]NewStorageFunc)
)

type NewStorageFunc func(*KVParameter) (Database, error)

func Register(name string, f NewStorageFunc) {
	servsMu.Lock()
	defer servsMu.Unlock()

	if f == nil {
		panic("storage: Register new func is nil")
	}
	if _, dup := services[name]; dup {
		panic("storage: Register called twice for func " + name)
	}
	services[name] = f
}

// Engines lists the registered engine names.
func Engines() []string {
	servsMu.RLock()
	defer servsMu.RUnlock()

	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func CreateKVInstance(kvParam *KVParameter) (Database, error) {
	if kvParam == nil {
		return nil, fmt.Errorf("get kvInstance fail: nil parameter")
	}

	servsMu.RLock()
	f, ok := services[kvParam.KVEngineType]
	servsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("get kvInstance fail: engine %q not registered", kvParam.KVEngineType)
	}

	instance, err := f(kvParam)
	if err != nil {
		return nil, fmt.Errorf("get kvInstance fail: %v", err)
	}
	return instance, nil
}

// GetDBPath return the value of DBPath
func (param *KVParameter) GetDBPath() string {
	return param.DBPath
}

// GetKVEngineType return the value of KVEngineType
func (param *KVParameter) GetKVEngineType() string {
	return param.KVEngineType
}

// IsMemory reports whether the instance should live in memory only.
func (param *KVParameter) IsMemory() bool {
	return param.StorageType == StorageTypeMemory
}

// GetMemCacheSize return the value of MemCacheSize
func (param *KVParameter) GetMemCacheSize() int {
	if param.MemCacheSize <= 0 {
		return 16
	}
	return param.MemCacheSize
}

// GetFileHandlersCacheSize return the value of FileHandlersCacheSize
func (param *KVParameter) GetFileHandlersCacheSize() int {
	if param.FileHandlersCacheSize <= 0 {
		return 16
	}
	return param.FileHandlersCacheSize
}
