package physics

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Бэкенды физических областей
const (
	BackendWorld  = "world"  // полный перебор объемов мира
	BackendGlobal = "global" // только глобальные силы и зоны ветра
	BackendMirror = "mirror" // зеркало удаленного мира по gRPC
)

// EnvironConfig содержит настройки окружения частиц и сервера
type EnvironConfig struct {
	// TargetTPS - частота игрового цикла
	TargetTPS int

	// WorldRefreshTicks - период полного обновления мирового снимка в тиках
	WorldRefreshTicks int

	// DetailedLocal - кэшировать неоднородные области в локальных снимках эмиттеров
	DetailedLocal bool

	// Backend - источник физических областей: world, global или mirror
	Backend string

	// MirrorAddress - адрес сервера WorldSync для бэкенда mirror
	MirrorAddress string

	// MirrorSyncInterval - период синхронизации зеркала
	MirrorSyncInterval time.Duration

	// GRPCAddress - адрес собственного сервера WorldSync (пусто - не запускать)
	GRPCAddress string

	// HTTPAddress - адрес HTTP-сервера с websocket-зондом
	HTTPAddress string

	// ProbeInterval - период рассылки кадров зонда
	ProbeInterval time.Duration

	// MaxParticlesPerEmitter - ограничение живых частиц одного эмиттера
	MaxParticlesPerEmitter int

	// TelemetryInterval - период вывода сводки телеметрии
	TelemetryInterval time.Duration
}

// GlobalEnvironConfig - глобальная конфигурация окружения
var GlobalEnvironConfig *EnvironConfig
var configMutex sync.RWMutex

// DefaultEnvironConfig возвращает конфигурацию по умолчанию
func DefaultEnvironConfig() *EnvironConfig {
	return &EnvironConfig{
		TargetTPS:              20,
		WorldRefreshTicks:      10, // раз в полсекунды при 20 TPS
		DetailedLocal:          true,
		Backend:                BackendWorld,
		MirrorSyncInterval:     2 * time.Second,
		GRPCAddress:            ":50061",
		HTTPAddress:            ":8080",
		ProbeInterval:          500 * time.Millisecond,
		MaxParticlesPerEmitter: 256,
		TelemetryInterval:      10 * time.Second,
	}
}

// GetEnvironConfig возвращает копию текущей конфигурации
func GetEnvironConfig() *EnvironConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if GlobalEnvironConfig == nil {
		return DefaultEnvironConfig()
	}

	// Создаем копию, чтобы избежать гонок данных
	config := *GlobalEnvironConfig
	return &config
}

// SetEnvironConfig устанавливает новую конфигурацию
func SetEnvironConfig(config *EnvironConfig) {
	configMutex.Lock()
	defer configMutex.Unlock()

	newConfig := *config
	GlobalEnvironConfig = &newConfig
}

func init() {
	SetEnvironConfig(DefaultEnvironConfig())
}

// LoadFromEnv читает переопределения из переменных окружения XF_*.
// Все ошибки собираются и возвращаются одной.
func LoadFromEnv() (*EnvironConfig, error) {
	return loadFromLookup(os.Getenv)
}

func loadFromLookup(getenv func(string) string) (*EnvironConfig, error) {
	cfg := DefaultEnvironConfig()
	var problems []string

	get := func(key string) string {
		return strings.TrimSpace(getenv(key))
	}

	positiveInt := func(key string, target *int) {
		raw := get(key)
		if raw == "" {
			return
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be a positive integer, got %q", key, raw))
			return
		}
		*target = value
	}

	positiveDuration := func(key string, target *time.Duration) {
		raw := get(key)
		if raw == "" {
			return
		}
		value, err := time.ParseDuration(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be a positive duration, got %q", key, raw))
			return
		}
		*target = value
	}

	positiveInt("XF_TPS", &cfg.TargetTPS)
	positiveInt("XF_WORLD_REFRESH_TICKS", &cfg.WorldRefreshTicks)
	positiveInt("XF_MAX_PARTICLES", &cfg.MaxParticlesPerEmitter)
	positiveDuration("XF_MIRROR_SYNC", &cfg.MirrorSyncInterval)
	positiveDuration("XF_PROBE_INTERVAL", &cfg.ProbeInterval)
	positiveDuration("XF_TELEMETRY_INTERVAL", &cfg.TelemetryInterval)

	if raw := get("XF_DETAILED"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("XF_DETAILED must be a boolean value, got %q", raw))
		} else {
			cfg.DetailedLocal = value
		}
	}

	if raw := get("XF_BACKEND"); raw != "" {
		switch raw {
		case BackendWorld, BackendGlobal, BackendMirror:
			cfg.Backend = raw
		default:
			problems = append(problems, fmt.Sprintf("XF_BACKEND must be one of world, global, mirror, got %q", raw))
		}
	}

	if raw := get("XF_MIRROR_ADDR"); raw != "" {
		cfg.MirrorAddress = raw
	}
	if cfg.Backend == BackendMirror && cfg.MirrorAddress == "" {
		problems = append(problems, "XF_MIRROR_ADDR is required for the mirror backend")
	}

	// XF_GRPC_ADDR=- отключает сервер WorldSync
	if raw, ok := lookupSet(getenv, "XF_GRPC_ADDR"); ok {
		cfg.GRPCAddress = raw
	}
	if raw := get("XF_HTTP_ADDR"); raw != "" {
		cfg.HTTPAddress = raw
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

// lookupSet возвращает значение переменной; "-" означает пустое значение
func lookupSet(getenv func(string) string, key string) (string, bool) {
	raw := strings.TrimSpace(getenv(key))
	switch raw {
	case "":
		return "", false
	case "-":
		return "", true
	default:
		return raw, true
	}
}
