package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"x-fields/backend/internal/adapter/in/ws"
	adapterPhysics "x-fields/backend/internal/adapter/out/physics"
	"x-fields/backend/internal/core/domain/environ"
	"x-fields/backend/internal/core/domain/service"
	portPhysics "x-fields/backend/internal/core/port/out/physics"
	"x-fields/backend/internal/game"
	"x-fields/backend/internal/physics"
	"x-fields/backend/internal/telemetry"
	"x-fields/backend/internal/transport"
	"x-fields/backend/internal/world"
)

// Основная функция
func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)

	cfg, err := physics.LoadFromEnv()
	if err != nil {
		logger.Fatalf("Ошибка конфигурации: %v", err)
	}
	physics.SetEnvironConfig(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Создаем менеджер мира и демонстрационные объекты
	worldManager := world.NewManager(logger)
	if cfg.Backend != physics.BackendMirror {
		if err := world.PopulateDemoWorld(worldManager); err != nil {
			logger.Fatalf("Ошибка создания демо-мира: %v", err)
		}
	}

	// Выбираем источник физических областей
	var backend portPhysics.AreaBackend
	var syncClient *physics.SyncClient
	var mirror *adapterPhysics.GRPCWorldMirror

	switch cfg.Backend {
	case physics.BackendGlobal:
		backend = adapterPhysics.NewGlobalForcesAdapter(worldManager)
	case physics.BackendMirror:
		mirror, err = adapterPhysics.NewGRPCWorldMirror(ctx, cfg.MirrorAddress, logger)
		if err != nil {
			logger.Fatalf("Ошибка подключения к зеркалу мира: %v", err)
		}
		defer mirror.Close()
		backend = mirror
		worldManager = mirror.World()
	default:
		backend = adapterPhysics.NewWorldAreaAdapter(worldManager)
	}
	logger.Printf("[Server] Бэкенд физических областей: %s", cfg.Backend)

	envTelemetry := telemetry.NewEnvironTelemetry(cfg.TelemetryInterval, logger)
	environService := service.NewEnvironService(backend, cfg.WorldRefreshTicks, cfg.DetailedLocal, envTelemetry, logger)

	// Перестраиваем мировой снимок при изменении набора областей
	worldManager.OnChange(func(kind world.ChangeKind, id string) {
		if kind == world.ChangeVolume || kind == world.ChangeTerrain {
			environService.MarkAreasChanged()
		}
	})

	if mirror != nil {
		syncClient = physics.NewSyncClient(mirror, cfg.MirrorSyncInterval, environService.MarkAreasChanged, logger)
		go syncClient.Run(ctx)
	}

	// Собственный сервер WorldSync отдает локальный мир другим процессам
	var grpcServer interface{ GracefulStop() }
	if cfg.GRPCAddress != "" && mirror == nil {
		lis, err := net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			logger.Fatalf("Ошибка запуска WorldSync на %s: %v", cfg.GRPCAddress, err)
		}
		server, errCh := transport.ServeWorldSync(lis, worldManager, logger)
		grpcServer = server
		go func() {
			if err := <-errCh; err != nil {
				logger.Printf("[WorldSync] Сервер остановлен: %v", err)
			}
		}()
	}

	// Игровой цикл и системы
	gameTicker := game.NewGameTicker(cfg.TargetTPS, logger)

	if mirror == nil {
		gameTicker.RegisterSystem(game.NewKinematicSystem(worldManager, gameTicker, demoMotions(worldManager), logger))
	}
	gameTicker.RegisterSystem(game.NewEnvironmentSystem(environService, gameTicker, logger))

	particles := game.NewParticleSystem(environService, cfg.MaxParticlesPerEmitter, logger)
	for _, emitter := range demoEmitters(worldManager) {
		if _, err := particles.AddEmitter(emitter); err != nil {
			logger.Fatalf("Ошибка создания эмиттера: %v", err)
		}
	}
	gameTicker.RegisterSystem(particles)

	probeSync := game.NewProbeSyncSystem(gameTicker, environService, particles, cfg.ProbeInterval, logger)
	gameTicker.RegisterSystem(probeSync)
	gameTicker.RegisterSystem(game.NewGameMetricsSystem(gameTicker, envTelemetry, cfg.TelemetryInterval, logger))

	// WebSocket-зонд окружения
	wsAdapter := ws.NewWSAdapter(ws.NewEnvironServiceAdapter(environService, probeSync), logger)
	probeSync.SetBroadcaster(wsAdapter)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsAdapter.HandleWS)
	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		data, err := envTelemetry.GetTelemetryJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(data))
	})

	httpServer := &http.Server{Addr: cfg.HTTPAddress, Handler: mux}
	go func() {
		logger.Printf("[Server] HTTP сервер слушает %s", cfg.HTTPAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("[Server] Ошибка HTTP сервера: %v", err)
			stop()
		}
	}()

	if err := gameTicker.Start(); err != nil {
		logger.Fatalf("Ошибка запуска игрового цикла: %v", err)
	}

	<-ctx.Done()
	logger.Println("[Server] Остановка сервера...")

	gameTicker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("[Server] Ошибка остановки HTTP сервера: %v", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	envTelemetry.PrintSummary()
}

// groundAt высота террейна в точке (0 вне террейна)
func groundAt(m *world.Manager, x, y float32) float32 {
	t := m.Terrain()
	if t == nil {
		return 0
	}
	h, ok := t.Height(x, y)
	if !ok {
		return 0
	}
	return h
}

// demoMotions движения демо-мира: дрон летает по кругу, ветровой коридор медленно поворачивается
func demoMotions(m *world.Manager) []game.Motion {
	var motions []game.Motion
	if drone, ok := m.Body("drone"); ok {
		motions = append(motions, game.Motion{
			Kind:         game.MotionBodyOrbit,
			ID:           drone.ID,
			Center:       drone.Position,
			Radius:       12,
			AngularSpeed: 0.4,
		})
	}
	if canyon, ok := m.Volume("canyon_wind"); ok {
		motions = append(motions, game.Motion{
			Kind:         game.MotionVolumeSpin,
			ID:           canyon.ID,
			Center:       canyon.Position,
			AngularSpeed: 0.05,
			EveryTicks:   20,
		})
	}
	return motions
}

// demoEmitters эмиттеры частиц в характерных местах демо-мира
func demoEmitters(m *world.Manager) []game.EmitterConfig {
	return []game.EmitterConfig{
		{
			ID:        "updraft_smoke",
			Position:  mgl32.Vec3{40, 20, groundAt(m, 40, 20) + 1},
			SpawnRate: 8,
			Lifetime:  6 * time.Second,
			Speed:     3,
			Spread:    0.4,
			Radius:    0.2,
			Collide:   environ.EnvCollision,
		},
		{
			ID:        "lake_bubbles",
			Position:  mgl32.Vec3{-70, -70, -8},
			SpawnRate: 5,
			Lifetime:  5 * time.Second,
			Speed:     1,
			Spread:    0.3,
			Radius:    0.1,
			Collide:   environ.EnvCollision,
		},
		{
			ID:        "canyon_dust",
			Position:  mgl32.Vec3{-30, 50, groundAt(m, -30, 50) + 2},
			SpawnRate: 10,
			Lifetime:  4 * time.Second,
			Speed:     2,
			Spread:    1.2,
			Radius:    0.05,
			Collide:   environ.EnvCollision,
		},
		{
			ID:        "drone_sparks",
			Position:  mgl32.Vec3{0, 0, groundAt(m, 0, 0) + 18},
			SpawnRate: 6,
			Lifetime:  3 * time.Second,
			Speed:     4,
			Spread:    2.5,
			Radius:    0.05,
			Owner:     "drone",
			Collide:   environ.EnvCollision,
		},
		{
			ID:        "workshop_dust",
			Position:  mgl32.Vec3{10, -10, groundAt(m, 10, -10) + 5},
			SpawnRate: 4,
			Lifetime:  4 * time.Second,
			Speed:     0.5,
			Spread:    3.1,
			Radius:    0.05,
			Indoors:   true,
			Collide:   environ.EnvCollision,
		},
	}
}
