package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/websocket"

	"x-fields/backend/internal/game"
)

const (
	// MaxCollideLength максимальная длина отрезка запроса collide в метрах
	MaxCollideLength = 2000

	// Запись одному клиенту не должна задерживать тик симуляции дольше этого
	writeTimeout = 2 * time.Second
)

// ProbePort интерфейс окружения, доступный зондам
type ProbePort interface {
	// Sample возвращает силы окружения в точке
	Sample(pos mgl32.Vec3) SampleResult

	// Collide проверяет столкновение частицы радиуса radius на отрезке from..to
	Collide(from, to mgl32.Vec3, radius float32) CollideResult

	// Frame возвращает текущий кадр окружения
	Frame() game.EnvironFrame
}

// WSAdapter адаптер для WebSocket соединений зондов
type WSAdapter struct {
	upgrader  websocket.Upgrader
	handlers  map[string]func(*SafeWriter, []byte) error
	probePort ProbePort
	clients   map[*SafeWriter]bool // Для хранения активных клиентов
	clientsMu sync.Mutex           // Мьютекс для безопасного доступа к списку клиентов
	logger    *log.Logger
}

var _ game.ProbeBroadcaster = (*WSAdapter)(nil)

// NewWSAdapter создает новый экземпляр WSAdapter
func NewWSAdapter(probePort ProbePort, logger *log.Logger) *WSAdapter {
	if logger == nil {
		logger = log.Default()
	}
	a := &WSAdapter{
		probePort: probePort,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		handlers: make(map[string]func(*SafeWriter, []byte) error),
		clients:  make(map[*SafeWriter]bool),
		logger:   logger,
	}
	a.RegisterHandlers()
	return a
}

// SafeWriter обеспечивает потокобезопасную запись в WebSocket
type SafeWriter struct {
	conn    *websocket.Conn
	mutex   sync.Mutex
	timeout time.Duration // дедлайн на одну запись, 0 - без дедлайна
}

// NewSafeWriter создает новый экземпляр SafeWriter
func NewSafeWriter(conn *websocket.Conn) *SafeWriter {
	return &SafeWriter{
		conn:    conn,
		timeout: writeTimeout,
	}
}

// WriteJSON потокобезопасно отправляет JSON данные через WebSocket
func (w *SafeWriter) WriteJSON(v interface{}) error {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ошибка сериализации: %w", err)
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return fmt.Errorf("ошибка установки дедлайна записи: %w", err)
		}
	}
	return w.conn.WriteMessage(websocket.TextMessage, jsonData)
}

// Close закрывает соединение WebSocket
func (w *SafeWriter) Close() error {
	return w.conn.Close()
}

// RegisterHandlers регистрирует обработчики сообщений
func (a *WSAdapter) RegisterHandlers() {
	// Обработчик запроса сил в точке
	a.handlers[MessageTypeSample] = func(conn *SafeWriter, raw []byte) error {
		var req SampleRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("неверный формат запроса sample: %w", err)
		}
		return conn.WriteJSON(a.probePort.Sample(mgl32.Vec3{req.X, req.Y, req.Z}))
	}

	// Обработчик запроса столкновения
	a.handlers[MessageTypeCollide] = func(conn *SafeWriter, raw []byte) error {
		var req CollideRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return fmt.Errorf("неверный формат запроса collide: %w", err)
		}
		if req.Radius < 0 {
			return fmt.Errorf("отрицательный радиус: %v", req.Radius)
		}
		// Условие записано так, чтобы NaN тоже отклонялся
		if length := req.To.Sub(req.From).Len(); !(length <= MaxCollideLength) {
			return fmt.Errorf("слишком длинный отрезок: %v (максимум %d)", length, MaxCollideLength)
		}
		return conn.WriteJSON(a.probePort.Collide(req.From, req.To, req.Radius))
	}

	// Обработчик ping-сообщений
	a.handlers[MessageTypePing] = func(conn *SafeWriter, raw []byte) error {
		var ping PingMessage
		if err := json.Unmarshal(raw, &ping); err != nil {
			return fmt.Errorf("неверный формат ping: %w", err)
		}
		return conn.WriteJSON(NewPongMessage(ping.ClientTime))
	}

	// Обработчик запроса кадра окружения
	a.handlers[MessageTypeEnviron] = func(conn *SafeWriter, raw []byte) error {
		return conn.WriteJSON(a.probePort.Frame())
	}
}

// HandleWS обрабатывает WebSocket соединения
func (a *WSAdapter) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Printf("[WSAdapter] Ошибка при установке WebSocket соединения: %v", err)
		return
	}

	safeWriter := NewSafeWriter(conn)

	// Сначала отправляем текущий кадр, потом регистрируем клиента для рассылки
	if err := safeWriter.WriteJSON(a.probePort.Frame()); err != nil {
		a.logger.Printf("[WSAdapter] Ошибка отправки начального кадра: %v", err)
		conn.Close()
		return
	}

	a.clientsMu.Lock()
	a.clients[safeWriter] = true
	a.clientsMu.Unlock()

	defer func() {
		// Удаляем клиента из списка при закрытии соединения
		a.clientsMu.Lock()
		delete(a.clients, safeWriter)
		a.clientsMu.Unlock()
		conn.Close()
	}()

	// Обрабатываем входящие сообщения
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.logger.Printf("[WSAdapter] Ошибка при чтении сообщения: %v", err)
			}
			break
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Type == "" {
			a.reportError(safeWriter, "сообщение без типа")
			continue
		}

		handler, ok := a.handlers[envelope.Type]
		if !ok {
			a.reportError(safeWriter, fmt.Sprintf("неизвестный тип сообщения: %s", envelope.Type))
			continue
		}

		if err := handler(safeWriter, raw); err != nil {
			a.reportError(safeWriter, err.Error())
		}
	}
}

// reportError отправляет клиенту сообщение об ошибке
func (a *WSAdapter) reportError(conn *SafeWriter, message string) {
	a.logger.Printf("[WSAdapter] %s", message)
	if err := conn.WriteJSON(NewErrorMessage(message)); err != nil {
		a.logger.Printf("[WSAdapter] Ошибка отправки сообщения об ошибке: %v", err)
	}
}

// BroadcastEnviron отправляет кадр окружения всем подключенным клиентам
func (a *WSAdapter) BroadcastEnviron(frame game.EnvironFrame) error {
	a.clientsMu.Lock()
	clients := make([]*SafeWriter, 0, len(a.clients))
	for client := range a.clients {
		clients = append(clients, client)
	}
	a.clientsMu.Unlock()

	var failed []*SafeWriter
	for _, client := range clients {
		if err := client.WriteJSON(frame); err != nil {
			a.logger.Printf("[WSAdapter] Ошибка отправки кадра клиенту: %v", err)
			failed = append(failed, client)
		}
	}

	if len(failed) > 0 {
		a.clientsMu.Lock()
		for _, client := range failed {
			delete(a.clients, client)
			client.Close()
		}
		a.clientsMu.Unlock()
		return fmt.Errorf("кадр не доставлен %d клиентам", len(failed))
	}
	return nil
}

// ClientCount возвращает число подключенных клиентов
func (a *WSAdapter) ClientCount() int {
	a.clientsMu.Lock()
	defer a.clientsMu.Unlock()
	return len(a.clients)
}
