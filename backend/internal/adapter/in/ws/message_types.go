package ws

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Константы для WebSocket сообщений
const (
	// Типы сообщений
	MessageTypeEnviron       = "environ"        // Кадр окружения (сервер -> клиент)
	MessageTypeSample        = "sample"         // Запрос сил в точке
	MessageTypeSampleResult  = "sample_result"  // Ответ на запрос сил
	MessageTypeCollide       = "collide"        // Запрос столкновения
	MessageTypeCollideResult = "collide_result" // Ответ на запрос столкновения
	MessageTypePing          = "ping"           // Пинг для измерения задержки
	MessageTypePong          = "pong"           // Ответ на пинг
	MessageTypeError         = "error"          // Ошибка обработки запроса
)

// Envelope общий заголовок входящих сообщений
type Envelope struct {
	Type string `json:"type"`
}

// SampleRequest запрос сил окружения в точке
type SampleRequest struct {
	Type string  `json:"type"`
	X    float32 `json:"x"`
	Y    float32 `json:"y"`
	Z    float32 `json:"z"`
}

// SampleResult силы окружения в точке
type SampleResult struct {
	Type       string     `json:"type"`
	Position   mgl32.Vec3 `json:"position"`
	Accel      mgl32.Vec3 `json:"accel"`
	Wind       mgl32.Vec3 `json:"wind"`
	WaterDist  float32    `json:"water_dist"`
	Underwater bool       `json:"underwater"`
}

// CollideRequest запрос столкновения частицы на отрезке
type CollideRequest struct {
	Type   string     `json:"type"`
	From   mgl32.Vec3 `json:"from"`
	To     mgl32.Vec3 `json:"to"`
	Radius float32    `json:"radius"`
}

// CollideResult результат запроса столкновения
type CollideResult struct {
	Type      string     `json:"type"`
	Hit       bool       `json:"hit"`
	Fraction  float32    `json:"fraction"`
	Point     mgl32.Vec3 `json:"point"`
	Normal    mgl32.Vec3 `json:"normal"`
	Entity    string     `json:"entity,omitempty"`
	Terrain   bool       `json:"terrain"`
	SurfaceID int        `json:"surface_id"`
}

// PingMessage пинг клиента
type PingMessage struct {
	Type       string  `json:"type"`
	ClientTime float64 `json:"client_time"`
}

// PongMessage ответ на пинг
type PongMessage struct {
	Type       string  `json:"type"`
	ClientTime float64 `json:"client_time"`
	ServerTime int64   `json:"server_time"`
}

// ErrorMessage сообщение об ошибке
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// GetCurrentServerTime возвращает текущее серверное время в миллисекундах
func GetCurrentServerTime() int64 {
	return time.Now().UnixMilli()
}

// NewPongMessage создает новое сообщение-ответ на пинг
func NewPongMessage(clientTime float64) PongMessage {
	return PongMessage{
		Type:       MessageTypePong,
		ClientTime: clientTime,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewErrorMessage создает сообщение об ошибке
func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: MessageTypeError, Message: message}
}

// safeValue заменяет NaN и бесконечности на defaultValue
func safeValue(value float32, defaultValue float32) float32 {
	if math.IsNaN(float64(value)) || math.IsInf(float64(value), 0) {
		return defaultValue
	}
	return value
}

// safeVec заменяет NaN и бесконечности в компонентах вектора на 0
func safeVec(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{safeValue(v[0], 0), safeValue(v[1], 0), safeValue(v[2], 0)}
}
