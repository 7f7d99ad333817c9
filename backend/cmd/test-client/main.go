package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "адрес сервера")
	frames := flag.Int("frames", 5, "сколько кадров окружения прочитать")
	flag.Parse()

	// Подключаемся к серверу
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Подключение к %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Ошибка подключения: %v", err)
	}
	defer conn.Close()

	log.Printf("Успешно подключен")

	// Проба сил по вертикали над началом координат и над озером
	probes := [][3]float32{{0, 0, 30}, {40, 20, 20}, {-70, -70, 5}, {-70, -70, -5}}
	for _, p := range probes {
		req := map[string]interface{}{"type": "sample", "x": p[0], "y": p[1], "z": p[2]}
		if err := conn.WriteJSON(req); err != nil {
			log.Fatalf("Ошибка отправки запроса: %v", err)
		}
	}

	// Луч вниз из-под дрона
	collide := map[string]interface{}{
		"type":   "collide",
		"from":   [3]float32{0, 0, 60},
		"to":     [3]float32{0, 0, -60},
		"radius": 0.5,
	}
	if err := conn.WriteJSON(collide); err != nil {
		log.Fatalf("Ошибка отправки запроса: %v", err)
	}

	ping := map[string]interface{}{"type": "ping", "client_time": float64(time.Now().UnixMilli())}
	if err := conn.WriteJSON(ping); err != nil {
		log.Fatalf("Ошибка отправки ping: %v", err)
	}

	// Читаем ответы и кадры окружения
	seenFrames := 0
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for seenFrames < *frames {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Ошибка чтения сообщения: %v", err)
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Ошибка разбора сообщения: %v", err)
			continue
		}

		msgType, _ := msg["type"].(string)
		switch msgType {
		case "environ":
			seenFrames++
			stats, _ := msg["stats"].(map[string]interface{})
			log.Printf("ENVIRON: тик %v, областей %v, актуален %v, гравитация %v",
				msg["tick"], stats["areas"], stats["current"], stats["gravity"])
			if emitters, ok := msg["emitters"].([]interface{}); ok {
				for _, e := range emitters {
					em, _ := e.(map[string]interface{})
					log.Printf("  эмиттер %v: живых %v, под водой %v, столкновений %v",
						em["id"], em["alive"], em["underwater"], em["collisions"])
				}
			}

		case "sample_result":
			log.Printf("SAMPLE %v: ускорение %v, ветер %v, до воды %v",
				msg["position"], msg["accel"], msg["wind"], msg["water_dist"])

		case "collide_result":
			log.Printf("COLLIDE: попадание %v, доля %v, точка %v, объект %v",
				msg["hit"], msg["fraction"], msg["point"], msg["entity"])

		case "pong":
			if ct, ok := msg["client_time"].(float64); ok {
				log.Printf("PONG: задержка %.0f мс", float64(time.Now().UnixMilli())-ct)
			}

		default:
			log.Printf("Сообщение типа %s: %v", msgType, msg)
		}
	}

	log.Printf("Тест завершен")
}
