package environ

// RefreshKind вид обновления снимка
type RefreshKind int

const (
	RefreshWorld RefreshKind = iota
	RefreshWorldDegraded
	RefreshLocal
)

func (k RefreshKind) String() string {
	switch k {
	case RefreshWorld:
		return "world"
	case RefreshWorldDegraded:
		return "world_degraded"
	default:
		return "local"
	}
}

// Recorder принимает счетчики работы окружения (телеметрия).
// Вызывается из горячего пути, реализация должна быть дешевой.
type Recorder interface {
	RecordRefresh(kind RefreshKind, areas int)
	RecordEvaluate(fast bool)
	RecordCollision(hit bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordRefresh(RefreshKind, int) {}
func (nopRecorder) RecordEvaluate(bool)            {}
func (nopRecorder) RecordCollision(bool)           {}
