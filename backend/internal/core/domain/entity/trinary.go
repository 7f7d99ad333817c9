package entity

// Trinary трехзначное логическое значение: да, нет или "неизвестно"
type Trinary uint8

const (
	False Trinary = iota
	True
	Unknown
)

// TrinaryOf переводит bool в Trinary
func TrinaryOf(v bool) Trinary {
	if v {
		return True
	}
	return False
}

// CouldBe сообщает, может ли значение оказаться равным v.
// Unknown может оказаться чем угодно.
func (t Trinary) CouldBe(v bool) bool {
	return t == Unknown || t == TrinaryOf(v)
}

// IsKnown сообщает, что значение определено
func (t Trinary) IsKnown() bool {
	return t != Unknown
}

func (t Trinary) String() string {
	switch t {
	case False:
		return "false"
	case True:
		return "true"
	default:
		return "unknown"
	}
}
