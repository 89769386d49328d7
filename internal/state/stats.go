package state

// Типы полезной нагрузки.
const (
	PayloadArray  = "Array"
	PayloadObject = "Object"
	PayloadBinary = "Binary"
)

// PayloadStats — статистика тела запроса или ответа.
//
// Для Binary (тела нет) TotalRecords и Attributes равны nil.
type PayloadStats struct {
	Type         string `json:"type"`
	TotalRecords *int   `json:"totalRecords"`
	Attributes   *int   `json:"attributes"`
}

// Stats считает статистику тела.
//
// Array: число элементов и число полей первого элемента (0 для пустого
// массива). Object: одна запись и число полей объекта.
func Stats(body any) PayloadStats {
	switch v := body.(type) {
	case nil:
		return PayloadStats{Type: PayloadBinary}
	case []any:
		attrs := 0
		if len(v) > 0 {
			attrs = attributeCount(v[0])
		}
		return PayloadStats{Type: PayloadArray, TotalRecords: intPtr(len(v)), Attributes: intPtr(attrs)}
	default:
		return PayloadStats{Type: PayloadObject, TotalRecords: intPtr(1), Attributes: intPtr(attributeCount(v))}
	}
}

func attributeCount(v any) int {
	switch o := v.(type) {
	case map[string]any:
		return len(o)
	case []any:
		return len(o)
	default:
		return 0
	}
}

func intPtr(n int) *int {
	return &n
}
