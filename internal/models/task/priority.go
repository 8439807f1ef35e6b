package task

import (
	"fmt"
	"strings"
)

// Priority хранится на диске стабильным ключом, а не отображаемой подписью
type Priority string

const PriorityNormal Priority = "normal"
const PriorityHigh Priority = "high"
const PriorityHighest Priority = "highest"

// подписи старого интерфейса (en_US, hu_HU, de_DE), принимаются только на входе
var legacyLabels = map[string]Priority{
	"normal":      PriorityNormal,
	"high":        PriorityHigh,
	"highest":     PriorityHighest,
	"normál":      PriorityNormal,
	"magas":       PriorityHigh,
	"legmagasabb": PriorityHighest,
	"hoch":        PriorityHigh,
	"höchste":     PriorityHighest,
}

var displayLabels = map[Priority]string{
	PriorityNormal:  "Normal",
	PriorityHigh:    "High",
	PriorityHighest: "Highest",
}

func ParsePriority(value string) (Priority, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	if key == "" {
		return PriorityNormal, nil
	}
	if p, ok := legacyLabels[key]; ok {
		return p, nil
	}
	return "", fmt.Errorf("неизвестный приоритет %q", value)
}

func (p Priority) Valid() bool {
	_, ok := displayLabels[p]
	return ok
}

// Label - подпись для отображения в интерфейсе
func (p Priority) Label() string {
	if label, ok := displayLabels[p]; ok {
		return label
	}
	return string(p)
}

func (p Priority) String() string {
	return string(p)
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("неизвестный приоритет %q", string(p))
	}
	return []byte(p), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
