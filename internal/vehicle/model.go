package vehicle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Size string

const (
	SizeCompact Size = "compact"
	SizeSedan   Size = "sedan"
	SizeSUV     Size = "suv"
	SizeTruck   Size = "truck"
	SizeVan     Size = "van"
	SizeLuxury  Size = "luxury"
)

var AllSizes = []Size{SizeCompact, SizeSedan, SizeSUV, SizeTruck, SizeVan, SizeLuxury}

var multipliers = map[Size]decimal.Decimal{
	SizeCompact: decimal.New(9, -1),
	SizeSedan:   decimal.New(1, 0),
	SizeSUV:     decimal.New(13, -1),
	SizeTruck:   decimal.New(14, -1),
	SizeVan:     decimal.New(15, -1),
	SizeLuxury:  decimal.New(16, -1),
}

var ErrInvalidSize = errors.New("invalid vehicle size")

func (s Size) Valid() bool {
	_, ok := multipliers[s]
	return ok
}

// Multiplier is the price factor applied to a service's base price.
// Unknown sizes price like a sedan.
func (s Size) Multiplier() decimal.Decimal {
	if m, ok := multipliers[s]; ok {
		return m
	}
	return multipliers[SizeSedan]
}

func (s Size) Label() string {
	switch s {
	case SizeSUV:
		return "SUV"
	case "":
		return ""
	default:
		return strings.ToUpper(string(s[:1])) + string(s[1:])
	}
}

// ParseSize accepts the stored form as well as display labels ("SUV", "Sedan").
func ParseSize(raw string) (Size, error) {
	s := Size(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSize, raw)
	}
	return s, nil
}

type Vehicle struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Year         int       `json:"year"`
	Color        string    `json:"color"`
	LicensePlate *string   `json:"license_plate,omitempty"`
	Size         Size      `json:"size"`
	Notes        *string   `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (v Vehicle) DisplayName() string {
	return fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model)
}

func (v Vehicle) FullDescription() string {
	return fmt.Sprintf("%d %s %s %s", v.Year, v.Color, v.Make, v.Model)
}

var (
	ErrMakeRequired  = errors.New("vehicle make is required")
	ErrModelRequired = errors.New("vehicle model is required")
	ErrInvalidYear   = errors.New("vehicle year is out of range")
)

func (v Vehicle) Validate() error {
	if strings.TrimSpace(v.Make) == "" {
		return ErrMakeRequired
	}
	if strings.TrimSpace(v.Model) == "" {
		return ErrModelRequired
	}
	if v.Year < 1900 || v.Year > time.Now().Year()+2 {
		return ErrInvalidYear
	}
	if !v.Size.Valid() {
		return ErrInvalidSize
	}
	return nil
}
