package entity

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// DateLayout 接口层日期格式
const DateLayout = "2006-01-02"

// Date 日历日期，数据库中存为 DATE，JSON 中为 YYYY-MM-DD
type Date struct {
	datatypes.Date
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return NewDate(t), nil
}

// DatePtr 解析可选日期，空字符串返回 nil
func DatePtr(s string) (*Date, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (d Date) Time() time.Time {
	return time.Time(d.Date)
}

func (d Date) String() string {
	return d.Time().Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	parsed, err := ParseDate(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan accepts driver time values as well as the text forms sqlite hands back.
func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		d.Date = datatypes.Date{}
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	case time.Time:
		*d = NewDate(v)
		return nil
	}
	return d.Date.Scan(value)
}

func (d *Date) scanText(s string) error {
	if len(s) < len(DateLayout) {
		return fmt.Errorf("scan date: unexpected value %q", s)
	}
	parsed, err := ParseDate(s[:len(DateLayout)])
	if err != nil {
		return fmt.Errorf("scan date: %w", err)
	}
	*d = parsed
	return nil
}
