package ledger

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strings"
	"time"
)

// Quarter is a fiscal quarter of an April-start year.
type Quarter int

const (
	Q1 Quarter = iota + 1 // April - June
	Q2                    // July - September
	Q3                    // October - December
	Q4                    // January - March of the following calendar year
)

var quarterNames = map[Quarter]string{Q1: "Q1", Q2: "Q2", Q3: "Q3", Q4: "Q4"}

func ParseQuarter(s string) (Quarter, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Q1":
		return Q1, nil
	case "Q2":
		return Q2, nil
	case "Q3":
		return Q3, nil
	case "Q4":
		return Q4, nil
	}
	return 0, fmt.Errorf("invalid quarter %q", s)
}

func (q Quarter) Valid() bool {
	return q >= Q1 && q <= Q4
}

func (q Quarter) String() string {
	if name, ok := quarterNames[q]; ok {
		return name
	}
	return fmt.Sprintf("Quarter(%d)", int(q))
}

func (q Quarter) MarshalText() ([]byte, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("invalid quarter %d", int(q))
	}
	return []byte(q.String()), nil
}

func (q *Quarter) UnmarshalText(text []byte) error {
	parsed, err := ParseQuarter(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

func (q Quarter) Value() (driver.Value, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("invalid quarter %d", int(q))
	}
	return q.String(), nil
}

func (q *Quarter) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return q.UnmarshalText([]byte(v))
	case []byte:
		return q.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Quarter", src)
	}
}

// Period is one quarterly accounting period.
type Period struct {
	FiscalYear int
	Quarter    Quarter
}

func NewPeriod(fiscalYear int, quarter string) (Period, error) {
	q, err := ParseQuarter(quarter)
	if err != nil {
		return Period{}, err
	}
	if fiscalYear < 1 {
		return Period{}, fmt.Errorf("invalid fiscal year %d", fiscalYear)
	}
	return Period{FiscalYear: fiscalYear, Quarter: q}, nil
}

// Resolve maps a calendar date to its fiscal period. January to March belong to Q4 of the
// fiscal year that started the previous April.
func Resolve(date time.Time) Period {
	year := date.Year()
	switch month := date.Month(); {
	case month >= time.April && month <= time.June:
		return Period{FiscalYear: year, Quarter: Q1}
	case month >= time.July && month <= time.September:
		return Period{FiscalYear: year, Quarter: Q2}
	case month >= time.October:
		return Period{FiscalYear: year, Quarter: Q3}
	default:
		return Period{FiscalYear: year - 1, Quarter: Q4}
	}
}

func (p Period) Next() Period {
	if p.Quarter == Q4 {
		return Period{FiscalYear: p.FiscalYear + 1, Quarter: Q1}
	}
	return Period{FiscalYear: p.FiscalYear, Quarter: p.Quarter + 1}
}

// Start is the first calendar day of the period, in UTC.
func (p Period) Start() time.Time {
	if p.Quarter == Q4 {
		return time.Date(p.FiscalYear+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	month := time.April + time.Month(3*(int(p.Quarter)-1))
	return time.Date(p.FiscalYear, month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last calendar day of the period, in UTC.
func (p Period) End() time.Time {
	return p.Next().Start().AddDate(0, 0, -1)
}

func (p Period) Contains(date time.Time) bool {
	return Resolve(date) == p
}

func (p Period) String() string {
	return fmt.Sprintf("FY%d-%s", p.FiscalYear, p.Quarter)
}

// DayCount is the inclusive number of calendar days between from and to. Partial days round up.
func DayCount(from, to time.Time) int {
	diff := to.Sub(from)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours()/24)) + 1
}

// LeaveType is one of the ledger-tracked leave categories.
type LeaveType string

const (
	Sick   LeaveType = "Sick"
	Casual LeaveType = "Casual"
	Paid   LeaveType = "Paid"
)

// LeaveTypes lists every tracked type in display order.
var LeaveTypes = []LeaveType{Sick, Casual, Paid}

func ParseLeaveType(s string) (LeaveType, error) {
	trimmed := strings.TrimSpace(s)
	for _, t := range LeaveTypes {
		if strings.EqualFold(string(t), trimmed) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown leave type %q", s)
}

func (t LeaveType) Valid() bool {
	switch t {
	case Sick, Casual, Paid:
		return true
	}
	return false
}

func (t LeaveType) String() string {
	return string(t)
}
