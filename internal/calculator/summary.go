package calculator

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
)

const dateLayout = "2006-01-02"

// TodayEntry is one of today's transactions, stamped with its local time of day.
type TodayEntry struct {
	Type   models.TransactionType `json:"type"`
	Amount money.Amount           `json:"amount"`
	Time   string                 `json:"time"` // HH:MM in the summary location
}

// DayTotal sums income and expense for one calendar day.
type DayTotal struct {
	Date         string       `json:"date"`
	TotalIncome  money.Amount `json:"totalIncome"`
	TotalExpense money.Amount `json:"totalExpense"`
}

// WeekTotal sums income and expense for a 7-day window.
type WeekTotal struct {
	WeekLabel    string       `json:"weekLabel"`
	Start        string       `json:"start"`
	End          string       `json:"end"` // inclusive
	TotalIncome  money.Amount `json:"totalIncome"`
	TotalExpense money.Amount `json:"totalExpense"`
}

// HomeSummary is the dashboard overview of a user's finances.
type HomeSummary struct {
	TotalIncome           money.Amount `json:"totalIncome"`
	TotalExpense          money.Amount `json:"totalExpense"`
	RemainingBalance      money.Amount `json:"remainingBalance"`
	AverageDailyExpense   string       `json:"averageDailyExpense"`
	AverageWeeklyExpense  string       `json:"averageWeeklyExpense"`
	AverageMonthlyExpense string       `json:"averageMonthlyExpense"`
}

// window is a half-open time range [start, end).
type window struct {
	start, end time.Time
}

func (w window) contains(t time.Time) bool {
	return !t.Before(w.start) && t.Before(w.end)
}

// startOfDay returns local midnight of the day containing t.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Today returns transactions dated between local midnight and the next midnight.
func Today(txns []*models.Transaction, now time.Time, loc *time.Location) []TodayEntry {
	start := startOfDay(now, loc)
	today := window{start: start, end: start.AddDate(0, 0, 1)}

	entries := []TodayEntry{}
	for _, t := range txns {
		if !today.contains(t.Date) {
			continue
		}
		entries = append(entries, TodayEntry{
			Type:   t.Type,
			Amount: t.Amount,
			Time:   t.Date.In(loc).Format("15:04"),
		})
	}
	return entries
}

// DailyTotals buckets transactions into the last `days` local calendar days
// ending today, oldest first. Days without transactions report zero totals.
func DailyTotals(txns []*models.Transaction, now time.Time, loc *time.Location, days int) []DayTotal {
	first := startOfDay(now, loc).AddDate(0, 0, -(days - 1))

	totals := make([]DayTotal, days)
	index := make(map[string]int, days)
	for i := range totals {
		date := first.AddDate(0, 0, i).Format(dateLayout)
		totals[i] = DayTotal{Date: date}
		index[date] = i
	}

	for _, t := range txns {
		i, ok := index[t.Date.In(loc).Format(dateLayout)]
		if !ok {
			continue
		}
		addTo(&totals[i].TotalIncome, &totals[i].TotalExpense, t)
	}
	return totals
}

// WeeklyTotals buckets transactions into `weeks` consecutive 7-day windows
// ending with today, oldest first. The most recent window is labelled
// "Week <weeks>".
func WeeklyTotals(txns []*models.Transaction, now time.Time, loc *time.Location, weeks int) []WeekTotal {
	end := startOfDay(now, loc).AddDate(0, 0, 1)

	windows := make([]window, weeks)
	totals := make([]WeekTotal, weeks)
	for i := 0; i < weeks; i++ {
		// Slot 0 is the oldest window.
		wEnd := end.AddDate(0, 0, -7*(weeks-1-i))
		w := window{start: wEnd.AddDate(0, 0, -7), end: wEnd}
		windows[i] = w
		totals[i] = WeekTotal{
			WeekLabel: "Week " + strconv.Itoa(i+1),
			Start:     w.start.Format(dateLayout),
			End:       w.end.AddDate(0, 0, -1).Format(dateLayout),
		}
	}

	for _, t := range txns {
		for i, w := range windows {
			if w.contains(t.Date) {
				addTo(&totals[i].TotalIncome, &totals[i].TotalExpense, t)
				break
			}
		}
	}
	return totals
}

// Home computes the dashboard summary. Weeks start on Sunday.
//
// The averages mirror the dashboard's definitions: the daily average is
// today's expense, the weekly average is this week's expense over 7 days and
// the monthly average is this month's expense over the days in the month.
func Home(txns []*models.Transaction, accountBalance money.Amount, now time.Time, loc *time.Location) HomeSummary {
	today := startOfDay(now, loc)
	day := window{start: today, end: today.AddDate(0, 0, 1)}
	weekStart := today.AddDate(0, 0, -int(today.Weekday()))
	week := window{start: weekStart, end: weekStart.AddDate(0, 0, 7)}
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
	month := window{start: monthStart, end: monthStart.AddDate(0, 1, 0)}
	daysInMonth := month.end.AddDate(0, 0, -1).Day()

	var summary HomeSummary
	var daily, weekly, monthly money.Amount
	for _, t := range txns {
		addTo(&summary.TotalIncome, &summary.TotalExpense, t)
		if t.Type != models.TypeExpense {
			continue
		}
		if day.contains(t.Date) {
			daily += t.Amount
		}
		if week.contains(t.Date) {
			weekly += t.Amount
		}
		if month.contains(t.Date) {
			monthly += t.Amount
		}
	}

	summary.RemainingBalance = accountBalance + summary.TotalIncome - summary.TotalExpense
	summary.AverageDailyExpense = average(daily, 1)
	summary.AverageWeeklyExpense = average(weekly, 7)
	summary.AverageMonthlyExpense = average(monthly, daysInMonth)
	return summary
}

func addTo(income, expense *money.Amount, t *models.Transaction) {
	switch t.Type {
	case models.TypeIncome:
		*income += t.Amount
	case models.TypeExpense:
		*expense += t.Amount
	}
}

func average(total money.Amount, days int) string {
	return total.Decimal().Div(decimal.NewFromInt(int64(days))).StringFixed(2)
}
