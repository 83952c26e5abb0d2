package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

const dateLayout = "Jan 2, 2006"

// DueDigest lists unpaid bills due on a single date
func DueDigest(bills []*domain.Obligation, dueDate time.Time) domain.Message {
	noun := pluralize(len(bills), "bill")
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s due on %s:\n", len(bills), noun, dueDate.Format(dateLayout))
	writeObligationLines(&b, bills, false)
	fmt.Fprintf(&b, "\nTotal due: %s", sum(bills).StringFixed(2))
	return domain.Message{
		Subject: fmt.Sprintf("%d %s due %s", len(bills), noun, dueDate.Format(dateLayout)),
		Body:    b.String(),
	}
}

// OverdueDigest lists unpaid bills whose due date has passed
func OverdueDigest(bills []*domain.Obligation, today time.Time) domain.Message {
	noun := pluralize(len(bills), "bill")
	var b strings.Builder
	fmt.Fprintf(&b, "%d overdue %s as of %s:\n", len(bills), noun, today.Format(dateLayout))
	for _, o := range bills {
		days := int(today.Sub(o.DueDate).Hours() / 24)
		fmt.Fprintf(&b, "- %s: %s (due %s, %d %s late)\n",
			o.Name, o.Amount.StringFixed(2), o.DueDate.Format(dateLayout), days, pluralize(days, "day"))
	}
	fmt.Fprintf(&b, "\nTotal overdue: %s", sum(bills).StringFixed(2))
	return domain.Message{
		Subject: fmt.Sprintf("%d overdue %s", len(bills), noun),
		Body:    b.String(),
	}
}

// WeeklySummary reports paid and unpaid totals for [weekStart, weekStart+7d) and lists the
// bills due the following week
func WeeklySummary(bills []*domain.Obligation, weekStart time.Time) domain.Message {
	weekEnd := weekStart.AddDate(0, 0, 7)
	nextEnd := weekEnd.AddDate(0, 0, 7)

	thisWeek := filterDue(bills, weekStart, weekEnd)
	paid, unpaid := splitPaid(thisWeek)
	upcoming := filterDue(bills, weekEnd, nextEnd)

	var b strings.Builder
	fmt.Fprintf(&b, "Week of %s\n", weekStart.Format(dateLayout))
	fmt.Fprintf(&b, "Paid: %s (%d)\n", sum(paid).StringFixed(2), len(paid))
	fmt.Fprintf(&b, "Unpaid: %s (%d)\n", sum(unpaid).StringFixed(2), len(unpaid))
	b.WriteString("\nDue next week:\n")
	if len(upcoming) == 0 {
		b.WriteString("- nothing due\n")
	}
	writeObligationLines(&b, upcoming, true)

	return domain.Message{
		Subject: fmt.Sprintf("Weekly summary: %s", weekStart.Format(dateLayout)),
		Body:    strings.TrimRight(b.String(), "\n"),
	}
}

// MonthlySummary compares bill totals for the month starting at monthStart against the previous
// month, grouped by category, and lists every bill still unpaid as of today
func MonthlySummary(bills []*domain.Obligation, categories map[int32]string, monthStart, today time.Time) domain.Message {
	monthEnd := monthStart.AddDate(0, 1, 0)
	prevStart := monthStart.AddDate(0, -1, 0)

	current := filterDue(bills, monthStart, monthEnd)
	previous := filterDue(bills, prevStart, monthStart)

	curByCat := totalsByCategory(current, categories)
	prevByCat := totalsByCategory(previous, categories)
	names := make([]string, 0, len(curByCat)+len(prevByCat))
	for name := range curByCat {
		names = append(names, name)
	}
	for name := range prevByCat {
		if _, ok := curByCat[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "%s vs %s\n", monthStart.Format("January 2006"), prevStart.Format("January 2006"))
	fmt.Fprintf(&b, "Total: %s (previous %s)\n", sum(current).StringFixed(2), sum(previous).StringFixed(2))
	if len(names) > 0 {
		b.WriteString("\nBy category:\n")
	}
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s (previous %s)\n", name, curByCat[name].StringFixed(2), prevByCat[name].StringFixed(2))
	}

	var outstanding []*domain.Obligation
	for _, o := range bills {
		if !o.IsPaid && o.DueDate.Before(monthEnd) {
			outstanding = append(outstanding, o)
		}
	}
	fmt.Fprintf(&b, "\nUnpaid as of %s:\n", today.Format(dateLayout))
	if len(outstanding) == 0 {
		b.WriteString("- all caught up\n")
	}
	writeObligationLines(&b, outstanding, true)

	return domain.Message{
		Subject: fmt.Sprintf("Monthly summary: %s", monthStart.Format("January 2006")),
		Body:    strings.TrimRight(b.String(), "\n"),
	}
}

func writeObligationLines(b *strings.Builder, list []*domain.Obligation, withDate bool) {
	for _, o := range list {
		if withDate {
			fmt.Fprintf(b, "- %s: %s (due %s)\n", o.Name, o.Amount.StringFixed(2), o.DueDate.Format(dateLayout))
		} else {
			fmt.Fprintf(b, "- %s: %s\n", o.Name, o.Amount.StringFixed(2))
		}
	}
}

func filterDue(list []*domain.Obligation, from, to time.Time) []*domain.Obligation {
	var result []*domain.Obligation
	for _, o := range list {
		if !o.DueDate.Before(from) && o.DueDate.Before(to) {
			result = append(result, o)
		}
	}
	return result
}

func splitPaid(list []*domain.Obligation) (paid, unpaid []*domain.Obligation) {
	for _, o := range list {
		if o.IsPaid {
			paid = append(paid, o)
		} else {
			unpaid = append(unpaid, o)
		}
	}
	return paid, unpaid
}

func totalsByCategory(list []*domain.Obligation, categories map[int32]string) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, o := range list {
		name := domain.UncategorizedLabel
		if o.CategoryID != nil {
			if n, ok := categories[*o.CategoryID]; ok {
				name = n
			}
		}
		totals[name] = totals[name].Add(o.Amount)
	}
	return totals
}

func sum(list []*domain.Obligation) decimal.Decimal {
	total := decimal.Zero
	for _, o := range list {
		total = total.Add(o.Amount)
	}
	return total
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return noun
	}
	return noun + "s"
}
