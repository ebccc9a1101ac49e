package notify

import (
	"Gin_postgres_redis_loan_tracker/models"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

// LoanNotice carries what every loan message needs.
type LoanNotice struct {
	LoanID         string
	StudentName    string
	StudentEmail   string
	EquipmentName  string
	EquipmentModel string
	DateBorrowed   time.Time
	DateDue        time.Time
}

// NoticeFor builds a notice from a loan whose Student and Equipment were joined.
func NoticeFor(l models.Loan) LoanNotice {
	n := LoanNotice{
		LoanID:       l.ID,
		DateBorrowed: l.DateBorrowed,
		DateDue:      l.DateDue,
	}
	if l.Student != nil {
		n.StudentName = l.Student.FullName()
		n.StudentEmail = l.Student.Email
	}
	if l.Equipment != nil {
		n.EquipmentName = l.Equipment.Name
		n.EquipmentModel = l.Equipment.Model
	}
	return n
}

type OverdueNotice struct {
	LoanNotice
	DaysOverdue int
	Fine        decimal.Decimal
}

type Assessment struct {
	DamageStatus models.DamageStatus
	DamageNotes  string
	NewCondition models.Condition
	DaysLate     int
	LateFine     decimal.Decimal
	DamageFine   decimal.Decimal
	TotalFine    decimal.Decimal
}

type ReturnNotice struct {
	LoanNotice
	DateReturned time.Time
	Assessment   *Assessment
}

var funcs = template.FuncMap{
	"date":  func(t time.Time) string { return t.Format("January 2, 2006") },
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

var (
	checkoutTmpl = template.Must(template.New("checkout").Funcs(funcs).Parse(strings.TrimSpace(`
Dear {{.StudentName}},

You have checked out the following equipment:

  Equipment:     {{.EquipmentName}}{{if .EquipmentModel}} ({{.EquipmentModel}}){{end}}
  Date borrowed: {{date .DateBorrowed}}
  Due date:      {{date .DateDue}}

Please return the equipment on or before the due date. Late returns are charged a daily fine.

Thank you.
`)))

	overdueTmpl = template.Must(template.New("overdue").Funcs(funcs).Parse(strings.TrimSpace(`
Dear {{.StudentName}},

The following equipment is OVERDUE:

  Equipment:    {{.EquipmentName}}{{if .EquipmentModel}} ({{.EquipmentModel}}){{end}}
  Due date:     {{date .DateDue}}
  Days overdue: {{.DaysOverdue}}
  Current fine: {{money .Fine}}

Please return it as soon as possible to avoid additional fines.
`)))

	returnTmpl = template.Must(template.New("return").Funcs(funcs).Parse(strings.TrimSpace(`
Dear {{.StudentName}},

Your return has been recorded:

  Equipment:     {{.EquipmentName}}{{if .EquipmentModel}} ({{.EquipmentModel}}){{end}}
  Date borrowed: {{date .DateBorrowed}}
  Date returned: {{date .DateReturned}}
{{- with .Assessment}}

Return assessment:
  Damage status: {{.DamageStatus}}{{if .DamageNotes}}
  Notes:         {{.DamageNotes}}{{end}}
  Condition:     {{.NewCondition}}
  Days late:     {{.DaysLate}}
  Late fine:     {{money .LateFine}}
  Damage fine:   {{money .DamageFine}}
  Total due:     {{money .TotalFine}}
{{- end}}

Thank you for returning the equipment.
`)))
)

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
